// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marvelmind-service/internal/discovery"
	"marvelmind-service/internal/utils"
)

// DiscoveryHandler handles modem discovery requests
type DiscoveryHandler struct {
	scanners []discovery.Scanner
	logger   *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanners []discovery.Scanner, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanners: scanners,
		logger:   utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/scan", h.ScanModems)
}

// ScanModems scans for attached modems
// @Summary Scan for modems
// @Description Look for attached Marvelmind modems on USB and serial transports
// @Tags Discovery
// @Accept json
// @Produce json
// @Param type query string false "Scan type" Enums(all, usb, serial) default(all)
// @Success 200 {object} utils.APIResponse{data=object{candidates_found=int,candidates=[]discovery.ModemCandidate}} "Scan completed"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanModems(c *gin.Context) {
	scanType := c.DefaultQuery("type", "all")

	var candidates []discovery.ModemCandidate
	for _, scanner := range h.scanners {
		if scanType != "all" && scanner.ScannerType() != scanType {
			continue
		}
		if !scanner.IsAvailable() {
			h.logger.Warn("Scanner unavailable", zap.String("type", scanner.ScannerType()))
			continue
		}

		found, err := scanner.Scan(c.Request.Context())
		if err != nil {
			// A failing transport should not hide results from the others.
			h.logger.Error("Scan failed",
				zap.String("type", scanner.ScannerType()),
				zap.Error(err))
			continue
		}
		candidates = append(candidates, found...)
	}

	utils.SuccessResponse(c, http.StatusOK, "Scan completed", gin.H{
		"candidates_found": len(candidates),
		"candidates":       candidates,
	})
}
