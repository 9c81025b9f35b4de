// internal/handler/tracking_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marvelmind-service/internal/service"
	"marvelmind-service/internal/utils"
	"marvelmind-service/pkg/marvelmind"
)

// TrackingHandler handles beacon and modem requests
type TrackingHandler struct {
	tracking *service.TrackingService
	ws       *WebSocketHandler
	logger   *utils.ServiceLogger
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(tracking *service.TrackingService, ws *WebSocketHandler, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		tracking: tracking,
		ws:       ws,
		logger:   utils.NewServiceLogger(logger, "tracking-handler"),
	}
}

// RegisterRoutes registers tracking routes
func (h *TrackingHandler) RegisterRoutes(router *gin.RouterGroup) {
	beacons := router.Group("/beacons")
	{
		beacons.GET("", h.ListBeacons)
		beacons.GET("/:address", h.GetBeacon)
		beacons.GET("/:address/history", h.GetBeaconHistory)
		beacons.GET("/:address/latest", h.GetBeaconLatest)
	}

	modem := router.Group("/modem")
	{
		modem.GET("/status", h.GetModemStatus)
		modem.GET("/version", h.GetAPIVersion)
		modem.POST("/connect", h.ConnectModem)
		modem.POST("/disconnect", h.DisconnectModem)
	}
}

// ListBeacons returns the current device snapshot
// @Summary List beacons
// @Description Get every device the modem knows, with its latest position
// @Tags Beacons
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{count=int,beacons=[]model.BeaconView}} "Beacons retrieved"
// @Failure 503 {object} utils.APIResponse "Modem not connected"
// @Router /beacons [get]
func (h *TrackingHandler) ListBeacons(c *gin.Context) {
	views, err := h.tracking.Devices()
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Modem not connected", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Beacons retrieved", gin.H{
		"count":   len(views),
		"beacons": views,
	})
}

// GetBeacon returns one device by address
// @Summary Get beacon
// @Description Get one device by its address
// @Tags Beacons
// @Accept json
// @Produce json
// @Param address path int true "Device address"
// @Success 200 {object} utils.APIResponse{data=model.BeaconView} "Beacon retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid address"
// @Failure 404 {object} utils.APIResponse "Beacon not found"
// @Failure 503 {object} utils.APIResponse "Modem not connected"
// @Router /beacons/{address} [get]
func (h *TrackingHandler) GetBeacon(c *gin.Context) {
	address, ok := h.parseAddress(c)
	if !ok {
		return
	}

	view, err := h.tracking.Device(address)
	if err != nil {
		if errors.Is(err, marvelmind.ErrNotConnected) {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "Modem not connected", err)
			return
		}
		utils.ErrorResponse(c, http.StatusNotFound, "Beacon not found", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Beacon retrieved", view)
}

// GetBeaconHistory returns persisted fixes for a device
// @Summary Get beacon history
// @Description Get persisted position fixes for a device inside a time window
// @Tags Beacons
// @Accept json
// @Produce json
// @Param address path int true "Device address"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param limit query int false "Maximum fixes" default(100)
// @Success 200 {object} utils.APIResponse{data=object{count=int,fixes=[]model.PositionFix}} "History retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid parameters"
// @Failure 500 {object} utils.APIResponse "Query failed"
// @Router /beacons/{address}/history [get]
func (h *TrackingHandler) GetBeaconHistory(c *gin.Context) {
	address, ok := h.parseAddress(c)
	if !ok {
		return
	}

	now := time.Now()
	from := now.Add(-time.Hour)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid from timestamp", err)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid to timestamp", err)
			return
		}
		to = parsed
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = parsed
	}

	fixes, err := h.tracking.History(c.Request.Context(), address, from, to, limit)
	if err != nil {
		h.logger.Error("Failed to query history", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to query history", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "History retrieved", gin.H{
		"count": len(fixes),
		"fixes": fixes,
	})
}

// GetBeaconLatest returns the most recent persisted fix for a device
// @Summary Get latest fix
// @Description Get the most recent persisted position fix of a device
// @Tags Beacons
// @Accept json
// @Produce json
// @Param address path int true "Device address"
// @Success 200 {object} utils.APIResponse{data=model.PositionFix} "Latest fix retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid address"
// @Failure 404 {object} utils.APIResponse "No fix recorded"
// @Router /beacons/{address}/latest [get]
func (h *TrackingHandler) GetBeaconLatest(c *gin.Context) {
	address, ok := h.parseAddress(c)
	if !ok {
		return
	}

	fix, err := h.tracking.Latest(c.Request.Context(), address)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "No fix recorded", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Latest fix retrieved", fix)
}

// GetModemStatus returns the tracking connection status
// @Summary Modem status
// @Description Get the modem connection state and call statistics
// @Tags Modem
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.ModemStatus} "Status retrieved"
// @Router /modem/status [get]
func (h *TrackingHandler) GetModemStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Status retrieved", h.tracking.Status())
}

// GetAPIVersion returns the vendor library version
// @Summary Vendor API version
// @Description Get the Marvelmind library version seen at startup
// @Tags Modem
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{version=string}} "Version retrieved"
// @Failure 503 {object} utils.APIResponse "Version not known yet"
// @Router /modem/version [get]
func (h *TrackingHandler) GetAPIVersion(c *gin.Context) {
	version := h.tracking.Version()
	if version == "" {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Version not known yet", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Version retrieved", gin.H{
		"version": version,
	})
}

// ConnectModem opens the modem connection and starts tracking
// @Summary Connect modem
// @Description Open the modem port and start the polling loop
// @Tags Modem
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse "Modem connected"
// @Failure 500 {object} utils.APIResponse "Connect failed"
// @Router /modem/connect [post]
func (h *TrackingHandler) ConnectModem(c *gin.Context) {
	if err := h.tracking.Start(c.Request.Context()); err != nil {
		h.logger.Error("Failed to connect modem", zap.Error(err))
		h.ws.BroadcastModemEvent(EventModemError, map[string]interface{}{
			"error": err.Error(),
		})
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to connect modem", err)
		return
	}

	h.ws.BroadcastModemEvent(EventModemConnected, map[string]interface{}{
		"api_version": h.tracking.Version(),
	})
	utils.SuccessResponse(c, http.StatusOK, "Modem connected", h.tracking.Status())
}

// DisconnectModem stops tracking and releases the modem port
// @Summary Disconnect modem
// @Description Stop the polling loop and close the modem port
// @Tags Modem
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse "Modem disconnected"
// @Failure 500 {object} utils.APIResponse "Disconnect failed"
// @Router /modem/disconnect [post]
func (h *TrackingHandler) DisconnectModem(c *gin.Context) {
	if err := h.tracking.Stop(); err != nil {
		h.logger.Error("Failed to disconnect modem", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to disconnect modem", err)
		return
	}

	h.ws.BroadcastModemEvent(EventModemDisconnect, nil)
	utils.SuccessResponse(c, http.StatusOK, "Modem disconnected", h.tracking.Status())
}

func (h *TrackingHandler) parseAddress(c *gin.Context) (uint16, bool) {
	raw := c.Param("address")
	parsed, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Address must be a 16-bit unsigned integer", err)
		return 0, false
	}
	return uint16(parsed), true
}
