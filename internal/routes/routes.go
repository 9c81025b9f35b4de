// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"marvelmind-service/internal/config"
	"marvelmind-service/internal/database"
	"marvelmind-service/internal/discovery"
	"marvelmind-service/internal/handler"
	"marvelmind-service/internal/middleware"
	"marvelmind-service/internal/service"
	"marvelmind-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config   *config.Config
	logger   *zap.Logger
	db       *database.DB
	tracking *service.TrackingService
	scanners []discovery.Scanner
	ws       *handler.WebSocketHandler
}

// NewRouter creates a new router instance. The WebSocket handler is
// created by the caller so it can be wired into the tracking pipeline
// before the server starts.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	tracking *service.TrackingService,
	scanners []discovery.Scanner,
	ws *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		db:       db,
		tracking: tracking,
		scanners: scanners,
		ws:       ws,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.tracking, r.config, r.logger)
	trackingHandler := handler.NewTrackingHandler(r.tracking, r.ws, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.scanners, r.logger)

	// Health check routes
	healthHandler.RegisterRoutes(router.Group(""))

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	trackingHandler.RegisterRoutes(apiV1)
	discoveryHandler.RegisterRoutes(apiV1.Group("/discovery"))

	// WebSocket routes
	r.ws.RegisterRoutes(router.Group("/ws"))

	// Documentation routes
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
