// internal/handler/tracking_handler_test.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marvelmind-service/internal/config"
	"marvelmind-service/internal/driver/sim"
	"marvelmind-service/internal/service"
	"marvelmind-service/internal/utils"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.TrackingService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Modem: config.ModemConfig{
			Simulated:     true,
			OpenTimeout:   time.Second,
			RetryInterval: time.Millisecond,
		},
		Tracking: config.TrackingConfig{
			PollInterval: 5 * time.Millisecond,
		},
	}

	modem := sim.NewModem(
		sim.Beacon{Address: 5, TypeID: 42, FwMajor: 7, FwMinor: 2, X: 1500, Y: 300, Z: 50, Quality: 90},
		sim.Beacon{Address: 9, TypeID: 43, FwMajor: 7, FwMinor: 2, X: 0, Y: 0, Z: 0, Quality: 95},
	)

	svc := service.NewTrackingService(modem, nil, nil, cfg, zap.NewNop())
	ws := NewWebSocketHandler(svc, NewEventBus(zap.NewNop()), zap.NewNop())
	svc.AddPublisher(ws)

	router := gin.New()
	NewTrackingHandler(svc, ws, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))
	return router, svc
}

func doRequest(router *gin.Engine, method, path string) (*httptest.ResponseRecorder, *utils.APIResponse) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)

	var body utils.APIResponse
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, &body
}

func TestListBeaconsBeforeConnect(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doRequest(router, http.MethodGet, "/api/v1/beacons")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, body.Success)
}

func TestBeaconEndpoints(t *testing.T) {
	router, svc := newTestRouter(t)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	w, body := doRequest(router, http.MethodGet, "/api/v1/beacons")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)

	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["count"])

	w, body = doRequest(router, http.MethodGet, "/api/v1/beacons/5")
	require.Equal(t, http.StatusOK, w.Code)
	view, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), view["address"])
	assert.Equal(t, "7.02.0", view["firmware"])

	w, _ = doRequest(router, http.MethodGet, "/api/v1/beacons/999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(router, http.MethodGet, "/api/v1/beacons/not-a-number")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModemEndpoints(t *testing.T) {
	router, svc := newTestRouter(t)

	// Version is unknown until the first connect.
	w, _ := doRequest(router, http.MethodGet, "/api/v1/modem/version")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, body := doRequest(router, http.MethodGet, "/api/v1/modem/status")
	require.Equal(t, http.StatusOK, w.Code)
	status, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "DISCONNECTED", status["state"])

	w, _ = doRequest(router, http.MethodPost, "/api/v1/modem/connect")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.IsRunning())

	w, body = doRequest(router, http.MethodGet, "/api/v1/modem/version")
	require.Equal(t, http.StatusOK, w.Code)
	version, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "3.06", version["version"])

	w, _ = doRequest(router, http.MethodPost, "/api/v1/modem/disconnect")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.IsRunning())
}

func TestHistoryDisabled(t *testing.T) {
	router, svc := newTestRouter(t)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	w, _ := doRequest(router, http.MethodGet, "/api/v1/beacons/5/history")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w, _ = doRequest(router, http.MethodGet, "/api/v1/beacons/5/latest")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
