package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluefin-labs/enterprise-api/internal/app"
	"github.com/bluefin-labs/enterprise-api/internal/config"
	"github.com/bluefin-labs/enterprise-api/internal/dtos"
)

func newHealthController() *HealthController {
	return NewHealthController(&app.App{
		Config: &config.Config{
			AppName: "enterprise-api",
			Version: "1.0.0",
			Env:     "test",
		},
	})
}

func TestRootHandler(t *testing.T) {
	w := httptest.NewRecorder()
	newHealthController().RootHandler(w, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dtos.RootResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "enterprise-api", resp.Message)
	require.Equal(t, "1.0.0", resp.Version)
	require.Equal(t, "test", resp.Environment)
}

func TestLivenessProbe(t *testing.T) {
	w := httptest.NewRecorder()
	newHealthController().LivenessHandler(w, httptest.NewRequest("GET", "/health/live", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dtos.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "alive", resp.Status)
}
