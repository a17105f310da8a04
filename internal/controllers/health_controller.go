package controllers

import (
	"net/http"
	"time"

	"github.com/bluefin-labs/enterprise-api/internal/app"
	"github.com/bluefin-labs/enterprise-api/internal/dtos"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

type HealthController struct {
	app *app.App
}

func NewHealthController(app *app.App) *HealthController {
	return &HealthController{
		app: app,
	}
}

// RootHandler describes the service.
func (c *HealthController) RootHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, dtos.RootResponse{
		Message:     c.app.Config.AppName,
		Version:     c.app.Config.Version,
		Environment: c.app.Config.Env,
	})
}

// HealthCheckHandler reports OK when the database answers a ping.
func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := c.app.DB.Ping(r.Context()); err != nil {
		utils.Logger.WithError(err).Error("Database unreachable")
		utils.RespondErrorWithCode(
			w,
			http.StatusServiceUnavailable,
			utils.ErrCodeInternal,
			"Database unreachable",
			nil,
			err,
		)
		return
	}

	resp := dtos.HealthResponse{
		Status: "OK",
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// LivenessHandler is the Kubernetes liveness probe. It answers as long
// as the process is serving requests.
func (c *HealthController) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthResponse{Status: "alive"})
}

// ReadinessHandler is the Kubernetes readiness probe: ready once the
// database accepts connections.
func (c *HealthController) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if err := c.app.DB.Ping(r.Context()); err != nil {
		utils.Logger.WithError(err).Warn("Readiness probe failed")
		utils.RespondErrorWithCode(
			w,
			http.StatusServiceUnavailable,
			utils.ErrCodeInternal,
			"Database unreachable",
			nil,
			err,
		)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthResponse{Status: "ready"})
}

// DetailedHealthHandler reports per-dependency status. Redis being down
// degrades the response but does not fail it, since the API serves
// without its cache.
func (c *HealthController) DetailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]dtos.ComponentHealth)
	overall := "OK"
	status := http.StatusOK

	start := time.Now()
	if err := c.app.DB.Ping(r.Context()); err != nil {
		components["database"] = dtos.ComponentHealth{Status: "DOWN", Error: err.Error()}
		overall = "DOWN"
		status = http.StatusServiceUnavailable
	} else {
		components["database"] = dtos.ComponentHealth{Status: "OK", Latency: time.Since(start).String()}
	}

	start = time.Now()
	if err := c.app.Cache.Ping(r.Context()); err != nil {
		components["redis"] = dtos.ComponentHealth{Status: "DOWN", Error: err.Error()}
		if overall == "OK" {
			overall = "DEGRADED"
		}
	} else {
		components["redis"] = dtos.ComponentHealth{Status: "OK", Latency: time.Since(start).String()}
	}

	utils.RespondWithJSON(w, status, dtos.DetailedHealthResponse{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		Components: components,
	})
}
