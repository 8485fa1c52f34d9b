package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"AlphaForge/internal/domain/models"
	domrepo "AlphaForge/internal/domain/repository"
	"AlphaForge/internal/services/features"
	"AlphaForge/internal/services/windows"
	"AlphaForge/internal/usecase"
	"AlphaForge/pkg/cache"
	xhttp "AlphaForge/pkg/http"
	xlogger "AlphaForge/pkg/logger"
)

// StatusHandler serves operational endpoints: liveness, batch progress,
// per-event outcomes, and the export schema.
type StatusHandler struct {
	reader    domrepo.PriceReader
	runner    *usecase.BatchRunner
	results   cache.Service
	scheduler *windows.Scheduler
	schema    *features.Schema
	l         *xlogger.Logger
}

// NewStatusHandler creates the handler.
func NewStatusHandler(
	reader domrepo.PriceReader,
	runner *usecase.BatchRunner,
	results cache.Service,
	scheduler *windows.Scheduler,
	schema *features.Schema,
	l *xlogger.Logger,
) *StatusHandler {
	return &StatusHandler{
		reader:    reader,
		runner:    runner,
		results:   results,
		scheduler: scheduler,
		schema:    schema,
		l:         l,
	}
}

// RegisterRoutes registers the API routes.
func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/api/v1/batch", h.BatchStatus)
	e.GET("/api/v1/events/:id", h.EventStatus)
	e.GET("/api/v1/windows", h.Windows)
	e.GET("/api/v1/schema", h.Schema)
}

var _ xhttp.Handler = (*StatusHandler)(nil)

// Health probes the price store.
func (h *StatusHandler) Health(c echo.Context) error {
	if err := h.reader.Health(c.Request().Context()); err != nil {
		if h.l != nil {
			h.l.Warn("health probe failed", xlogger.Error(err))
		}
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  err.Error(),
		})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// BatchStatus reports the live counters of the current or last run.
func (h *StatusHandler) BatchStatus(c echo.Context) error {
	s := h.runner.Summary()
	if s == nil {
		return xhttp.NotFoundResponse(c, "no batch has run yet")
	}
	return xhttp.SuccessResponse(c, s.Snapshot())
}

// EventStatus returns the recorded outcome of a single event.
func (h *StatusHandler) EventStatus(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, "event id required")
	}

	var res models.EventResult
	key := cache.GenerateKey("alphaforge:result", id)
	if err := h.results.Get(c.Request().Context(), key, &res); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "unknown or expired event id")
		}
		if h.l != nil {
			h.l.Error("result cache read failed", xlogger.String("event_id", id), xlogger.Error(err))
		}
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, res)
}

// Windows returns the compiled window catalog.
func (h *StatusHandler) Windows(c echo.Context) error {
	type windowDTO struct {
		Name             string `json:"name"`
		OffsetMinutes    int    `json:"offset_minutes,omitempty"`
		Anchor           string `json:"anchor,omitempty"`
		ToleranceMinutes int    `json:"tolerance_minutes"`
	}
	specs := h.scheduler.Specs()
	out := make([]windowDTO, 0, len(specs))
	for _, s := range specs {
		out = append(out, windowDTO{
			Name:             s.Name,
			OffsetMinutes:    s.OffsetMinutes,
			Anchor:           s.Anchor,
			ToleranceMinutes: int(h.scheduler.Tolerance(s.Name).Minutes()),
		})
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"version": h.scheduler.Version(),
		"windows": out,
	})
}

// Schema returns the versioned export column layout.
func (h *StatusHandler) Schema(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"version":         h.schema.Version(),
		"feature_columns": h.schema.FeatureColumns(),
		"target_columns":  h.schema.TargetColumns(),
		"width":           h.schema.Width(),
	})
}
