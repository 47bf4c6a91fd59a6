package handler

import (
	"context"
	"net/http"
	"time"

	"notebook-server/pkg/response"

	"go.uber.org/zap"
)

const serviceName = "notebook-server"

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	base
	db Pinger
}

func NewHealthHandler(db Pinger, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{
		base: newBase(logger),
		db:   db,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Errorw("health check failed", "error", err)
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": serviceName,
		})
		return
	}

	response.Success(w, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	response.Message(w, http.StatusOK, "pong")
}
