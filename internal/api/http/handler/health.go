package handler

import (
	"context"
	"net/http"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) bool
	Healthy() bool
}

type HealthHandler struct {
	pinger Pinger
}

func NewHealthHandler(pinger Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// Check reports process liveness. It never touches the backend.
func (h *HealthHandler) Check(ctx *gin.Context) {
	resp := dto.HealthResponse{Status: "ok"}
	if h.pinger != nil {
		resp.Backend = h.pinger.Healthy()
	}
	ctx.JSON(http.StatusOK, resp)
}

// Ping probes the backend session and answers with a bare boolean.
func (h *HealthHandler) Ping(ctx *gin.Context) {
	if h.pinger == nil {
		ctx.JSON(http.StatusOK, false)
		return
	}
	ctx.JSON(http.StatusOK, h.pinger.Ping(ctx.Request.Context()))
}
