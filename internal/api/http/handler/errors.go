package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/EternisAI/silo-enroll/internal/session"
	"github.com/EternisAI/silo-enroll/internal/tokens"
	"github.com/gin-gonic/gin"
)

func writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrBackendUnavailable):
		slog.Warn("Backend unavailable", "path", ctx.Request.URL.Path, "error", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Authentication backend is unavailable"})
	case errors.Is(err, tokens.ErrUnsupportedKind),
		errors.Is(err, tokens.ErrUnsupportedState),
		errors.Is(err, enrollment.ErrUnsupportedMethod):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("Request failed", "path", ctx.Request.URL.Path, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requireQuery(ctx *gin.Context, name string) (string, bool) {
	value := ctx.Query(name)
	if value == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter: " + name})
		return "", false
	}
	return value, true
}
