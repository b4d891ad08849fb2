package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/EternisAI/silo-enroll/internal/tokens"
	"github.com/EternisAI/silo-enroll/internal/users"
	"github.com/gin-gonic/gin"
)

type Enroller interface {
	Enroll(ctx context.Context, req enrollment.Request) (*enrollment.Response, error)
}

type EnrollmentHandler struct {
	enroller  Enroller
	delimiter string
}

func NewEnrollmentHandler(enroller Enroller, delimiter string) *EnrollmentHandler {
	return &EnrollmentHandler{
		enroller:  enroller,
		delimiter: delimiter,
	}
}

func (h *EnrollmentHandler) Enroll(ctx *gin.Context) {
	organization, ok := requireQuery(ctx, "organization")
	if !ok {
		return
	}

	kind, err := tokens.ParseKind(ctx.Query("token_type"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	method, err := enrollment.ParseMethod(ctx.Query("method"))
	if err != nil {
		writeError(ctx, err)
		return
	}

	var body dto.EnrollRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	resp, err := h.enroller.Enroll(ctx.Request.Context(), enrollment.Request{
		PrincipalID:       users.UniqueName(ctx.Param("partner_id"), h.delimiter, ctx.Param("username")),
		Organization:      organization,
		Kind:              kind,
		Method:            method,
		ContinuationState: body.State,
		ChallengeResponse: body.ResponseChallenge,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}
