package handler

import (
	"context"
	"net/http"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/tokens"
	"github.com/EternisAI/silo-enroll/internal/users"
	"github.com/gin-gonic/gin"
)

type TokenCatalog interface {
	ListFiltered(ctx context.Context, owner, organization string, filter tokens.Filter) ([]*tokens.Token, error)
	Describe(ctx context.Context, serial, organization string) (*tokens.Token, error)
	RevokeBySerial(ctx context.Context, serial, organization string) (bool, error)
	RevokeFiltered(ctx context.Context, owner, organization string, filter tokens.Filter) (map[string]bool, error)
}

type TokenHandler struct {
	catalog   TokenCatalog
	delimiter string
}

func NewTokenHandler(catalog TokenCatalog, delimiter string) *TokenHandler {
	return &TokenHandler{
		catalog:   catalog,
		delimiter: delimiter,
	}
}

func (h *TokenHandler) List(ctx *gin.Context) {
	organization, ok := requireQuery(ctx, "organization")
	if !ok {
		return
	}
	filter, err := parseFilter(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}

	owner := users.UniqueName(ctx.Param("realm_id"), h.delimiter, ctx.Param("username"))
	list, err := h.catalog.ListFiltered(ctx.Request.Context(), owner, organization, filter)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewTokens(list))
}

func (h *TokenHandler) Describe(ctx *gin.Context) {
	organization, ok := requireQuery(ctx, "organization")
	if !ok {
		return
	}

	token, err := h.catalog.Describe(ctx.Request.Context(), ctx.Param("serial_number"), organization)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if token == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}

	ctx.JSON(http.StatusOK, dto.NewToken(token))
}

func (h *TokenHandler) Revoke(ctx *gin.Context) {
	organization, ok := requireQuery(ctx, "organization")
	if !ok {
		return
	}

	revoked, err := h.catalog.RevokeBySerial(ctx.Request.Context(), ctx.Param("serial_number"), organization)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, revoked)
}

func (h *TokenHandler) RevokeAll(ctx *gin.Context) {
	organization, ok := requireQuery(ctx, "organization")
	if !ok {
		return
	}
	filter, err := parseFilter(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}

	owner := users.UniqueName(ctx.Param("realm_id"), h.delimiter, ctx.Param("username"))
	results, err := h.catalog.RevokeFiltered(ctx.Request.Context(), owner, organization, filter)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, results)
}

func parseFilter(ctx *gin.Context) (tokens.Filter, error) {
	var filter tokens.Filter
	if v := ctx.Query("token_type"); v != "" {
		kind, err := tokens.ParseKind(v)
		if err != nil {
			return filter, err
		}
		filter.Kind = kind.String()
	}
	if v := ctx.Query("token_state"); v != "" {
		state, err := tokens.ParseState(v)
		if err != nil {
			return filter, err
		}
		filter.State = string(state)
	}
	return filter, nil
}
