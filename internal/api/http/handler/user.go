package handler

import (
	"context"
	"net/http"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/users"
	"github.com/gin-gonic/gin"
)

type UserDirectory interface {
	Get(ctx context.Context, username, organization string) (*users.User, error)
	Create(ctx context.Context, user users.User, organization string) (bool, error)
	Remove(ctx context.Context, username, organization string) (bool, error)
}

type UserHandler struct {
	directory UserDirectory
	delimiter string
}

func NewUserHandler(directory UserDirectory, delimiter string) *UserHandler {
	return &UserHandler{
		directory: directory,
		delimiter: delimiter,
	}
}

func (h *UserHandler) uniqueName(c *gin.Context) string {
	return users.UniqueName(c.Param("partner_id"), h.delimiter, c.Param("username"))
}

func (h *UserHandler) Get(c *gin.Context) {
	organization, ok := requireQuery(c, "organization")
	if !ok {
		return
	}

	user, err := h.directory.Get(c.Request.Context(), h.uniqueName(c), organization)
	if err != nil {
		writeError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// Create ignores any userName in the body; the path decides the name.
func (h *UserHandler) Create(c *gin.Context) {
	organization, ok := requireQuery(c, "organization")
	if !ok {
		return
	}

	var user users.User
	if err := c.ShouldBindJSON(&user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user.Username = h.uniqueName(c)

	created, err := h.directory.Create(c.Request.Context(), user, organization)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, created)
}

func (h *UserHandler) Remove(c *gin.Context) {
	organization, ok := requireQuery(c, "organization")
	if !ok {
		return
	}

	deleted, err := h.directory.Remove(c.Request.Context(), h.uniqueName(c), organization)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteUserResponse{DeleteStatus: deleted})
}
