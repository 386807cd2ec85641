package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/sanitize"
	"github.com/taskhub/taskhub/internal/security"
	"github.com/taskhub/taskhub/internal/utils"
)

type UsersStore interface {
	Create(ctx context.Context, email, passwordHash, firstName, lastName string, roles []string) (user.User, error)
	Promote(ctx context.Context, id, role string) error
	ListWithTasks(ctx context.Context) ([]user.Summary, error)
	Delete(ctx context.Context, id string) error
}

// SessionRevoker lets account deletion kill the victim's live sessions.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

type UsersHandler struct {
	store     UsersStore
	sessions  SessionRevoker
	sanitizer *sanitize.Sanitizer
}

func NewUsersHandler(store UsersStore, sessions SessionRevoker, sanitizer *sanitize.Sanitizer) *UsersHandler {
	return &UsersHandler{
		store:     store,
		sessions:  sessions,
		sanitizer: sanitizer,
	}
}

// POST /admin/users

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// sanitize, then re-check what sanitization may have emptied out;
	// all violations are reported together
	email := h.sanitizer.Clean(req.Email)
	firstName := h.sanitizer.Clean(req.FirstName)
	lastName := h.sanitizer.Clean(req.LastName)

	violations := map[string]string{}

	if email != req.Email {
		violations["email"] = "contains disallowed markup or characters"
	}

	if firstName == "" {
		violations["firstName"] = "is required"
	}

	if lastName == "" {
		violations["lastName"] = "is required"
	}

	if len(violations) > 0 {
		RespondBadRequest(ctx, "Invalid request body", ValidationFields(violations))
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not register user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	created, err := h.store.Create(cctx, email, hash, firstName, lastName, []string{user.RoleUser})

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not register user")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// POST /admin/users/:id/promote

func (h *UsersHandler) Promote(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.store.Promote(cctx, id, user.RoleAdmin)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not promote user")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// GET /admin/users

func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.store.ListWithTasks(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": users,
		"count": len(users),
	})
}

// DELETE /admin/users/:id

func (h *UsersHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.store.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not delete user")
		return
	}

	// tasks go with the user (FK cascade); sessions die best-effort
	if h.sessions != nil {
		_ = h.sessions.RevokeAllForUser(cctx, id)
	}

	ctx.Status(http.StatusNoContent)
}
