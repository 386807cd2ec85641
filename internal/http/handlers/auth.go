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
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

// SessionManager is what the auth endpoints need from the session layer;
// kept small so tests can fake it.
type SessionManager interface {
	Issue(ctx context.Context, u user.User) (access string, refreshRaw string, refreshExp time.Time, err error)
	Rotate(ctx context.Context, rawRefresh string) (access string, newRaw string, newExp time.Time, err error)
	Revoke(ctx context.Context, rawRefresh string) error
}

type AuthHandler struct {
	users     UserReader
	sessions  SessionManager
	sanitizer *sanitize.Sanitizer
	cfg       config.Config
}

func NewAuthHandler(users UserReader, sessions SessionManager, sanitizer *sanitize.Sanitizer, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:     users,
		sessions:  sessions,
		sanitizer: sanitizer,
		cfg:       cfg,
	}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// markup never belongs in an email; anything stripped means no match,
	// which falls through to the same generic 401 below
	email := h.sanitizer.Clean(req.Email)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, email)

	if err != nil {
		// same message for unknown email and wrong password
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		RespondInternal(ctx, "Could not sign in")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	access, refreshRaw, refreshExp, err := h.sessions.Issue(cctx, foundUser)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, refreshRaw, refreshExp)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": access,
	})
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	access, newRaw, newExp, err := h.sessions.Rotate(cctx, raw)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExp)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": access,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)

	if err == nil && raw != "" {
		cctx, cancel := config.WithTimeout(3 * time.Second)
		defer cancel()

		_ = h.sessions.Revoke(cctx, raw)
	}

	// clear the cookie regardless
	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

const refreshCookieName = "refresh_token"

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		refreshCookieName,
		raw,
		maxAge,
		"/users",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		refreshCookieName,
		"",
		-1,
		"/users",
		"",
		secure,
		true,
	)
}
