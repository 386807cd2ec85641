package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/http/handlers"
	"github.com/taskhub/taskhub/internal/sanitize"
	"github.com/taskhub/taskhub/internal/security"
)

type fakeSessions struct {
	issueFn  func(ctx context.Context, u user.User) (string, string, time.Time, error)
	rotateFn func(ctx context.Context, raw string) (string, string, time.Time, error)
	revokeFn func(ctx context.Context, raw string) error
}

func (f *fakeSessions) Issue(ctx context.Context, u user.User) (string, string, time.Time, error) {
	if f.issueFn != nil {
		return f.issueFn(ctx, u)
	}

	return "access-token", "refresh-token", time.Now().Add(time.Hour), nil
}

func (f *fakeSessions) Rotate(ctx context.Context, raw string) (string, string, time.Time, error) {
	if f.rotateFn != nil {
		return f.rotateFn(ctx, raw)
	}

	return "", "", time.Time{}, errors.New("invalid")
}

func (f *fakeSessions) Revoke(ctx context.Context, raw string) error {
	if f.revokeFn != nil {
		return f.revokeFn(ctx, raw)
	}

	return nil
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("correct-horse")

	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	known := user.User{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		PasswordHash: hash,
		Roles:        []string{user.RoleUser},
	}

	users := &fakeUserReader{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			if email == known.Email {
				return known, nil
			}
			return user.User{}, user.ErrNotFound
		},
	}

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
		wantMessage    string
	}{
		{
			name:           "success",
			body:           `{"email":"alice@example.com","password":"correct-horse"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "wrong password",
			body:           `{"email":"alice@example.com","password":"wrong"}`,
			wantStatusCode: http.StatusUnauthorized,
			wantMessage:    "Email or password is incorrect.",
		},
		{
			name:           "unknown email gets the same message",
			body:           `{"email":"nobody@example.com","password":"correct-horse"}`,
			wantStatusCode: http.StatusUnauthorized,
			wantMessage:    "Email or password is incorrect.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := handlers.NewAuthHandler(users, &fakeSessions{}, sanitize.New(), config.Config{Env: "test"})

			r := setupRouter(http.MethodPost, "/users/login", h.Login)

			w := doJSON(r, http.MethodPost, "/users/login", tc.body)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}

			if tc.wantStatusCode == http.StatusOK {
				var resp struct {
					AccessToken string `json:"accessToken"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if resp.AccessToken == "" {
					t.Fatalf("expected an access token, body=%s", w.Body.String())
				}

				// refresh token travels only in the cookie
				cookies := w.Result().Cookies()
				var found bool
				for _, c := range cookies {
					if c.Name == "refresh_token" && c.Value != "" {
						found = true
						if !c.HttpOnly {
							t.Fatalf("refresh cookie must be HttpOnly")
						}
					}
				}
				if !found {
					t.Fatalf("expected a refresh_token cookie, got %v", cookies)
				}
				return
			}

			var resp struct {
				Error handlers.APIError `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Error.Message != tc.wantMessage {
				t.Fatalf("credential failures must share one message, got %q", resp.Error.Message)
			}
		})
	}
}

func TestLoginStoreFailureIsNotUnauthorized(t *testing.T) {
	users := &fakeUserReader{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			return user.User{}, errors.New("connection refused")
		},
	}

	h := handlers.NewAuthHandler(users, &fakeSessions{}, sanitize.New(), config.Config{Env: "test"})

	r := setupRouter(http.MethodPost, "/users/login", h.Login)

	w := doJSON(r, http.MethodPost, "/users/login", `{"email":"alice@example.com","password":"whatever"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("a store failure must not read as bad credentials: got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	t.Run("missing cookie", func(t *testing.T) {
		h := handlers.NewAuthHandler(&fakeUserReader{}, &fakeSessions{}, sanitize.New(), config.Config{Env: "test"})

		r := setupRouter(http.MethodPost, "/users/refresh", h.Refresh)

		req := httptest.NewRequest(http.MethodPost, "/users/refresh", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("valid cookie rotates", func(t *testing.T) {
		sessions := &fakeSessions{
			rotateFn: func(ctx context.Context, raw string) (string, string, time.Time, error) {
				if raw != "old-refresh" {
					return "", "", time.Time{}, errors.New("invalid")
				}
				return "new-access", "new-refresh", time.Now().Add(time.Hour), nil
			},
		}

		h := handlers.NewAuthHandler(&fakeUserReader{}, sessions, sanitize.New(), config.Config{Env: "test"})

		r := setupRouter(http.MethodPost, "/users/refresh", h.Refresh)

		req := httptest.NewRequest(http.MethodPost, "/users/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "old-refresh"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		var resp struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.AccessToken != "new-access" {
			t.Fatalf("expected rotated access token, got %q", resp.AccessToken)
		}
	})
}

func TestLogout(t *testing.T) {
	var revoked []string

	sessions := &fakeSessions{
		revokeFn: func(ctx context.Context, raw string) error {
			revoked = append(revoked, raw)
			return nil
		},
	}

	h := handlers.NewAuthHandler(&fakeUserReader{}, sessions, sanitize.New(), config.Config{Env: "test"})

	r := setupRouter(http.MethodPost, "/users/logout", h.Logout)

	req := httptest.NewRequest(http.MethodPost, "/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "live-refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if len(revoked) != 1 || revoked[0] != "live-refresh" {
		t.Fatalf("expected the presented token revoked, got %v", revoked)
	}

	// without a cookie logout is still a 204
	req = httptest.NewRequest(http.MethodPost, "/users/logout", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("cookieless logout got status %d", w.Code)
	}
}
