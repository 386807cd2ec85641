package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
}

func (f *fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if f.verifyFn != nil {
		return f.verifyFn(token)
	}

	return nil, errors.New("invalid")
}

func okHandler(c *gin.Context) {
	c.Status(http.StatusOK)
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.NewString()

	verifier := &fakeVerifier{
		verifyFn: func(token string) (*auth.Claims, error) {
			if token == "good" {
				return &auth.Claims{
					UserID: userID,
					Email:  "alice@example.com",
					Roles:  []string{user.RoleUser},
				}, nil
			}
			return nil, errors.New("invalid")
		},
	}

	tests := []struct {
		name           string
		header         string
		wantStatusCode int
	}{
		{
			name:           "valid token passes",
			header:         "Bearer good",
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing header",
			header:         "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			header:         "Basic Zm9vOmJhcg==",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "bad token",
			header:         "Bearer forged",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "empty bearer",
			header:         "Bearer ",
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := middlewares.NewAuthMiddleware(verifier)

			r := gin.New()
			r.GET("/tasks", m.RequireAuth(), func(c *gin.Context) {
				p, ok := middlewares.PrincipalFromContext(c)
				if !ok {
					t.Fatalf("principal missing after RequireAuth")
				}
				if p.ID != userID {
					t.Fatalf("got principal %q, want %q", p.ID, userID)
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name           string
		roles          []string
		wantStatusCode int
	}{
		{
			name:           "admin passes",
			roles:          []string{user.RoleAdmin},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "dual-role admin passes",
			roles:          []string{user.RoleUser, user.RoleAdmin},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "regular user is forbidden",
			roles:          []string{user.RoleUser},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "no roles is forbidden",
			roles:          nil,
			wantStatusCode: http.StatusForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := middlewares.NewAuthMiddleware(&fakeVerifier{})

			inject := func(c *gin.Context) {
				middlewares.SetPrincipal(c, authz.Principal{ID: uuid.NewString(), Roles: tc.roles}, "x@example.com")
			}

			r := gin.New()
			r.GET("/admin/users", inject, m.RequireAdmin(), okHandler)

			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRequireAdminWithoutIdentity(t *testing.T) {
	m := middlewares.NewAuthMiddleware(&fakeVerifier{})

	r := gin.New()
	r.GET("/admin/users", m.RequireAdmin(), okHandler)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestKeyByUserOrIP(t *testing.T) {
	t.Run("authenticated request keys by user", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/tasks", nil)

		id := uuid.NewString()
		middlewares.SetPrincipal(c, authz.Principal{ID: id, Roles: []string{user.RoleUser}}, "a@example.com")

		if got := middlewares.KeyByUserOrIP(c); got != "user:"+id {
			t.Fatalf("got key %q, want user-scoped key", got)
		}
	})

	t.Run("anonymous request falls back to IP", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/tasks", nil)

		got := middlewares.KeyByUserOrIP(c)

		if got == "" || got == "user:" {
			t.Fatalf("expected an IP key, got %q", got)
		}
	})
}

func TestMemoryLimiter(t *testing.T) {
	l := middlewares.NewMemoryLimiter(2, time.Minute)

	for i := 0; i < 2; i++ {
		allowed, _, err := l.Allow(nil, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := l.Allow(nil, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("third request should be limited")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected a positive retry-after, got %v", retryAfter)
	}

	// other keys are unaffected
	allowed, _, err = l.Allow(nil, "5.6.7.8")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatalf("a different client must not share the window")
	}
}
