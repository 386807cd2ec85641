package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/http/handlers"
	"github.com/taskhub/taskhub/internal/sanitize"
)

type fakeUsersStore struct {
	createFn  func(ctx context.Context, email, passwordHash, firstName, lastName string, roles []string) (user.User, error)
	promoteFn func(ctx context.Context, id, role string) error
	listFn    func(ctx context.Context) ([]user.Summary, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (f *fakeUsersStore) Create(ctx context.Context, email, passwordHash, firstName, lastName string, roles []string) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, email, passwordHash, firstName, lastName, roles)
	}

	return user.User{ID: uuid.NewString(), Email: email, FirstName: firstName, LastName: lastName, Roles: roles}, nil
}

func (f *fakeUsersStore) Promote(ctx context.Context, id, role string) error {
	if f.promoteFn != nil {
		return f.promoteFn(ctx, id, role)
	}

	return nil
}

func (f *fakeUsersStore) ListWithTasks(ctx context.Context) ([]user.Summary, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}

	return []user.Summary{}, nil
}

func (f *fakeUsersStore) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

type fakeSessionRevoker struct {
	revokedFor []string
}

func (f *fakeSessionRevoker) RevokeAllForUser(ctx context.Context, userID string) error {
	f.revokedFor = append(f.revokedFor, userID)
	return nil
}

func newUsersRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, h)

	return r
}

// Register tests

func TestRegisterUser(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		storeSetUp     func(*fakeUsersStore)
		wantStatusCode int
		checkBody      func(t *testing.T, body []byte)
	}{
		{
			name:           "success gives the new user the regular role",
			body:           `{"email":"new@example.com","password":"hunter22","firstName":"New","lastName":"User"}`,
			wantStatusCode: http.StatusCreated,
			checkBody: func(t *testing.T, body []byte) {
				var created user.User
				if err := json.Unmarshal(body, &created); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if created.IsAdmin() {
					t.Fatalf("fresh registration must not be an admin: %v", created.Roles)
				}
				if !created.HasRole(user.RoleUser) {
					t.Fatalf("expected the %s role, got %v", user.RoleUser, created.Roles)
				}
			},
		},
		{
			name: "duplicate email",
			body: `{"email":"dupe@example.com","password":"hunter22","firstName":"New","lastName":"User"}`,
			storeSetUp: func(f *fakeUsersStore) {
				f.createFn = func(ctx context.Context, email, hash, first, last string, roles []string) (user.User, error) {
					return user.User{}, user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusConflict,
			checkBody: func(t *testing.T, body []byte) {
				var resp struct {
					Error handlers.APIError `json:"error"`
				}
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if resp.Error.Code != "email_taken" {
					t.Fatalf("unexpected code %q", resp.Error.Code)
				}
			},
		},
		{
			name:           "short password fails validation",
			body:           `{"email":"new@example.com","password":"abc","firstName":"New","lastName":"User"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "multiple missing fields reported together",
			body:           `{"email":"new@example.com"}`,
			wantStatusCode: http.StatusBadRequest,
			checkBody: func(t *testing.T, body []byte) {
				var resp struct {
					Error struct {
						Details struct {
							Fields []handlers.FieldError `json:"fields"`
						} `json:"details"`
					} `json:"error"`
				}
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if len(resp.Error.Details.Fields) < 3 {
					t.Fatalf("expected every missing field reported, got %+v", resp.Error.Details.Fields)
				}
			},
		},
		{
			name:           "email altered by sanitization names the real cause",
			body:           `{"email":"a&b@example.com","password":"hunter22","firstName":"New","lastName":"User"}`,
			wantStatusCode: http.StatusBadRequest,
			checkBody: func(t *testing.T, body []byte) {
				var resp struct {
					Error struct {
						Details struct {
							Fields []handlers.FieldError `json:"fields"`
						} `json:"details"`
					} `json:"error"`
				}
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}

				for _, f := range resp.Error.Details.Fields {
					if f.Field == "email" {
						if f.Message != "contains disallowed markup or characters" {
							t.Fatalf("violation mislabels the cause: %q", f.Message)
						}
						return
					}
				}

				t.Fatalf("missing email violation, got %+v", resp.Error.Details.Fields)
			},
		},
		{
			name:           "markup-only names rejected after sanitization",
			body:           `{"email":"new@example.com","password":"hunter22","firstName":"<b></b>","lastName":"<i></i>"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeUsersStore{}

			if tc.storeSetUp != nil {
				tc.storeSetUp(store)
			}

			h := handlers.NewUsersHandler(store, &fakeSessionRevoker{}, sanitize.New())

			r := newUsersRouter(http.MethodPost, "/admin/users", h.Register)

			w := doJSON(r, http.MethodPost, "/admin/users", tc.body)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}

			if tc.checkBody != nil {
				tc.checkBody(t, w.Body.Bytes())
			}
		})
	}
}

// Promote tests

func TestPromoteUser(t *testing.T) {
	knownID := uuid.NewString()

	tests := []struct {
		name           string
		id             string
		storeSetUp     func(*fakeUsersStore)
		wantStatusCode int
	}{
		{
			name:           "success",
			id:             knownID,
			wantStatusCode: http.StatusNoContent,
		},
		{
			name: "unknown user",
			id:   uuid.NewString(),
			storeSetUp: func(f *fakeUsersStore) {
				f.promoteFn = func(ctx context.Context, id, role string) error {
					return user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "malformed id",
			id:             "nope",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeUsersStore{}

			if tc.storeSetUp != nil {
				tc.storeSetUp(store)
			}

			h := handlers.NewUsersHandler(store, &fakeSessionRevoker{}, sanitize.New())

			r := newUsersRouter(http.MethodPost, "/admin/users/:id/promote", h.Promote)

			req := httptest.NewRequest(http.MethodPost, "/admin/users/"+tc.id+"/promote", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Listing

func TestListUsersWithTasks(t *testing.T) {
	store := &fakeUsersStore{
		listFn: func(ctx context.Context) ([]user.Summary, error) {
			return []user.Summary{
				{ID: uuid.NewString(), Email: "a@example.com", Tasks: []user.TaskSummary{{ID: uuid.NewString(), Text: "one"}}},
				{ID: uuid.NewString(), Email: "b@example.com", Tasks: []user.TaskSummary{}},
			}, nil
		},
	}

	h := handlers.NewUsersHandler(store, &fakeSessionRevoker{}, sanitize.New())

	r := newUsersRouter(http.MethodGet, "/admin/users", h.List)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Items []user.Summary `json:"items"`
		Count int            `json:"count"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 2 {
		t.Fatalf("expected 2 users, got %d", resp.Count)
	}

	if len(resp.Items[0].Tasks) != 1 {
		t.Fatalf("expected the first user's task to be embedded, got %+v", resp.Items[0])
	}
}

// Delete tests

func TestDeleteUser(t *testing.T) {
	knownID := uuid.NewString()

	t.Run("success revokes the user's sessions", func(t *testing.T) {
		sessions := &fakeSessionRevoker{}

		h := handlers.NewUsersHandler(&fakeUsersStore{}, sessions, sanitize.New())

		r := newUsersRouter(http.MethodDelete, "/admin/users/:id", h.Delete)

		req := httptest.NewRequest(http.MethodDelete, "/admin/users/"+knownID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		if len(sessions.revokedFor) != 1 || sessions.revokedFor[0] != knownID {
			t.Fatalf("expected sessions revoked for %s, got %v", knownID, sessions.revokedFor)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		store := &fakeUsersStore{
			deleteFn: func(ctx context.Context, id string) error {
				return user.ErrNotFound
			},
		}

		h := handlers.NewUsersHandler(store, &fakeSessionRevoker{}, sanitize.New())

		r := newUsersRouter(http.MethodDelete, "/admin/users/:id", h.Delete)

		req := httptest.NewRequest(http.MethodDelete, "/admin/users/"+uuid.NewString(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	})
}
