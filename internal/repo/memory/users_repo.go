package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskhub/taskhub/internal/domain/user"
)

// UsersRepo keeps users in a map and mirrors the postgres repo contract,
// including the delete cascade into an attached tasks repo.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
	tasks *TasksRepo
}

func NewUsersRepo(tasks *TasksRepo) *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
		tasks: tasks,
	}
}

func (r *UsersRepo) Create(_ context.Context, email, passwordHash, firstName, lastName string, roles []string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.items {
		if u.Email == email {
			return user.User{}, user.ErrEmailTaken
		}
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        slices.Clone(roles),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.items[u.ID] = u

	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == email {
			return u, nil
		}
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Promote(_ context.Context, id, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return user.ErrNotFound
	}

	if !u.HasRole(role) {
		u.Roles = append(slices.Clone(u.Roles), role)
		u.UpdatedAt = time.Now().UTC()
		r.items[id] = u
	}

	return nil
}

func (r *UsersRepo) ListWithTasks(ctx context.Context) ([]user.Summary, error) {
	r.mu.RLock()

	users := make([]user.User, 0, len(r.items))

	for _, u := range r.items {
		users = append(users, u)
	}

	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}

		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	out := make([]user.Summary, 0, len(users))

	for _, u := range users {
		s := user.Summary{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Roles:     slices.Clone(u.Roles),
			Tasks:     []user.TaskSummary{},
		}

		tasks, _ := r.tasks.ListByOwner(ctx, u.ID)

		for _, t := range tasks {
			s.Tasks = append(s.Tasks, user.TaskSummary{
				ID:       t.ID,
				Text:     t.Text,
				DueDate:  t.DueDate,
				Complete: t.Complete,
			})
		}

		out = append(out, s)
	}

	return out, nil
}

func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()

	_, ok := r.items[id]

	if !ok {
		r.mu.Unlock()
		return user.ErrNotFound
	}

	delete(r.items, id)
	r.mu.Unlock()

	r.tasks.DeleteByOwner(id)

	return nil
}
