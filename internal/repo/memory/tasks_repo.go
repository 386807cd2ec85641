package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskhub/taskhub/internal/domain/task"
)

// TasksRepo is an in-memory mirror of the postgres tasks repo contract,
// used by handler tests.
type TasksRepo struct {
	mu    sync.RWMutex
	items map[string]task.Task
}

func NewTasksRepo() *TasksRepo {
	return &TasksRepo{
		items: make(map[string]task.Task),
	}
}

func (r *TasksRepo) Create(_ context.Context, t task.Task) (task.Task, error) {
	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()

	return t, nil
}

func (r *TasksRepo) ListByOwner(_ context.Context, ownerID string) ([]task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]task.Task, 0, len(r.items))

	for _, t := range r.items {
		if t.UserID == ownerID {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].ID < out[j].ID
		}

		return out[i].DueDate.Before(out[j].DueDate)
	})

	return out, nil
}

func (r *TasksRepo) GetByID(_ context.Context, id string) (task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]

	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	return t, nil
}

func (r *TasksRepo) Update(_ context.Context, id, text string, dueDate time.Time, complete bool) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]

	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	t.Text = text
	t.DueDate = dueDate
	t.Complete = complete
	t.UpdatedAt = time.Now().UTC()

	r.items[id] = t

	return t, nil
}

func (r *TasksRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.items[id]

	if !ok {
		return task.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

// DeleteByOwner backs the user-delete cascade.
func (r *TasksRepo) DeleteByOwner(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.items {
		if t.UserID == ownerID {
			delete(r.items, id)
		}
	}
}
