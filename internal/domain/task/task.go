package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultDueIn is applied whenever a create or update omits the due date.
const DefaultDueIn = 7 * 24 * time.Hour

type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	DueDate   time.Time `json:"dueDate"`
	Complete  bool      `json:"complete"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("task not found")

type CreateTaskRequest struct {
	Text    string     `json:"text" binding:"required,max=80"`
	DueDate *time.Time `json:"dueDate"`
}

type AssignTaskRequest struct {
	Email   string     `json:"email" binding:"required,email"`
	Text    string     `json:"text" binding:"required,max=80"`
	DueDate *time.Time `json:"dueDate"`
}

// a full update payload; a nil dueDate re-defaults rather than preserving the old one
type UpdateTaskRequest struct {
	Text     string     `json:"text" binding:"required,max=80"`
	DueDate  *time.Time `json:"dueDate"`
	Complete bool       `json:"complete"`
}

// New builds a Task for the given owner. Text is assumed already sanitized.
func New(ownerID, text string, dueDate *time.Time) Task {
	now := time.Now().UTC()

	due := now.Add(DefaultDueIn)

	if dueDate != nil {
		due = *dueDate
	}

	return Task{
		ID:        uuid.NewString(),
		Text:      text,
		DueDate:   due,
		Complete:  false,
		UserID:    ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DueOrDefault resolves an optional due date the same way New does.
func DueOrDefault(dueDate *time.Time) time.Time {
	if dueDate != nil {
		return *dueDate
	}

	return time.Now().UTC().Add(DefaultDueIn)
}
