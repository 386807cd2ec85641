package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/domain/task"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/http/middlewares"
	"github.com/taskhub/taskhub/internal/sanitize"
	"github.com/taskhub/taskhub/internal/utils"
)

type TasksStore interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]task.Task, error)
	GetByID(ctx context.Context, id string) (task.Task, error)
	Update(ctx context.Context, id, text string, dueDate time.Time, complete bool) (task.Task, error)
	Delete(ctx context.Context, id string) error
}

type TasksHandler struct {
	store     TasksStore
	users     UserReader
	sanitizer *sanitize.Sanitizer
}

func NewTasksHandler(store TasksStore, users UserReader, sanitizer *sanitize.Sanitizer) *TasksHandler {
	return &TasksHandler{
		store:     store,
		users:     users,
		sanitizer: sanitizer,
	}
}

// GET /tasks

func (h *TasksHandler) ListOwn(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	tasks, err := h.store.ListByOwner(cctx, p.ID)

	if err != nil {
		RespondInternal(ctx, "Could not list tasks")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": tasks,
		"count": len(tasks),
	})
}

// GET /admin/tasks/:userId

func (h *TasksHandler) AdminListForUser(ctx *gin.Context) {
	targetID := ctx.Param("userId")

	if !utils.IsUUID(targetID) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	tasks, err := h.store.ListByOwner(cctx, targetID)

	if err != nil {
		RespondInternal(ctx, "Could not list tasks")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": tasks,
		"count": len(tasks),
	})
}

// POST /tasks

func (h *TasksHandler) Create(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req task.CreateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	text := h.sanitizer.Clean(req.Text)

	if text == "" {
		RespondBadRequest(ctx, "Invalid request body", ValidationFields(map[string]string{
			"text": "Task cannot be empty",
		}))
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	created, err := h.store.Create(cctx, task.New(p.ID, text, req.DueDate))

	if err != nil {
		RespondInternal(ctx, "Could not create task")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// POST /admin/tasks/assign

func (h *TasksHandler) Assign(ctx *gin.Context) {
	var req task.AssignTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	target, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not assign task")
		return
	}

	// unlike self-create, an empty-after-sanitize text is accepted here
	text := h.sanitizer.Clean(req.Text)

	created, err := h.store.Create(cctx, task.New(target.ID, text, req.DueDate))

	if err != nil {
		RespondInternal(ctx, "Could not assign task")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// PUT /tasks/:id and PUT /admin/tasks/:id

func (h *TasksHandler) Update(ctx *gin.Context) {
	h.update(ctx, authz.WriteOwn)
}

func (h *TasksHandler) AdminUpdate(ctx *gin.Context) {
	h.update(ctx, authz.WriteAny)
}

func (h *TasksHandler) update(ctx *gin.Context, op authz.Operation) {
	var req task.UpdateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	t, ok := h.loadAuthorized(ctx, op)

	if !ok {
		return
	}

	text := h.sanitizer.Clean(req.Text)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	updated, err := h.store.Update(cctx, t.ID, text, task.DueOrDefault(req.DueDate), req.Complete)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}

		RespondInternal(ctx, "Could not update task")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// DELETE /tasks/:id and DELETE /admin/tasks/:id

func (h *TasksHandler) Delete(ctx *gin.Context) {
	h.remove(ctx, authz.DeleteOwn)
}

func (h *TasksHandler) AdminDelete(ctx *gin.Context) {
	h.remove(ctx, authz.DeleteAny)
}

func (h *TasksHandler) remove(ctx *gin.Context, op authz.Operation) {
	t, ok := h.loadAuthorized(ctx, op)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.store.Delete(cctx, t.ID)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}

		RespondInternal(ctx, "Could not delete task")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// loadAuthorized fetches the task named by the :id param and runs the
// authorization policy against its owner. A Deny comes back as the same
// 404 an absent row produces, so existence is not leaked to non-owners.
func (h *TasksHandler) loadAuthorized(ctx *gin.Context, op authz.Operation) (task.Task, bool) {
	p, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return task.Task{}, false
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "task id must be a valid UUID", nil)
		return task.Task{}, false
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	t, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return task.Task{}, false
		}

		RespondInternal(ctx, "Could not load task")
		return task.Task{}, false
	}

	if authz.Authorize(p, op, t.UserID) != authz.Allow {
		RespondNotFound(ctx, "Task not found")
		return task.Task{}, false
	}

	return t, true
}
