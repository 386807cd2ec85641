package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskhub/taskhub/internal/domain/task"
	"github.com/taskhub/taskhub/internal/observability"
)

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}

	return fn()
}

const taskColumns = `id, text, due_date, complete, user_id, created_at, updated_at`

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task

	err := row.Scan(
		&t.ID,
		&t.Text,
		&t.DueDate,
		&t.Complete,
		&t.UserID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.observe("tasks.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.ID, t.Text, t.DueDate, t.Complete, t.UserID, t.CreatedAt, t.UpdatedAt,
		)

		return err
	})

	if err != nil {
		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) ListByOwner(ctx context.Context, ownerID string) ([]task.Task, error) {
	var out []task.Task

	err := r.observe("tasks.list_by_owner", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+taskColumns+`
			FROM tasks
			WHERE user_id = $1
			ORDER BY due_date ASC, id ASC`,
			ownerID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]task.Task, 0, 8)

		for rows.Next() {
			t, err := scanTask(rows)

			if err != nil {
				return err
			}

			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	var err error

	err = r.observe("tasks.get_by_id", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))

		return err
	})

	return t, err
}

func (r *TasksRepo) Update(ctx context.Context, id, text string, dueDate time.Time, complete bool) (task.Task, error) {
	var t task.Task
	var err error

	err = r.observe("tasks.update", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx,
			`UPDATE tasks
			SET text = $2, due_date = $3, complete = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING `+taskColumns,
			id, text, dueDate, complete))

		return err
	})

	return t, err
}

func (r *TasksRepo) Delete(ctx context.Context, id string) error {
	return r.observe("tasks.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return task.ErrNotFound
		}

		return nil
	})
}
