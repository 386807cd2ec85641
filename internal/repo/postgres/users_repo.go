package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/observability"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}

	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	return false
}

const userColumns = `id, email, password_hash, first_name, last_name, roles, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Roles,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		))

		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		))

		return err
	})

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, firstName, lastName string, roles []string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Roles, u.CreatedAt, u.UpdatedAt,
		)

		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

// Promote appends role to the user's role set. Adding an already-held role
// is a no-op success.
func (r *UsersRepo) Promote(ctx context.Context, id, role string) error {
	return r.observe("users.promote", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users
			SET roles = array_append(roles, $2),
					updated_at = NOW()
			WHERE id = $1 AND NOT ($2 = ANY(roles))`,
			id, role,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() > 0 {
			return nil
		}

		// zero rows: either the role is already held or the user is gone
		var dummy string

		err = r.pool.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`, id).Scan(&dummy)

		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}

		return err
	})
}

// ListWithTasks returns every user with roles and eager-loaded task
// summaries, for the admin overview.
func (r *UsersRepo) ListWithTasks(ctx context.Context) ([]user.Summary, error) {
	var out []user.Summary

	err := r.observe("users.list_with_tasks", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, email, first_name, last_name, roles
			FROM users
			ORDER BY created_at ASC, id ASC`,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]user.Summary, 0, 16)
		index := make(map[string]int)

		for rows.Next() {
			var s user.Summary

			err = rows.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Roles)

			if err != nil {
				return err
			}

			s.Tasks = []user.TaskSummary{}
			index[s.ID] = len(out)
			out = append(out, s)
		}

		err = rows.Err()

		if err != nil {
			return err
		}

		taskRows, err := r.pool.Query(ctx,
			`SELECT id, text, due_date, complete, user_id
			FROM tasks
			ORDER BY due_date ASC, id ASC`,
		)

		if err != nil {
			return err
		}

		defer taskRows.Close()

		for taskRows.Next() {
			var t user.TaskSummary
			var ownerID string

			err = taskRows.Scan(&t.ID, &t.Text, &t.DueDate, &t.Complete, &ownerID)

			if err != nil {
				return err
			}

			if i, ok := index[ownerID]; ok {
				out[i].Tasks = append(out[i].Tasks, t)
			}
		}

		return taskRows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Delete removes the user; the tasks FK is ON DELETE CASCADE so their
// tasks go with them.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	return r.observe("users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}
