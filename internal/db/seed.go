package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/domain/task"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/security"
)

func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	return insertUser(ctx, pool, user.User{
		ID:           uuid.NewString(),
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		FirstName:    cfg.AdminFirstName,
		LastName:     cfg.AdminLastName,
		Roles:        []string{user.RoleAdmin},
	})
}

// SeedDemoData plants a couple of regular users with starter tasks so a
// fresh dev database has something to look at. No-op when the users
// already exist.
func SeedDemoData(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if !cfg.SeedDemoData {
		return nil
	}

	demo := []struct {
		email     string
		firstName string
		lastName  string
	}{
		{"alice@example.com", "Alice", "Nguyen"},
		{"bob@example.com", "Bob", "Ferreira"},
	}

	for _, d := range demo {
		var id string

		err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, d.email).Scan(&id)

		if err == nil {
			continue
		}

		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		hash, err := security.HashPassword("changeme123")

		if err != nil {
			return err
		}

		u := user.User{
			ID:           uuid.NewString(),
			Email:        d.email,
			PasswordHash: hash,
			FirstName:    d.firstName,
			LastName:     d.lastName,
			Roles:        []string{user.RoleUser},
		}

		if err := insertUser(ctx, pool, u); err != nil {
			return err
		}

		starters := []task.Task{
			task.New(u.ID, "Review the onboarding checklist", nil),
			task.New(u.ID, "Set a new password", nil),
		}

		for _, t := range starters {
			_, err := pool.Exec(ctx, `
				INSERT INTO tasks (id, user_id, text, due_date, complete, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, t.ID, t.UserID, t.Text, t.DueDate, t.Complete, t.CreatedAt, t.UpdatedAt)

			if err != nil {
				return err
			}
		}
	}

	return nil
}

func insertUser(ctx context.Context, pool *pgxpool.Pool, u user.User) error {
	now := time.Now().UTC()

	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, roles, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Roles, now, now)

	return err
}
