package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/repo/postgres"
)

var ErrInvalidSession = errors.New("invalid session")

// RefreshTokenStore is the slice of the refresh-token repo the session
// layer uses. Consumer-side so tests can fake the storage.
type RefreshTokenStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, row postgres.RefreshTokenRow) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.RefreshTokenRow, error)
	Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID string) error
}

// Sessions pairs the JWT manager with the persisted refresh-token store:
// issue on login, rotate on refresh, revoke on logout or account
// deletion. Refresh tokens are stored hashed and rotated inside a
// row-locked transaction so two concurrent refreshes cannot both win.
type Sessions struct {
	jwt   *Manager
	store RefreshTokenStore
}

func NewSessions(jwt *Manager, store RefreshTokenStore) *Sessions {
	return &Sessions{jwt: jwt, store: store}
}

func (s *Sessions) Issue(ctx context.Context, u user.User) (access string, refreshRaw string, refreshExp time.Time, err error) {
	access, err = s.jwt.GenerateAccessToken(u.ID, u.Email, u.Roles)

	if err != nil {
		return "", "", time.Time{}, err
	}

	refreshRaw, jti, refreshExp, err := s.jwt.GenerateRefreshToken(u.ID, u.Email, u.Roles)

	if err != nil {
		return "", "", time.Time{}, err
	}

	err = s.persist(ctx, u.ID, jti, refreshRaw, refreshExp)

	if err != nil {
		return "", "", time.Time{}, err
	}

	return access, refreshRaw, refreshExp, nil
}

// Rotate validates rawRefresh, revokes it and issues a replacement pair.
func (s *Sessions) Rotate(ctx context.Context, rawRefresh string) (access string, newRaw string, newExp time.Time, err error) {
	claims, err := s.jwt.VerifyRefreshToken(rawRefresh)

	if err != nil {
		return "", "", time.Time{}, ErrInvalidSession
	}

	tx, err := s.store.BeginTx(ctx)

	if err != nil {
		return "", "", time.Time{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	row, err := s.store.GetForUpdate(ctx, tx, claims.JTI)

	if err != nil {
		return "", "", time.Time{}, ErrInvalidSession
	}

	if row.RevokedAt != nil {
		return "", "", time.Time{}, ErrInvalidSession
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		return "", "", time.Time{}, ErrInvalidSession
	}

	// hash must match the presented token (prevents token substitution)
	if row.TokenHash != s.jwt.HashRefreshToken(rawRefresh) {
		return "", "", time.Time{}, ErrInvalidSession
	}

	newRaw, newJTI, newExp, err := s.jwt.GenerateRefreshToken(row.UserID, claims.Email, claims.Roles)

	if err != nil {
		return "", "", time.Time{}, err
	}

	err = s.store.Revoke(ctx, tx, row.ID, &newJTI)

	if err != nil {
		return "", "", time.Time{}, err
	}

	newRow := postgres.RefreshTokenRow{
		ID:        newJTI,
		UserID:    row.UserID,
		TokenHash: s.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExp,
		CreatedAt: time.Now().UTC(),
	}

	err = s.store.Create(ctx, tx, newRow)

	if err != nil {
		return "", "", time.Time{}, err
	}

	err = tx.Commit(ctx)

	if err != nil {
		return "", "", time.Time{}, err
	}

	access, err = s.jwt.GenerateAccessToken(row.UserID, claims.Email, claims.Roles)

	if err != nil {
		return "", "", time.Time{}, err
	}

	return access, newRaw, newExp, nil
}

// Revoke invalidates the presented refresh token. Unknown or malformed
// tokens are ignored; logout is idempotent.
func (s *Sessions) Revoke(ctx context.Context, rawRefresh string) error {
	claims, err := s.jwt.VerifyRefreshToken(rawRefresh)

	if err != nil {
		return nil
	}

	tx, err := s.store.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	_ = s.store.Revoke(ctx, tx, claims.JTI, nil)

	return tx.Commit(ctx)
}

// RevokeAllForUser kills every live session for the user.
func (s *Sessions) RevokeAllForUser(ctx context.Context, userID string) error {
	tx, err := s.store.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = s.store.RevokeAllForUser(ctx, tx, userID)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Sessions) persist(ctx context.Context, userID, jti, raw string, expiresAt time.Time) error {
	tx, err := s.store.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	row := postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    userID,
		TokenHash: s.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = s.store.Create(ctx, tx, row)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
