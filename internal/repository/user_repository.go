package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workforce-auth/internal/domain"
)

// Querier is the subset of pgxpool.Pool used by repositories.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository defines persistence access for users. It is the user
// directory consulted by identity resolution.
type UserRepository interface {
	LookupByID(ctx context.Context, id string) (*domain.IdentitySnapshot, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*domain.UserCredentials, error)
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) (*domain.IdentitySnapshot, error)
}

type userRepository struct {
	db Querier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db Querier) UserRepository {
	return &userRepository{db: db}
}

const identityColumns = `id::text, email, first_name, last_name, status, position, team_id`

func (r *userRepository) LookupByID(ctx context.Context, id string) (*domain.IdentitySnapshot, error) {
	const query = `
        SELECT ` + identityColumns + `
        FROM users WHERE id=$1`

	snapshot, err := scanIdentity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return snapshot, nil
}

func (r *userRepository) GetCredentialsByEmail(ctx context.Context, email string) (*domain.UserCredentials, error) {
	const query = `
        SELECT ` + identityColumns + `, password_hash, hired_at, fired_at
        FROM users WHERE lower(email)=lower($1)`

	var (
		creds               domain.UserCredentials
		firstName, lastName string
		status, position    string
	)
	if err := r.db.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(
		&creds.Identity.ID,
		&creds.Identity.Email,
		&firstName,
		&lastName,
		&status,
		&position,
		&creds.Identity.TeamID,
		&creds.PasswordHash,
		&creds.HiredAt,
		&creds.FiredAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	creds.Identity.DisplayName = displayName(firstName, lastName)
	creds.Identity.Status = domain.UserStatus(status)
	creds.Identity.Position = domain.Position(position)
	return &creds, nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) (*domain.IdentitySnapshot, error) {
	const query = `
        UPDATE users
        SET status=$1,
            fired_at=CASE WHEN $1::text='fired' THEN CURRENT_DATE ELSE NULL END,
            updated_at=NOW()
        WHERE id=$2
        RETURNING ` + identityColumns

	snapshot, err := scanIdentity(r.db.QueryRow(ctx, query, string(status), id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return snapshot, nil
}

func scanIdentity(row pgx.Row) (*domain.IdentitySnapshot, error) {
	var (
		snapshot            domain.IdentitySnapshot
		firstName, lastName string
		status, position    string
	)
	if err := row.Scan(
		&snapshot.ID,
		&snapshot.Email,
		&firstName,
		&lastName,
		&status,
		&position,
		&snapshot.TeamID,
	); err != nil {
		return nil, err
	}
	snapshot.DisplayName = displayName(firstName, lastName)
	snapshot.Status = domain.UserStatus(status)
	snapshot.Position = domain.Position(position)
	return &snapshot, nil
}

func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	return err
}
