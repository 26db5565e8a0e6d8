package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo on Postgres. Uniqueness is enforced by the
// lower(email)/lower(username) unique indexes.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, name, username, email, password_hash)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, username, email, password_hash, created_at`
	created, err := scanUser(r.DB.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Username, user.Email, user.PasswordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateUser
		}
		return User{}, err
	}
	return created, nil
}

func (r *PGRepo) FindByEmailOrUsername(ctx context.Context, email, username string) (User, error) {
	const query = `
SELECT id, name, username, email, password_hash, created_at
FROM users
WHERE ($1 <> '' AND lower(email) = lower($1))
   OR ($2 <> '' AND lower(username) = lower($2))
LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email, username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `SELECT id, name, username, email, password_hash, created_at FROM users WHERE id = $1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	return user, err
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repo = (*PGRepo)(nil)
