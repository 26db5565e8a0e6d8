package users

import "context"

// Repo persists user accounts. Email and username lookups are
// case-insensitive; Create enforces uniqueness on both.
type Repo interface {
	Create(ctx context.Context, user User) (User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
}
