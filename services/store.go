package services

import (
	"context"

	"user-network/models"
)

// Store owns persisted users and the friendship relation. Every engine
// operation runs its reads and writes through a single Tx so guards and
// writes commit or roll back together.
type Store interface {
	// WithTx runs fn in a read-write transaction. A non-nil error from fn
	// rolls back every write fn made.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a consistent read-only view.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close(ctx context.Context) error
}

// Tx is the set of primitives available inside a transaction. Finders return
// (nil, nil) when the user does not exist.
type Tx interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	// Update persists profile fields only; the friend list is owned by
	// AddFriendship and RemoveFriendship.
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]models.User, error)
	// AddFriendship records a and b as friends of each other.
	AddFriendship(ctx context.Context, a, b string) error
	// RemoveFriendship drops both directions, each only if present.
	RemoveFriendship(ctx context.Context, a, b string) error
}
