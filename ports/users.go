package ports

import (
	"context"

	"github.com/regrant/regrant-auth/core"
)

// UserRepository persists users. Lookups by address are case-insensitive and
// return core.ErrUserNotFound when nothing matches.
type UserRepository interface {
	FindByAddress(ctx context.Context, walletAddress string) (*core.User, error)
	FindByID(ctx context.Context, id string) (*core.User, error)
	// Create stores a new user. If a user with the same wallet address already
	// exists, the stored one is returned instead.
	Create(ctx context.Context, user *core.User) (*core.User, error)
	// UpdateProfile applies the non-nil fields of upd. A duplicate email is
	// core.ErrEmailTaken.
	UpdateProfile(ctx context.Context, id string, upd core.ProfileUpdate) (*core.User, error)
}
