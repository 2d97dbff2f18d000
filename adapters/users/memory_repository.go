package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/regrant/regrant-auth/core"
)

// MemoryRepository is an in-memory implementation of the UserRepository
type MemoryRepository struct {
	byID      map[string]*core.User
	byAddress map[string]string
	mu        sync.RWMutex
}

// NewMemoryRepository creates a new in-memory user repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[string]*core.User),
		byAddress: make(map[string]string),
	}
}

func (r *MemoryRepository) FindByAddress(ctx context.Context, walletAddress string) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAddress[core.NormalizeAddress(walletAddress)]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return clone(user), nil
}

func (r *MemoryRepository) Create(ctx context.Context, user *core.User) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := core.NormalizeAddress(user.WalletAddress)
	if id, ok := r.byAddress[key]; ok {
		return clone(r.byID[id]), nil
	}

	stored := clone(user)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	r.byID[stored.ID] = stored
	r.byAddress[key] = stored.ID

	return clone(stored), nil
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, id string, upd core.ProfileUpdate) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}

	if upd.Email != nil {
		for otherID, other := range r.byID {
			if otherID != id && other.Email != nil && *other.Email == *upd.Email {
				return nil, core.ErrEmailTaken
			}
		}
		email := *upd.Email
		user.Email = &email
	}
	if upd.FullName != nil {
		fullName := *upd.FullName
		user.FullName = &fullName
	}
	now := time.Now().UTC()
	user.UpdatedAt = &now

	return clone(user), nil
}

// SetActive toggles is_active, used to disable accounts
func (r *MemoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return core.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.IsActive = active
	user.UpdatedAt = &now
	return nil
}

// Count returns the number of stored users
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

func clone(u *core.User) *core.User {
	c := *u
	return &c
}
