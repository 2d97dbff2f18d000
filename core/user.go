package core

import "time"

// Role is the marketplace role of a user
type Role string

const (
	RoleStudent    Role = "student"
	RoleResearcher Role = "researcher"
	RoleAdmin      Role = "admin"
)

// DefaultRole is assigned to users created on first wallet login
const DefaultRole = RoleStudent

// User is an account identified by its wallet address
type User struct {
	ID            string
	WalletAddress string // Checksum-formatted
	Email         *string
	FullName      *string
	Role          Role
	IsActive      bool
	IsSuperuser   bool
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Email    *string
	FullName *string
}

// NewWalletUser returns a user with the defaults applied to wallet sign-ups
func NewWalletUser(walletAddress string) *User {
	return &User{
		WalletAddress: walletAddress,
		Role:          DefaultRole,
		IsActive:      true,
	}
}
