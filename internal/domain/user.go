package domain

import (
	"context"
	"time"
)

// Role restricts what a user may do. Admins bypass subscription gating.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOwner    Role = "OWNER"
	RoleCustomer Role = "CUSTOMER"
)

// User represents a system user. Owners and customers belong to a store;
// admins have an empty StoreID.
type User struct {
	ID           string // UUID
	Email        string // unique
	Name         string
	PasswordHash string // bcrypt, never returned in API responses
	Role         Role
	StoreID      string

	// Processor correlation for the store owner's billing relationship.
	ProcessorCustomerID string

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	ListByStore(ctx context.Context, storeID string) ([]*User, error)
}
