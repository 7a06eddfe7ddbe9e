package security

import (
	"fmt"
	"log/slog"

	"github.com/yourorg/storefront/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermManageCatalog Permission = "manage_catalog"
	PermManageOrders  Permission = "manage_orders"
	PermViewAllOrders Permission = "view_all_orders"
	PermPlaceOrders   Permission = "place_orders"
	PermManageStore   Permission = "manage_store"
	PermManageBilling Permission = "manage_billing"
	PermManagePlans   Permission = "manage_plans"
)

// RolePermissions maps roles to their permissions. Plan catalog writes
// are platform-admin only; everything store-scoped belongs to the owner.
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermManageCatalog,
		PermManageOrders,
		PermViewAllOrders,
		PermPlaceOrders,
		PermManageStore,
		PermManageBilling,
		PermManagePlans,
	},
	domain.RoleOwner: {
		PermManageCatalog,
		PermManageOrders,
		PermViewAllOrders,
		PermManageStore,
		PermManageBilling,
	},
	domain.RoleCustomer: {
		PermPlaceOrders,
	},
}

// Authorizer answers role and ownership questions for handlers. Route
// middleware gates coarse role access; the authorizer covers the checks
// that need the resource in hand.
type Authorizer struct {
	logger *slog.Logger
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{logger: logger}
}

// HasPermission checks if a role has a specific permission
func (a *Authorizer) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (a *Authorizer) ValidatePermission(role domain.Role, permission Permission) error {
	if !a.HasPermission(role, permission) {
		a.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s role cannot %s", role, permission)
	}
	return nil
}

// CanAccessOrder reports whether a user may read an order. Roles with
// store-wide order visibility see everything; customers only their own.
func (a *Authorizer) CanAccessOrder(userID string, role domain.Role, order *domain.Order) bool {
	if a.HasPermission(role, PermViewAllOrders) {
		return true
	}
	if order.UserID != userID {
		a.logger.Warn("order access denied",
			slog.String("user_id", userID),
			slog.String("order_id", order.ID),
		)
		return false
	}
	return true
}

// ValidateStoreAccess checks that a store-scoped token matches the
// resolved tenant. Platform admins operate across stores.
func (a *Authorizer) ValidateStoreAccess(role domain.Role, tokenStoreID, storeID string) error {
	if role == domain.RoleAdmin {
		return nil
	}
	if tokenStoreID != storeID {
		a.logger.Warn("store access denied",
			slog.String("token_store", tokenStoreID),
			slog.String("requested_store", storeID),
		)
		return fmt.Errorf("access denied: invalid store")
	}
	return nil
}
