package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/payments"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,61}[a-z0-9])?$`)

// reservedSubdomains can never be claimed by a tenant.
var reservedSubdomains = map[string]bool{
	"www": true, "api": true, "admin": true, "app": true,
	"mail": true, "status": true, "docs": true,
}

// SignupParams captures a new merchant signup: an owner account plus their
// store in one unit.
type SignupParams struct {
	StoreName string
	Subdomain string
	OwnerName string
	Email     string
	Password  string
}

// StoreService manages store lifecycle: signup, profile updates, connected
// payout onboarding and deactivation.
type StoreService struct {
	stores    domain.StoreRepository
	users     domain.UserRepository
	processor payments.Processor
	resolver  *TenantResolver
	logger    *slog.Logger
}

// NewStoreService creates a new store service
func NewStoreService(
	stores domain.StoreRepository,
	users domain.UserRepository,
	processor payments.Processor,
	resolver *TenantResolver,
	logger *slog.Logger,
) *StoreService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreService{
		stores:    stores,
		users:     users,
		processor: processor,
		resolver:  resolver,
		logger:    logger,
	}
}

// Signup creates the owner user and their store. The store starts with no
// subscription; checkout follows as a separate step.
func (s *StoreService) Signup(ctx context.Context, params SignupParams) (*domain.Store, *domain.User, error) {
	sub := strings.ToLower(strings.TrimSpace(params.Subdomain))
	if !subdomainPattern.MatchString(sub) || reservedSubdomains[sub] {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrSubdomainTaken, sub)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	owner := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		Name:         params.OwnerName,
		PasswordHash: string(hash),
		Role:         domain.RoleOwner,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, owner); err != nil {
		return nil, nil, err
	}

	store := &domain.Store{
		Name:        params.StoreName,
		Subdomain:   sub,
		OwnerUserID: owner.ID,
		IsActive:    true,
	}
	if err := s.stores.Create(ctx, store); err != nil {
		return nil, nil, err
	}

	owner.StoreID = store.ID
	if err := s.users.Update(ctx, owner); err != nil {
		return nil, nil, fmt.Errorf("failed to link owner to store: %w", err)
	}

	s.logger.Info("store signed up",
		slog.String("store_id", store.ID),
		slog.String("subdomain", store.Subdomain),
	)
	return store, owner, nil
}

// StartPayoutOnboarding creates the store's connected payout account with
// the processor and returns the onboarding URL the owner is sent to.
func (s *StoreService) StartPayoutOnboarding(ctx context.Context, store *domain.Store, ownerEmail string) (string, error) {
	if store.ProcessorAccountID != "" && store.PayoutsEnabled {
		return "", fmt.Errorf("store %s already onboarded for payouts", store.ID)
	}

	account, err := s.processor.CreateConnectedAccount(ctx, store.ID, ownerEmail)
	if err != nil {
		return "", err
	}
	store.ProcessorAccountID = account.ID
	store.PayoutsEnabled = account.PayoutsEnabled
	store.ChargesEnabled = account.ChargesEnabled
	if err := s.stores.Update(ctx, store); err != nil {
		return "", err
	}
	s.resolver.InvalidateStore(store)
	return account.OnboardingURL, nil
}

// UpdateStore persists profile changes and drops stale resolver cache
// entries for the store's identifiers.
func (s *StoreService) UpdateStore(ctx context.Context, store *domain.Store) error {
	if store.CustomDomain != "" {
		store.CustomDomain = strings.ToLower(strings.TrimSpace(store.CustomDomain))
	}
	if err := s.stores.Update(ctx, store); err != nil {
		return err
	}
	s.resolver.InvalidateStore(store)
	return nil
}

// DeactivateStore soft-deletes a store. Data is retained; resolution and
// all tenant operations reject the store from now on.
func (s *StoreService) DeactivateStore(ctx context.Context, store *domain.Store) error {
	if err := s.stores.Deactivate(ctx, store.ID); err != nil {
		return err
	}
	s.resolver.InvalidateStore(store)
	s.logger.Info("store deactivated", slog.String("store_id", store.ID))
	return nil
}
