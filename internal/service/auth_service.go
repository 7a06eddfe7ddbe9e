package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/infrastructure/redis"
	"github.com/yourorg/storefront/internal/security/auth"
)

const tokenTTL = 15 * time.Minute

// ErrEmailTaken is returned on registration when the email already has an
// account.
var ErrEmailTaken = errors.New("email already registered")

// AuthService handles authentication operations
type AuthService struct {
	userRepo domain.UserRepository
	subs     domain.SubscriptionRepository
	redis    *redis.Client
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service. redisClient may be
// nil; token revocation is then disabled.
func NewAuthService(
	userRepo domain.UserRepository,
	subs domain.SubscriptionRepository,
	redisClient *redis.Client,
	tokens *auth.TokenManager,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		userRepo: userRepo,
		subs:     subs,
		redis:    redisClient,
		tokens:   tokens,
		logger:   logger,
	}
}

// RegisterResult represents registration response
type RegisterResult struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// LoginResult represents login response
type LoginResult struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	StoreID   string `json:"store_id,omitempty"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
	TokenType string `json:"token_type"`
	// SubscriptionRequired is set for owners whose store has no
	// subscription in a counts-as-active status; the dashboard routes
	// them to checkout instead of the store.
	SubscriptionRequired bool `json:"subscription_required,omitempty"`
}

// RegisterCustomer creates a customer account scoped to the resolved
// store.
func (s *AuthService) RegisterCustomer(ctx context.Context, tc *domain.TenantContext, email, name, password string) (*RegisterResult, error) {
	if email == "" || password == "" || name == "" {
		return nil, errors.New("email, name, and password are required")
	}

	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, errors.New("failed to register user")
	}

	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		StoreID:      tc.Store.ID,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, errors.New("failed to register user")
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Token:  token,
	}, nil
}

// Login authenticates a user and returns a JWT token. Owners additionally
// get a subscription_required flag when their store has no counts-as-active
// subscription; authentication itself never fails on subscription state.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Info("login attempt with non-existent email", slog.String("email", email))
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("email", email))
		return nil, errors.New("invalid credentials")
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		StoreID:   user.StoreID,
		Token:     token,
		ExpiresIn: int(tokenTTL.Seconds()),
		TokenType: "Bearer",
	}

	if user.Role == domain.RoleOwner && user.StoreID != "" {
		sub, err := s.subs.GetCurrentByStore(ctx, user.StoreID)
		if errors.Is(err, domain.ErrSubscriptionRequired) || (err == nil && !sub.Status.CountsAsActive()) {
			result.SubscriptionRequired = true
		}
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return result, nil
}

// VerifyToken verifies and parses a JWT token, rejecting revoked tokens.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	if s.redis != nil && claims.ID != "" {
		revoked, err := s.redis.Exists(ctx, "revoked:"+claims.ID)
		if err == nil && revoked {
			return nil, errors.New("token revoked")
		}
	}

	return claims, nil
}

// Logout revokes the token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.redis == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, "revoked:"+claims.ID, 1, ttl)
}

// generateToken generates a new JWT token for a user
func (s *AuthService) generateToken(user *domain.User) (string, error) {
	tokenString, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role), user.StoreID, tokenTTL)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return "", errors.New("failed to generate token")
	}
	return tokenString, nil
}

// ChangePassword changes a user's password
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" || len(newPassword) < 8 {
		return errors.New("new password must be at least 8 characters")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return errors.New("user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return errors.New("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return errors.New("failed to change password")
	}

	user.PasswordHash = string(hash)
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update user password", slog.String("error", err.Error()))
		return errors.New("failed to change password")
	}

	s.logger.Info("user changed password", slog.String("user_id", userID))
	return nil
}
