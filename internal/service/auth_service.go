package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repairshop-service/internal/auth"
	"github.com/spec-kit/repairshop-service/internal/config"
	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/repository"
	"github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

// AuthService coordinates staff login and account management.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Login authenticates an operator and returns a role-bearing token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, errorutil.MapError(err)
	}
	if !user.Active {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	token, expiresAt, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, errorutil.MapError(err)
	}
	return user, token, expiresAt, nil
}

// CreateUserInput describes a new staff account.
type CreateUserInput struct {
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	Password   string
	Role       domain.Role
	IsWorkshop bool
}

// CreateUser registers a staff account. Managers only.
func (s *AuthService) CreateUser(ctx context.Context, actor domain.Actor, input CreateUserInput) (*domain.User, error) {
	if !actor.Role.Privileged() {
		return nil, errorutil.NewForbidden("only managers can create accounts")
	}
	switch input.Role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleFrontDesk, domain.RoleTechnician, domain.RoleAccountant:
	default:
		return nil, errorutil.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}
	if _, err := s.users.GetByUsername(ctx, input.Username); err == nil {
		return nil, errorutil.NewConflict("username already taken", map[string]any{"username": input.Username})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errorutil.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		PasswordHash: hash,
		Role:         input.Role,
		IsWorkshop:   input.IsWorkshop,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, errorutil.MapError(err)
	}
	return user, nil
}

// ListTechnicians returns active technicians for assignment pickers.
func (s *AuthService) ListTechnicians(ctx context.Context) ([]domain.User, error) {
	technicians, err := s.users.ListActiveByRole(ctx, domain.RoleTechnician)
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	return technicians, nil
}
