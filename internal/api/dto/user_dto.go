package dto

import (
	"time"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the token and the authenticated profile.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// CreateUserRequest registers a staff account.
type CreateUserRequest struct {
	Username   string      `json:"username" validate:"required,min=3"`
	Email      string      `json:"email" validate:"required,email"`
	FirstName  string      `json:"first_name" validate:"required"`
	LastName   string      `json:"last_name"`
	Phone      string      `json:"phone"`
	Password   string      `json:"password" validate:"required,min=8"`
	Role       domain.Role `json:"role" validate:"required"`
	IsWorkshop bool        `json:"is_workshop"`
}

// UserResponse is the public staff profile.
type UserResponse struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	FullName   string      `json:"full_name"`
	Phone      string      `json:"phone"`
	Role       domain.Role `json:"role"`
	IsWorkshop bool        `json:"is_workshop"`
	Active     bool        `json:"active"`
}

// NewUserResponse maps a user to its public profile.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FullName:   user.FullName(),
		Phone:      user.Phone,
		Role:       user.Role,
		IsWorkshop: user.IsWorkshop,
		Active:     user.Active,
	}
}
