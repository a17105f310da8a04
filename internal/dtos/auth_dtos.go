package dtos

import (
	"github.com/bluefin-labs/enterprise-api/internal/models"
)

// User DTO for GET endpoints and token responses.
type User struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FullName    *string `json:"full_name,omitempty"`
	IsActive    bool    `json:"is_active"`
	IsSuperuser bool    `json:"is_superuser"`
}

func NewUserFromModel(user models.User) User {
	return User{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
	}
}

// RegisterUserRequest creates an account. Accounts are passwordless;
// a passkey must be registered before the user can authenticate.
type RegisterUserRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string  `json:"email" validate:"required,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=100"`
}

// TokenResponse is returned after a successful passkey authentication.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}
