package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. Accounts have no password; authentication
// is performed exclusively with passkeys.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *User) GetID() string {
	return u.ID.String()
}
