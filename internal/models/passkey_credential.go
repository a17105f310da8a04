package models

import (
	"time"

	"github.com/google/uuid"
)

// PasskeyCredential is a registered WebAuthn credential bound to a user.
// CredentialID and PublicKey hold the raw bytes from the authenticator;
// the public key is the COSE-encoded EC2 key captured at registration.
type PasskeyCredential struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	CredentialID []byte     `json:"credential_id"`
	PublicKey    []byte     `json:"-"`
	SignCount    uint32     `json:"sign_count"`
	AAGUID       []byte     `json:"aaguid,omitempty"`
	DeviceName   *string    `json:"device_name,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}
