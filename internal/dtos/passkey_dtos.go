package dtos

import (
	"time"

	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// WebAuthn wire types. All binary fields cross the wire as unpadded
// base64url strings per the WebAuthn JSON serialization.

// ----------------------------------------------------------------------
// Registration (attestation) ceremony
// ----------------------------------------------------------------------

type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PublicKeyCredentialUserEntity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type PublicKeyCredentialParameters struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

type PublicKeyCredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

type AuthenticatorSelectionCriteria struct {
	AuthenticatorAttachment string `json:"authenticatorAttachment,omitempty"`
	ResidentKey             string `json:"residentKey,omitempty"`
	UserVerification        string `json:"userVerification,omitempty"`
}

// PublicKeyCredentialCreationOptions is handed to navigator.credentials.create.
type PublicKeyCredentialCreationOptions struct {
	RP                     RelyingParty                    `json:"rp"`
	User                   PublicKeyCredentialUserEntity   `json:"user"`
	Challenge              string                          `json:"challenge"`
	PubKeyCredParams       []PublicKeyCredentialParameters `json:"pubKeyCredParams"`
	Timeout                int                             `json:"timeout"`
	ExcludeCredentials     []PublicKeyCredentialDescriptor `json:"excludeCredentials"`
	AuthenticatorSelection AuthenticatorSelectionCriteria  `json:"authenticatorSelection"`
	Attestation            string                          `json:"attestation"`
}

type AuthenticatorAttestationResponse struct {
	ClientDataJSON    string `json:"clientDataJSON" validate:"required"`
	AttestationObject string `json:"attestationObject" validate:"required"`
}

// RegistrationBeginRequest names the account a passkey is being
// registered for.
type RegistrationBeginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
}

// RegistrationCompleteRequest is the browser credential returned by
// navigator.credentials.create, plus an optional friendly name.
type RegistrationCompleteRequest struct {
	ID       string                           `json:"id" validate:"required"`
	RawID    string                           `json:"rawId" validate:"required"`
	Type     string                           `json:"type" validate:"required,eq=public-key"`
	Response AuthenticatorAttestationResponse `json:"response" validate:"required"`
	Name     *string                          `json:"name,omitempty" validate:"omitempty,max=100"`
}

// ----------------------------------------------------------------------
// Authentication (assertion) ceremony
// ----------------------------------------------------------------------

// PublicKeyCredentialRequestOptions is handed to navigator.credentials.get.
type PublicKeyCredentialRequestOptions struct {
	Challenge        string                          `json:"challenge"`
	Timeout          int                             `json:"timeout"`
	RPID             string                          `json:"rpId"`
	AllowCredentials []PublicKeyCredentialDescriptor `json:"allowCredentials"`
	UserVerification string                          `json:"userVerification"`
}

type AuthenticationBeginRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
}

type AuthenticatorAssertionResponse struct {
	ClientDataJSON    string  `json:"clientDataJSON" validate:"required"`
	AuthenticatorData string  `json:"authenticatorData" validate:"required"`
	Signature         string  `json:"signature" validate:"required"`
	UserHandle        *string `json:"userHandle,omitempty"`
}

type AuthenticationCompleteRequest struct {
	ID       string                         `json:"id" validate:"required"`
	RawID    string                         `json:"rawId" validate:"required"`
	Type     string                         `json:"type" validate:"required,eq=public-key"`
	Response AuthenticatorAssertionResponse `json:"response" validate:"required"`
}

// ----------------------------------------------------------------------
// Credential management
// ----------------------------------------------------------------------

// PasskeyCredential is the wire form of a stored credential, returned
// from register/complete and the credential listing.
type PasskeyCredential struct {
	ID           string     `json:"id"`
	CredentialID string     `json:"credential_id"`
	Name         *string    `json:"name,omitempty"`
	SignCount    uint32     `json:"sign_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	IsActive     bool       `json:"is_active"`
}

func NewPasskeyCredentialFromModel(cred models.PasskeyCredential) PasskeyCredential {
	return PasskeyCredential{
		ID:           cred.ID.String(),
		CredentialID: utils.EncodeBase64URL(cred.CredentialID),
		Name:         cred.DeviceName,
		SignCount:    cred.SignCount,
		CreatedAt:    cred.CreatedAt,
		LastUsed:     cred.LastUsedAt,
		IsActive:     cred.IsActive,
	}
}
