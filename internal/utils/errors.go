package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrChallengeNotFound         = errors.New("no challenge found or challenge expired")
	ErrChallengeMismatch         = errors.New("challenge mismatch")
	ErrOriginMismatch            = errors.New("invalid origin")
	ErrRPIDHashMismatch          = errors.New("RP ID hash mismatch")
	ErrInvalidAuthenticatorFlags = errors.New("invalid authenticator flags")
	ErrUserNotVerified           = errors.New("user not present or not verified")
	ErrUnsupportedKeyType        = errors.New("unsupported key type")
	ErrUnsupportedCurve          = errors.New("unsupported curve")
	ErrSignatureVerification     = errors.New("signature verification failed")
	ErrSignCountRegression       = errors.New("sign count verification failed (possible cloned authenticator)")

	ErrCredentialNotFound  = errors.New("credential_not_found")
	ErrDuplicateCredential = errors.New("duplicate_credential_id")
	ErrUserInactive        = errors.New("user_inactive")
	ErrUserExists          = errors.New("user_exists")
	ErrItemNameExists      = errors.New("item_name_exists")

	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		// Fallback for unexpected error types
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
