package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bluefin-labs/enterprise-api/internal/dtos"
	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/repositories"
	"github.com/bluefin-labs/enterprise-api/internal/services"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

type PasskeyController struct {
	webauthn *services.WebAuthnService
	jwt      services.JWTService
	userRepo repositories.UserRepository
	credRepo repositories.PasskeyCredentialRepository
}

func NewPasskeyController(
	webauthn *services.WebAuthnService,
	jwt services.JWTService,
	userRepo repositories.UserRepository,
	credRepo repositories.PasskeyCredentialRepository,
) *PasskeyController {
	return &PasskeyController{
		webauthn: webauthn,
		jwt:      jwt,
		userRepo: userRepo,
		credRepo: credRepo,
	}
}

// loadCurrentUser resolves the authenticated user for protected
// passkey endpoints.
func (c *PasskeyController) loadCurrentUser(w http.ResponseWriter, r *http.Request) *models.User {
	userID := getUserIDFromContext(r)
	if userID == nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", nil)
		return nil
	}
	user, err := c.userRepo.GetByID(r.Context(), *userID)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to load user", nil, err)
		return nil
	}
	if user == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "User not found", nil)
		return nil
	}
	if !user.IsActive {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeUserInactive, "User account is inactive", nil)
		return nil
	}
	return user
}

// ---------------------------------------------------------------------
// Registration ceremony
// ---------------------------------------------------------------------

// RegisterBegin issues creation options for the named account. The
// endpoint is public; completing the ceremony still requires a token,
// so an unauthenticated begin only burns a challenge.
func (c *PasskeyController) RegisterBegin(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegistrationBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid username", nil, err)
		return
	}

	user, err := c.userRepo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to load user", nil, err)
		return
	}
	if user == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "User not found", nil)
		return
	}
	if !user.IsActive {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeUserInactive, "User account is inactive", nil)
		return
	}

	opts, err := c.webauthn.CreateRegistrationOptions(r.Context(), user)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to create registration options", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, opts)
}

// RegisterComplete verifies the attestation response and stores the
// credential.
func (c *PasskeyController) RegisterComplete(w http.ResponseWriter, r *http.Request) {
	user := c.loadCurrentUser(w, r)
	if user == nil {
		return
	}

	var req dtos.RegistrationCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid credential payload", nil, err)
		return
	}

	cred, err := c.webauthn.VerifyRegistrationResponse(r.Context(), user, &req)
	if err != nil {
		c.respondCeremonyError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, dtos.NewPasskeyCredentialFromModel(*cred))
}

// ---------------------------------------------------------------------
// Authentication ceremony
// ---------------------------------------------------------------------

// AuthenticateBegin issues request options. The username is optional;
// without one the usernameless flow is used and the browser picks a
// discoverable credential.
func (c *PasskeyController) AuthenticateBegin(w http.ResponseWriter, r *http.Request) {
	var req dtos.AuthenticationBeginRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid username", nil, err)
			return
		}
	}

	var user *models.User
	if req.Username != nil {
		var err error
		user, err = c.userRepo.GetByUsername(r.Context(), *req.Username)
		if err != nil {
			utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to load user", nil, err)
			return
		}
		// An unknown username still gets options with empty
		// allowCredentials so the endpoint does not leak which
		// accounts exist.
	}

	opts, err := c.webauthn.CreateAuthenticationOptions(r.Context(), user)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to create authentication options", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, opts)
}

// AuthenticateComplete verifies the assertion and issues an access
// token for the credential's owner.
func (c *PasskeyController) AuthenticateComplete(w http.ResponseWriter, r *http.Request) {
	var req dtos.AuthenticationCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid assertion payload", nil, err)
		return
	}

	user, _, err := c.webauthn.VerifyAuthenticationResponse(r.Context(), &req)
	if err != nil {
		c.respondCeremonyError(w, err)
		return
	}

	token, err := c.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to issue token", nil, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(c.jwt.TokenExpiry() / time.Second),
		User:        dtos.NewUserFromModel(*user),
	})
}

// ---------------------------------------------------------------------
// Credential management
// ---------------------------------------------------------------------

// ListCredentials returns the caller's active credentials.
func (c *PasskeyController) ListCredentials(w http.ResponseWriter, r *http.Request) {
	user := c.loadCurrentUser(w, r)
	if user == nil {
		return
	}

	creds, err := c.credRepo.GetByUserID(r.Context(), user.ID)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to load credentials", nil, err)
		return
	}

	resp := make([]dtos.PasskeyCredential, 0, len(creds))
	for _, cred := range creds {
		resp = append(resp, dtos.NewPasskeyCredentialFromModel(cred))
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// RemoveCredential deletes one of the caller's credentials.
func (c *PasskeyController) RemoveCredential(w http.ResponseWriter, r *http.Request) {
	user := c.loadCurrentUser(w, r)
	if user == nil {
		return
	}

	credID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid credential ID", nil, err)
		return
	}

	if err := c.credRepo.Delete(r.Context(), credID, user.ID); err != nil {
		if errors.Is(err, utils.ErrCredentialNotFound) {
			utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Credential not found", nil)
			return
		}
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to remove credential", nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondCeremonyError maps ceremony failures to HTTP responses.
func (c *PasskeyController) respondCeremonyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, utils.ErrChallengeNotFound):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeChallengeNotFound, "No challenge found or challenge expired", nil)
	case errors.Is(err, utils.ErrChallengeMismatch):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeChallengeMismatch, "Challenge verification failed", nil)
	case errors.Is(err, utils.ErrOriginMismatch):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeOriginMismatch, "Origin not allowed", nil)
	case errors.Is(err, utils.ErrRPIDHashMismatch):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeRPIDHashMismatch, "Relying party mismatch", nil)
	case errors.Is(err, utils.ErrUserNotVerified), errors.Is(err, utils.ErrInvalidAuthenticatorFlags):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidAuthFlags, "User verification required", nil)
	case errors.Is(err, utils.ErrUnsupportedKeyType), errors.Is(err, utils.ErrUnsupportedCurve):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeUnsupportedKey, "Unsupported credential key", nil)
	case errors.Is(err, utils.ErrDuplicateCredential):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, "Credential already registered", nil)
	case errors.Is(err, utils.ErrCredentialNotFound):
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Credential not found", nil)
	case errors.Is(err, utils.ErrUserInactive):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeUserInactive, "User account is inactive", nil)
	case errors.Is(err, utils.ErrSignatureVerification):
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeSignatureVerification, "Signature verification failed", nil)
	case errors.Is(err, utils.ErrSignCountRegression):
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeSignCountRegression, "Credential rejected", nil)
	default:
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Verification failed", nil, err)
	}
}
