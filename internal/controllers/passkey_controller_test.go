package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/bluefin-labs/enterprise-api/internal/config"
	"github.com/bluefin-labs/enterprise-api/internal/dtos"
	"github.com/bluefin-labs/enterprise-api/internal/middleware"
	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/services"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// ---------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return utils.ErrUserExists
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

type fakeCredRepo struct {
	creds []*models.PasskeyCredential
	users *fakeUserRepo
}

func (f *fakeCredRepo) Create(_ context.Context, c *models.PasskeyCredential) error {
	f.creds = append(f.creds, c)
	return nil
}

func (f *fakeCredRepo) GetByCredentialID(_ context.Context, credentialID []byte) (*models.PasskeyCredential, *models.User, error) {
	for _, c := range f.creds {
		if string(c.CredentialID) == string(credentialID) && c.IsActive {
			return c, f.users.users[c.UserID], nil
		}
	}
	return nil, nil, nil
}

func (f *fakeCredRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]models.PasskeyCredential, error) {
	var out []models.PasskeyCredential
	for _, c := range f.creds {
		if c.UserID == userID && c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCredRepo) GetCredentialIDsForUser(_ context.Context, userID uuid.UUID) ([][]byte, error) {
	var out [][]byte
	for _, c := range f.creds {
		if c.UserID == userID && c.IsActive {
			out = append(out, c.CredentialID)
		}
	}
	return out, nil
}

func (f *fakeCredRepo) UpdateSignCount(_ context.Context, credentialID []byte, signCount uint32) error {
	for _, c := range f.creds {
		if string(c.CredentialID) == string(credentialID) {
			c.SignCount = signCount
			return nil
		}
	}
	return utils.ErrCredentialNotFound
}

func (f *fakeCredRepo) Delete(_ context.Context, id uuid.UUID, userID uuid.UUID) error {
	for i, c := range f.creds {
		if c.ID == id && c.UserID == userID {
			f.creds = append(f.creds[:i], f.creds[i+1:]...)
			return nil
		}
	}
	return utils.ErrCredentialNotFound
}

type fakeJWTService struct{}

func (fakeJWTService) GenerateAccessToken(uuid.UUID) (string, error) { return "test-token", nil }
func (fakeJWTService) TokenExpiry() time.Duration                    { return 30 * time.Minute }

// ---------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------

type fixture struct {
	userRepo *fakeUserRepo
	credRepo *fakeCredRepo
	passkey  *PasskeyController
	auth     *AuthController
	user     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userRepo := newFakeUserRepo()
	credRepo := &fakeCredRepo{users: userRepo}

	cfg := &config.Config{
		RPID:            "localhost",
		RPName:          "Test RP",
		AllowedOrigins:  []string{"http://localhost:8000"},
		ChallengeTTL:    time.Minute,
		CeremonyTimeout: 60 * time.Second,
	}
	webauthnSvc := services.NewWebAuthnService(cfg, services.NewChallengeStore(cfg.ChallengeTTL), credRepo)

	user := &models.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
		IsActive: true,
	}
	userRepo.users[user.ID] = user

	return &fixture{
		userRepo: userRepo,
		credRepo: credRepo,
		passkey:  NewPasskeyController(webauthnSvc, fakeJWTService{}, userRepo, credRepo),
		auth:     NewAuthController(userRepo),
		user:     user,
	}
}

// authedRequest builds a request carrying the user ID the auth
// middleware would have set.
func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(r.Context(), middleware.ContextKeyUserID, userID.String())
	return r.WithContext(ctx)
}

// ---------------------------------------------------------------------
// Registration endpoints
// ---------------------------------------------------------------------

func TestRegisterBeginReturnsOptions(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"username":"alice"}`)
	w := httptest.NewRecorder()
	f.passkey.RegisterBegin(w, httptest.NewRequest("POST", "/api/v1/passkey/register/begin", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var opts dtos.PublicKeyCredentialCreationOptions
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opts))
	require.Equal(t, "localhost", opts.RP.ID)
	require.Equal(t, "alice", opts.User.Name)
	require.NotEmpty(t, opts.Challenge)
	require.Equal(t, "none", opts.Attestation)
}

func TestRegisterBeginUnknownUser(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"username":"nobody"}`)
	w := httptest.NewRecorder()
	f.passkey.RegisterBegin(w, httptest.NewRequest("POST", "/api/v1/passkey/register/begin", bytes.NewReader(body)))

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterBeginRejectsInactiveUser(t *testing.T) {
	f := newFixture(t)
	f.user.IsActive = false

	body := []byte(`{"username":"alice"}`)
	w := httptest.NewRecorder()
	f.passkey.RegisterBegin(w, httptest.NewRequest("POST", "/api/v1/passkey/register/begin", bytes.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterCompleteRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.passkey.RegisterComplete(w, authedRequest("POST", "/api/v1/passkey/register/complete", []byte("{not json"), f.user.ID))
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Valid JSON but missing required fields fails validation.
	w = httptest.NewRecorder()
	f.passkey.RegisterComplete(w, authedRequest("POST", "/api/v1/passkey/register/complete", []byte(`{"id":"abc"}`), f.user.ID))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, utils.ErrCodeValidation, resp.Code)
}

func TestRegisterCompleteWithoutChallenge(t *testing.T) {
	f := newFixture(t)

	body, err := json.Marshal(dtos.RegistrationCompleteRequest{
		ID:    "AAAA",
		RawID: "AAAA",
		Type:  "public-key",
		Response: dtos.AuthenticatorAttestationResponse{
			ClientDataJSON:    "AAAA",
			AttestationObject: "AAAA",
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	f.passkey.RegisterComplete(w, authedRequest("POST", "/api/v1/passkey/register/complete", body, f.user.ID))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, utils.ErrCodeChallengeNotFound, resp.Code)
}

// ---------------------------------------------------------------------
// Authentication endpoints
// ---------------------------------------------------------------------

func TestAuthenticateBeginKnownUser(t *testing.T) {
	f := newFixture(t)
	f.credRepo.creds = append(f.credRepo.creds, &models.PasskeyCredential{
		ID:           uuid.New(),
		UserID:       f.user.ID,
		CredentialID: []byte("cred-1"),
		IsActive:     true,
	})

	body := []byte(`{"username":"alice"}`)
	w := httptest.NewRecorder()
	f.passkey.AuthenticateBegin(w, httptest.NewRequest("POST", "/api/v1/passkey/authenticate/begin", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var opts dtos.PublicKeyCredentialRequestOptions
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opts))
	require.Equal(t, "localhost", opts.RPID)
	require.Equal(t, "required", opts.UserVerification)
	require.Len(t, opts.AllowCredentials, 1)
}

func TestAuthenticateBeginUnknownUserDoesNotLeak(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"username":"nobody"}`)
	w := httptest.NewRecorder()
	f.passkey.AuthenticateBegin(w, httptest.NewRequest("POST", "/api/v1/passkey/authenticate/begin", bytes.NewReader(body)))

	// Same 200 shape as a known user, just no credentials.
	require.Equal(t, http.StatusOK, w.Code)
	var opts dtos.PublicKeyCredentialRequestOptions
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opts))
	require.Empty(t, opts.AllowCredentials)
	require.NotEmpty(t, opts.Challenge)
}

func TestAuthenticateBeginUsernameless(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.passkey.AuthenticateBegin(w, httptest.NewRequest("POST", "/api/v1/passkey/authenticate/begin", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var opts dtos.PublicKeyCredentialRequestOptions
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opts))
	require.Empty(t, opts.AllowCredentials)
}

func TestAuthenticateCompleteUnknownCredential(t *testing.T) {
	f := newFixture(t)

	body, err := json.Marshal(dtos.AuthenticationCompleteRequest{
		ID:    "AAAA",
		RawID: "AAAA",
		Type:  "public-key",
		Response: dtos.AuthenticatorAssertionResponse{
			ClientDataJSON:    "AAAA",
			AuthenticatorData: "AAAA",
			Signature:         "AAAA",
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	f.passkey.AuthenticateComplete(w, httptest.NewRequest("POST", "/api/v1/passkey/authenticate/complete", bytes.NewReader(body)))

	require.Equal(t, http.StatusNotFound, w.Code)
}

// ---------------------------------------------------------------------
// Credential management endpoints
// ---------------------------------------------------------------------

func TestListCredentials(t *testing.T) {
	f := newFixture(t)
	f.credRepo.creds = append(f.credRepo.creds, &models.PasskeyCredential{
		ID:           uuid.New(),
		UserID:       f.user.ID,
		CredentialID: []byte("cred-1"),
		SignCount:    7,
		IsActive:     true,
		CreatedAt:    time.Now(),
	})

	w := httptest.NewRecorder()
	f.passkey.ListCredentials(w, authedRequest("GET", "/api/v1/passkey/credentials", nil, f.user.ID))

	require.Equal(t, http.StatusOK, w.Code)
	var creds []dtos.PasskeyCredential
	require.NoError(t, json.NewDecoder(w.Body).Decode(&creds))
	require.Len(t, creds, 1)
	require.Equal(t, uint32(7), creds[0].SignCount)
}

func TestRemoveCredential(t *testing.T) {
	f := newFixture(t)
	credID := uuid.New()
	f.credRepo.creds = append(f.credRepo.creds, &models.PasskeyCredential{
		ID:           credID,
		UserID:       f.user.ID,
		CredentialID: []byte("cred-1"),
		IsActive:     true,
	})

	r := authedRequest("DELETE", "/api/v1/passkey/credentials/"+credID.String(), nil, f.user.ID)
	r = mux.SetURLVars(r, map[string]string{"id": credID.String()})
	w := httptest.NewRecorder()
	f.passkey.RemoveCredential(w, r)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Empty(t, f.credRepo.creds)
}

func TestRemoveCredentialNotFound(t *testing.T) {
	f := newFixture(t)

	unknown := uuid.New()
	r := authedRequest("DELETE", "/api/v1/passkey/credentials/"+unknown.String(), nil, f.user.ID)
	r = mux.SetURLVars(r, map[string]string{"id": unknown.String()})
	w := httptest.NewRecorder()
	f.passkey.RemoveCredential(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveCredentialOwnedByAnotherUser(t *testing.T) {
	f := newFixture(t)

	other := &models.User{ID: uuid.New(), Username: "mallory", Email: "m@example.com", IsActive: true}
	f.userRepo.users[other.ID] = other
	credID := uuid.New()
	f.credRepo.creds = append(f.credRepo.creds, &models.PasskeyCredential{
		ID:           credID,
		UserID:       other.ID,
		CredentialID: []byte("cred-2"),
		IsActive:     true,
	})

	r := authedRequest("DELETE", "/api/v1/passkey/credentials/"+credID.String(), nil, f.user.ID)
	r = mux.SetURLVars(r, map[string]string{"id": credID.String()})
	w := httptest.NewRecorder()
	f.passkey.RemoveCredential(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, f.credRepo.creds, 1)
}

// ---------------------------------------------------------------------
// Account endpoints
// ---------------------------------------------------------------------

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"username":"bob","email":"bob@example.com"}`)
	w := httptest.NewRecorder()
	f.auth.Register(w, httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	var user dtos.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
	require.Equal(t, "bob", user.Username)
	require.True(t, user.IsActive)
}

func TestRegisterUserConflict(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"username":"alice","email":"other@example.com"}`)
	w := httptest.NewRecorder()
	f.auth.Register(w, httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader(body)))

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterUserValidation(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"username":"x","email":"not-an-email"}`)
	w := httptest.NewRecorder()
	f.auth.Register(w, httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.auth.Me(w, authedRequest("GET", "/api/v1/auth/me", nil, f.user.ID))

	require.Equal(t, http.StatusOK, w.Code)
	var user dtos.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
	require.Equal(t, "alice", user.Username)

	w = httptest.NewRecorder()
	f.auth.Me(w, httptest.NewRequest("GET", "/api/v1/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
