package services

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/asn1"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/bluefin-labs/enterprise-api/internal/config"
	"github.com/bluefin-labs/enterprise-api/internal/dtos"
	"github.com/bluefin-labs/enterprise-api/internal/metrics"
	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/repositories"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// Client data ceremony types.
const (
	ceremonyTypeCreate = "webauthn.create"
	ceremonyTypeGet    = "webauthn.get"
)

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type attestationObject struct {
	Format   string          `cbor:"fmt"`
	AttStmt  cbor.RawMessage `cbor:"attStmt"`
	AuthData []byte          `cbor:"authData"`
}

// WebAuthnService implements the relying party side of passkey
// registration and authentication ceremonies.
type WebAuthnService struct {
	cfg        *config.Config
	rpIDHash   [32]byte
	challenges *ChallengeStore
	credRepo   repositories.PasskeyCredentialRepository
}

func NewWebAuthnService(
	cfg *config.Config,
	challenges *ChallengeStore,
	credRepo repositories.PasskeyCredentialRepository,
) *WebAuthnService {
	return &WebAuthnService{
		cfg:        cfg,
		rpIDHash:   sha256.Sum256([]byte(cfg.RPID)),
		challenges: challenges,
		credRepo:   credRepo,
	}
}

// Challenges exposes the underlying store for the cleanup job.
func (s *WebAuthnService) Challenges() *ChallengeStore {
	return s.challenges
}

// ---------------------------------------------------------------------
// Registration ceremony
// ---------------------------------------------------------------------

// CreateRegistrationOptions builds PublicKeyCredentialCreationOptions
// for user and stores the challenge under the user ID. Already
// registered credentials are excluded so the authenticator refuses to
// create a duplicate.
func (s *WebAuthnService) CreateRegistrationOptions(ctx context.Context, user *models.User) (*dtos.PublicKeyCredentialCreationOptions, error) {
	challenge := s.challenges.GenerateChallenge()
	s.challenges.StoreChallenge(user.ID.String(), challenge)

	existingIDs, err := s.credRepo.GetCredentialIDsForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading existing credentials: %w", err)
	}
	exclude := make([]dtos.PublicKeyCredentialDescriptor, 0, len(existingIDs))
	for _, id := range existingIDs {
		exclude = append(exclude, dtos.PublicKeyCredentialDescriptor{
			Type:       "public-key",
			ID:         utils.EncodeBase64URL(id),
			Transports: []string{"internal"},
		})
	}

	displayName := user.Username
	if user.FullName != nil && *user.FullName != "" {
		displayName = *user.FullName
	}

	opts := &dtos.PublicKeyCredentialCreationOptions{
		RP: dtos.RelyingParty{
			ID:   s.cfg.RPID,
			Name: s.cfg.RPName,
		},
		User: dtos.PublicKeyCredentialUserEntity{
			ID:          utils.EncodeBase64URL([]byte(user.ID.String())),
			Name:        user.Username,
			DisplayName: displayName,
		},
		Challenge: utils.EncodeBase64URL(challenge),
		PubKeyCredParams: []dtos.PublicKeyCredentialParameters{
			{Type: "public-key", Alg: -7},
			{Type: "public-key", Alg: -257},
		},
		Timeout:            int(s.cfg.CeremonyTimeout / time.Millisecond),
		ExcludeCredentials: exclude,
		AuthenticatorSelection: dtos.AuthenticatorSelectionCriteria{
			AuthenticatorAttachment: "platform",
			ResidentKey:             "preferred",
			UserVerification:        "required",
		},
		Attestation: "none",
	}
	utils.Logger.Debugf("[Registration] Issued challenge for user %s (%d credentials excluded)", user.Username, len(exclude))
	return opts, nil
}

// VerifyRegistrationResponse validates the attestation response against
// the pending challenge and persists the new credential. The challenge
// is single-use and cleared on success.
func (s *WebAuthnService) VerifyRegistrationResponse(
	ctx context.Context,
	user *models.User,
	req *dtos.RegistrationCompleteRequest,
) (*models.PasskeyCredential, error) {
	cred, err := s.verifyRegistration(ctx, user, req)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusFailure)
		return nil, err
	}
	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusSuccess)
	return cred, nil
}

func (s *WebAuthnService) verifyRegistration(
	ctx context.Context,
	user *models.User,
	req *dtos.RegistrationCompleteRequest,
) (*models.PasskeyCredential, error) {
	storedChallenge := s.challenges.GetChallenge(user.ID.String())
	if storedChallenge == nil {
		utils.Logger.Warnf("[Registration] FAIL: No pending challenge for user %s", user.Username)
		return nil, utils.ErrChallengeNotFound
	}

	_, cd, err := s.parseClientData(req.Response.ClientDataJSON, ceremonyTypeCreate, storedChallenge)
	if err != nil {
		utils.Logger.WithError(err).Warnf("[Registration] FAIL: Client data checks for user %s", user.Username)
		return nil, err
	}
	utils.Logger.Debugf("[Registration] PASS: Client data checks (origin %s)", cd.Origin)

	attBytes, err := utils.DecodeBase64URL(req.Response.AttestationObject)
	if err != nil {
		return nil, fmt.Errorf("decode attestation object: %w", err)
	}
	var attObj attestationObject
	if err := cbor.Unmarshal(attBytes, &attObj); err != nil {
		return nil, fmt.Errorf("attestation object parse: %w", err)
	}

	authData, err := ParseAuthenticatorData(attObj.AuthData)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(authData.RPIDHash, s.rpIDHash[:]) != 1 {
		utils.Logger.Warnf("[Registration] FAIL: rpIdHash mismatch for user %s", user.Username)
		return nil, utils.ErrRPIDHashMismatch
	}
	if !authData.UserPresent() || !authData.UserVerified() {
		utils.Logger.Warnf("[Registration] FAIL: UP/UV flags not set (flags=0x%02x)", authData.Flags)
		return nil, utils.ErrUserNotVerified
	}
	if !authData.HasAttestedCredentialData() {
		utils.Logger.Warn("[Registration] FAIL: Attested credential data flag not set")
		return nil, utils.ErrInvalidAuthenticatorFlags
	}
	utils.Logger.Debug("[Registration] PASS: Authenticator data checks")

	rawID, err := utils.DecodeBase64URL(req.RawID)
	if err != nil {
		return nil, fmt.Errorf("decode rawId: %w", err)
	}
	if !bytes.Equal(rawID, authData.CredentialID) {
		utils.Logger.Warn("[Registration] FAIL: rawId does not match attested credential ID")
		return nil, utils.ErrInvalidAuthenticatorFlags
	}

	// Validate the key material up front so an unparseable key can
	// never be persisted.
	if _, err := ParseCOSEPublicKey(authData.PublicKey); err != nil {
		utils.Logger.WithError(err).Warn("[Registration] FAIL: Credential public key rejected")
		return nil, utils.ErrUnsupportedKeyType
	}
	utils.Logger.Debug("[Registration] PASS: Credential public key is EC2 P-256")

	cred := &models.PasskeyCredential{
		ID:           uuid.New(),
		UserID:       user.ID,
		CredentialID: authData.CredentialID,
		PublicKey:    authData.PublicKey,
		SignCount:    authData.SignCount,
		AAGUID:       authData.AAGUID,
		DeviceName:   req.Name,
		IsActive:     true,
	}
	if err := s.credRepo.Create(ctx, cred); err != nil {
		return nil, err
	}

	s.challenges.ClearChallenge(user.ID.String())
	utils.Logger.Infof("[Registration] Credential registered for user %s", user.Username)
	return cred, nil
}

// ---------------------------------------------------------------------
// Authentication ceremony
// ---------------------------------------------------------------------

// CreateAuthenticationOptions builds PublicKeyCredentialRequestOptions.
// With a user, allowCredentials names their registered credentials and
// the challenge is stored under the user ID. Without one (usernameless
// flow) allowCredentials is empty and the challenge is stored under its
// own base64url encoding.
func (s *WebAuthnService) CreateAuthenticationOptions(ctx context.Context, user *models.User) (*dtos.PublicKeyCredentialRequestOptions, error) {
	challenge := s.challenges.GenerateChallenge()

	allow := []dtos.PublicKeyCredentialDescriptor{}
	if user != nil {
		ids, err := s.credRepo.GetCredentialIDsForUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		for _, id := range ids {
			allow = append(allow, dtos.PublicKeyCredentialDescriptor{
				Type:       "public-key",
				ID:         utils.EncodeBase64URL(id),
				Transports: []string{"internal"},
			})
		}
		s.challenges.StoreChallenge(user.ID.String(), challenge)
	} else {
		s.challenges.StoreChallenge(utils.EncodeBase64URL(challenge), challenge)
	}

	return &dtos.PublicKeyCredentialRequestOptions{
		Challenge:        utils.EncodeBase64URL(challenge),
		Timeout:          int(s.cfg.CeremonyTimeout / time.Millisecond),
		RPID:             s.cfg.RPID,
		AllowCredentials: allow,
		UserVerification: "required",
	}, nil
}

// VerifyAuthenticationResponse validates an assertion end to end and
// returns the authenticated user and credential. On success the stored
// sign count is advanced and the challenge consumed.
func (s *WebAuthnService) VerifyAuthenticationResponse(
	ctx context.Context,
	req *dtos.AuthenticationCompleteRequest,
) (*models.User, *models.PasskeyCredential, error) {
	user, cred, err := s.verifyAuthentication(ctx, req)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusFailure)
		return nil, nil, err
	}
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusSuccess)
	return user, cred, nil
}

func (s *WebAuthnService) verifyAuthentication(
	ctx context.Context,
	req *dtos.AuthenticationCompleteRequest,
) (*models.User, *models.PasskeyCredential, error) {
	rawID, err := utils.DecodeBase64URL(req.RawID)
	if err != nil {
		return nil, nil, fmt.Errorf("decode rawId: %w", err)
	}

	cred, user, err := s.credRepo.GetByCredentialID(ctx, rawID)
	if err != nil {
		return nil, nil, fmt.Errorf("credential lookup: %w", err)
	}
	if cred == nil {
		utils.Logger.Warn("[Authentication] FAIL: Unknown or inactive credential")
		return nil, nil, utils.ErrCredentialNotFound
	}
	if !user.IsActive {
		utils.Logger.Warnf("[Authentication] FAIL: User %s is inactive", user.Username)
		return nil, nil, utils.ErrUserInactive
	}

	clientDataRaw, err := utils.DecodeBase64URL(req.Response.ClientDataJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("decode clientDataJSON: %w", err)
	}
	var cd clientData
	if err := json.Unmarshal(clientDataRaw, &cd); err != nil {
		return nil, nil, fmt.Errorf("clientDataJSON parse: %w", err)
	}
	if cd.Type != ceremonyTypeGet {
		utils.Logger.Warnf("[Authentication] FAIL: Unexpected client data type %q", cd.Type)
		return nil, nil, utils.ErrChallengeMismatch
	}

	// Identified flows store the challenge under the user ID; the
	// usernameless flow stores it under the challenge itself.
	challengeKey := user.ID.String()
	storedChallenge := s.challenges.GetChallenge(challengeKey)
	if storedChallenge == nil {
		challengeKey = cd.Challenge
		storedChallenge = s.challenges.GetChallenge(challengeKey)
	}
	if storedChallenge == nil {
		utils.Logger.Warnf("[Authentication] FAIL: No pending challenge for user %s", user.Username)
		return nil, nil, utils.ErrChallengeNotFound
	}

	receivedChallenge, err := utils.DecodeBase64URL(cd.Challenge)
	if err != nil {
		return nil, nil, fmt.Errorf("decode challenge: %w", err)
	}
	if subtle.ConstantTimeCompare(receivedChallenge, storedChallenge) != 1 {
		utils.Logger.Warnf("[Authentication] FAIL: Challenge mismatch for user %s", user.Username)
		return nil, nil, utils.ErrChallengeMismatch
	}
	if !slices.Contains(s.cfg.AllowedOrigins, cd.Origin) {
		utils.Logger.Warnf("[Authentication] FAIL: Origin %q not allowed", cd.Origin)
		return nil, nil, utils.ErrOriginMismatch
	}
	utils.Logger.Debugf("[Authentication] PASS: Client data checks (origin %s)", cd.Origin)

	authDataRaw, err := utils.DecodeBase64URL(req.Response.AuthenticatorData)
	if err != nil {
		return nil, nil, fmt.Errorf("decode authenticatorData: %w", err)
	}
	authData, err := ParseAuthenticatorData(authDataRaw)
	if err != nil {
		return nil, nil, err
	}
	if subtle.ConstantTimeCompare(authData.RPIDHash, s.rpIDHash[:]) != 1 {
		utils.Logger.Warnf("[Authentication] FAIL: rpIdHash mismatch for user %s", user.Username)
		return nil, nil, utils.ErrRPIDHashMismatch
	}
	if !authData.UserPresent() || !authData.UserVerified() {
		utils.Logger.Warnf("[Authentication] FAIL: UP/UV flags not set (flags=0x%02x)", authData.Flags)
		return nil, nil, utils.ErrUserNotVerified
	}
	utils.Logger.Debug("[Authentication] PASS: Authenticator data checks")

	pub, err := ParseCOSEPublicKey(cred.PublicKey)
	if err != nil {
		utils.Logger.WithError(err).Error("[Authentication] Stored credential public key unparseable")
		return nil, nil, utils.ErrUnsupportedKeyType
	}

	sigDER, err := utils.DecodeBase64URL(req.Response.Signature)
	if err != nil {
		return nil, nil, fmt.Errorf("decode signature: %w", err)
	}
	if !verifySignature(pub, authDataRaw, clientDataRaw, sigDER) {
		utils.Logger.Warnf("[Authentication] FAIL: Signature verification for user %s", user.Username)
		return nil, nil, utils.ErrSignatureVerification
	}
	utils.Logger.Debug("[Authentication] PASS: Assertion signature is valid")

	// A sign count at or below the stored value means a replay or a
	// cloned authenticator. Authenticators that never started counting
	// report zero, hence the stored-zero exception.
	if cred.SignCount != 0 && authData.SignCount <= cred.SignCount {
		metrics.SignCountRegressionsTotal.Inc()
		utils.Logger.Warnf("[Authentication] FAIL: Sign count regression for user %s (stored %d, got %d)",
			user.Username, cred.SignCount, authData.SignCount)
		return nil, nil, utils.ErrSignCountRegression
	}

	if err := s.credRepo.UpdateSignCount(ctx, cred.CredentialID, authData.SignCount); err != nil {
		return nil, nil, fmt.Errorf("updating sign count: %w", err)
	}
	cred.SignCount = authData.SignCount

	s.challenges.ClearChallenge(challengeKey)
	utils.Logger.Infof("[Authentication] User %s authenticated with passkey", user.Username)
	return user, cred, nil
}

// ---------------------------------------------------------------------
// Shared verification helpers
// ---------------------------------------------------------------------

// parseClientData decodes and validates clientDataJSON for the given
// ceremony type against the stored challenge and allowed origins.
func (s *WebAuthnService) parseClientData(encoded, wantType string, storedChallenge []byte) ([]byte, *clientData, error) {
	raw, err := utils.DecodeBase64URL(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("decode clientDataJSON: %w", err)
	}
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, nil, fmt.Errorf("clientDataJSON parse: %w", err)
	}
	if cd.Type != wantType {
		return nil, nil, utils.ErrChallengeMismatch
	}
	received, err := utils.DecodeBase64URL(cd.Challenge)
	if err != nil {
		return nil, nil, fmt.Errorf("decode challenge: %w", err)
	}
	if subtle.ConstantTimeCompare(received, storedChallenge) != 1 {
		return nil, nil, utils.ErrChallengeMismatch
	}
	if !slices.Contains(s.cfg.AllowedOrigins, cd.Origin) {
		return nil, nil, utils.ErrOriginMismatch
	}
	return raw, &cd, nil
}

// verifySignature checks a DER-encoded ECDSA signature over
// authenticatorData || SHA-256(clientDataJSON).
func verifySignature(pub *ecdsa.PublicKey, authData, clientDataJSON, sigDER []byte) bool {
	var rs struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(sigDER, &rs); err != nil {
		return false
	}
	clientDataHash := sha256.Sum256(clientDataJSON)
	signed := append(append([]byte{}, authData...), clientDataHash[:]...)
	digest := sha256.Sum256(signed)
	return ecdsa.Verify(pub, digest[:], rs.R, rs.S)
}
