package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// fakeCredRepo is an in-memory PasskeyCredentialRepository for tests.
type fakeCredRepo struct {
	creds []*models.PasskeyCredential
	users map[uuid.UUID]*models.User
}

func newFakeCredRepo() *fakeCredRepo {
	return &fakeCredRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeCredRepo) Create(_ context.Context, c *models.PasskeyCredential) error {
	for _, existing := range f.creds {
		if string(existing.CredentialID) == string(c.CredentialID) {
			return utils.ErrDuplicateCredential
		}
	}
	f.creds = append(f.creds, c)
	return nil
}

func (f *fakeCredRepo) GetByCredentialID(_ context.Context, credentialID []byte) (*models.PasskeyCredential, *models.User, error) {
	for _, c := range f.creds {
		if string(c.CredentialID) == string(credentialID) && c.IsActive {
			return c, f.users[c.UserID], nil
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
		if string(c.CredentialID) == string(credentialID) && c.IsActive {
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

// testAuthenticator emulates a platform authenticator well enough to
// drive full ceremonies against the service.
type testAuthenticator struct {
	key       *ecdsa.PrivateKey
	credID    []byte
	signCount uint32
}

func newTestAuthenticator(t *testing.T) *testAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return &testAuthenticator{
		key:    key,
		credID: utils.RandomBytes(16),
	}
}

func (a *testAuthenticator) coseKey(t *testing.T) []byte {
	t.Helper()
	x := make([]byte, 32)
	y := make([]byte, 32)
	a.key.PublicKey.X.FillBytes(x)
	a.key.PublicKey.Y.FillBytes(y)
	raw, err := cbor.Marshal(map[int]any{
		1:  2,
		3:  -7,
		-1: 1,
		-2: x,
		-3: y,
	})
	if err != nil {
		t.Fatalf("marshaling cose key: %v", err)
	}
	return raw
}

func buildAuthData(rpID string, flags byte, signCount uint32, credID, coseKey []byte) []byte {
	rpHash := sha256.Sum256([]byte(rpID))
	out := make([]byte, 0, 37)
	out = append(out, rpHash[:]...)
	out = append(out, flags)
	out = binary.BigEndian.AppendUint32(out, signCount)
	if flags&FlagAttestedCredentialData != 0 {
		out = append(out, make([]byte, 16)...) // zero AAGUID
		out = binary.BigEndian.AppendUint16(out, uint16(len(credID)))
		out = append(out, credID...)
		out = append(out, coseKey...)
	}
	return out
}

func clientDataJSON(t *testing.T, ceremonyType string, challenge []byte, origin string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"type":      ceremonyType,
		"challenge": utils.EncodeBase64URL(challenge),
		"origin":    origin,
	})
	if err != nil {
		t.Fatalf("marshaling client data: %v", err)
	}
	return raw
}

// attestationResponse builds the base64url attestation object a browser
// would return from navigator.credentials.create.
func (a *testAuthenticator) attestationResponse(t *testing.T, rpID string) string {
	t.Helper()
	authData := buildAuthData(
		rpID,
		FlagUserPresent|FlagUserVerified|FlagAttestedCredentialData,
		a.signCount,
		a.credID,
		a.coseKey(t),
	)
	raw, err := cbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": authData,
	})
	if err != nil {
		t.Fatalf("marshaling attestation object: %v", err)
	}
	return utils.EncodeBase64URL(raw)
}

// assertion signs authData || SHA-256(clientDataJSON) and returns the
// base64url authenticator data and signature.
func (a *testAuthenticator) assertion(t *testing.T, rpID string, clientData []byte, signCount uint32) (string, string) {
	t.Helper()
	return a.assertionWithFlags(t, rpID, FlagUserPresent|FlagUserVerified, clientData, signCount)
}

func (a *testAuthenticator) assertionWithFlags(t *testing.T, rpID string, flags byte, clientData []byte, signCount uint32) (string, string) {
	t.Helper()
	authData := buildAuthData(rpID, flags, signCount, nil, nil)
	cdHash := sha256.Sum256(clientData)
	signed := append(append([]byte{}, authData...), cdHash[:]...)
	digest := sha256.Sum256(signed)
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		t.Fatalf("signing assertion: %v", err)
	}
	return utils.EncodeBase64URL(authData), utils.EncodeBase64URL(sig)
}
