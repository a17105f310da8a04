package services

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestParseAuthenticatorDataAssertion(t *testing.T) {
	authData := buildAuthData("localhost", FlagUserPresent|FlagUserVerified, 42, nil, nil)

	parsed, err := ParseAuthenticatorData(authData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rpHash := sha256.Sum256([]byte("localhost"))
	if !bytes.Equal(parsed.RPIDHash, rpHash[:]) {
		t.Fatalf("rpIdHash mismatch")
	}
	if parsed.SignCount != 42 {
		t.Fatalf("expected sign count 42, got %d", parsed.SignCount)
	}
	if !parsed.UserPresent() || !parsed.UserVerified() {
		t.Fatalf("flag accessors wrong for flags 0x%02x", parsed.Flags)
	}
	if parsed.HasAttestedCredentialData() {
		t.Fatalf("assertion data should not carry attested credential data")
	}
	if parsed.CredentialID != nil || parsed.PublicKey != nil {
		t.Fatalf("credential fields populated without AT flag")
	}
}

func TestParseAuthenticatorDataAttestation(t *testing.T) {
	auth := newTestAuthenticator(t)
	coseKey := auth.coseKey(t)
	authData := buildAuthData(
		"localhost",
		FlagUserPresent|FlagUserVerified|FlagAttestedCredentialData,
		0,
		auth.credID,
		coseKey,
	)

	parsed, err := ParseAuthenticatorData(authData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(parsed.CredentialID, auth.credID) {
		t.Fatalf("credential ID mismatch")
	}
	if !bytes.Equal(parsed.AAGUID, make([]byte, 16)) {
		t.Fatalf("aaguid mismatch")
	}
	if !bytes.Equal(parsed.PublicKey, coseKey) {
		t.Fatalf("public key bytes mismatch")
	}
}

func TestParseAuthenticatorDataTrailingExtensions(t *testing.T) {
	auth := newTestAuthenticator(t)
	coseKey := auth.coseKey(t)
	authData := buildAuthData(
		"localhost",
		FlagUserPresent|FlagUserVerified|FlagAttestedCredentialData,
		0,
		auth.credID,
		coseKey,
	)

	// CBOR extensions after the key must not leak into PublicKey.
	ext, err := cbor.Marshal(map[string]bool{"credProtect": true})
	if err != nil {
		t.Fatalf("marshaling extension: %v", err)
	}
	authData = append(authData, ext...)

	parsed, err := ParseAuthenticatorData(authData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(parsed.PublicKey, coseKey) {
		t.Fatalf("public key includes trailing extension bytes")
	}
}

func TestParseAuthenticatorDataTooShort(t *testing.T) {
	if _, err := ParseAuthenticatorData(make([]byte, 36)); err == nil {
		t.Fatal("expected error for truncated data")
	}
	if _, err := ParseAuthenticatorData(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestParseAuthenticatorDataTruncatedCredential(t *testing.T) {
	authData := buildAuthData("localhost", FlagAttestedCredentialData, 0, nil, nil)
	// Claims a 200-byte credential ID with no bytes following.
	authData[37+16] = 0
	authData[37+16+1] = 200

	if _, err := ParseAuthenticatorData(authData); err == nil {
		t.Fatal("expected error for overflowing credential ID")
	}
}

func TestParseCOSEPublicKey(t *testing.T) {
	auth := newTestAuthenticator(t)

	pub, err := ParseCOSEPublicKey(auth.coseKey(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.X.Cmp(auth.key.PublicKey.X) != 0 || pub.Y.Cmp(auth.key.PublicKey.Y) != 0 {
		t.Fatalf("extracted point differs from original key")
	}
}

func TestParseCOSEPublicKeyRejectsWrongKeyType(t *testing.T) {
	raw, err := cbor.Marshal(map[int]any{1: 1, -1: 1, -2: make([]byte, 32), -3: make([]byte, 32)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := ParseCOSEPublicKey(raw); err == nil {
		t.Fatal("expected error for OKP key type")
	}
}

func TestParseCOSEPublicKeyRejectsWrongCurve(t *testing.T) {
	raw, err := cbor.Marshal(map[int]any{1: 2, -1: 2, -2: make([]byte, 32), -3: make([]byte, 32)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := ParseCOSEPublicKey(raw); err == nil {
		t.Fatal("expected error for P-384 curve")
	}
}

func TestParseCOSEPublicKeyRejectsOffCurvePoint(t *testing.T) {
	x := make([]byte, 32)
	y := make([]byte, 32)
	x[31] = 1
	y[31] = 1
	raw, err := cbor.Marshal(map[int]any{1: 2, -1: 1, -2: x, -3: y})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := ParseCOSEPublicKey(raw); err == nil {
		t.Fatal("expected error for point not on curve")
	}
}

func TestParseCOSEPublicKeyRejectsGarbage(t *testing.T) {
	if _, err := ParseCOSEPublicKey([]byte{0xff, 0x00}); err == nil {
		t.Fatal("expected error for malformed CBOR")
	}
}
