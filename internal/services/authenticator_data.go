package services

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Authenticator data flag bits.
const (
	FlagUserPresent            = 0x01
	FlagUserVerified           = 0x04
	FlagAttestedCredentialData = 0x40
)

// COSE key parameters for EC2 keys on P-256.
const (
	coseKeyTypeEC2 = 2
	coseCurveP256  = 1
	coseAlgES256   = -7
)

// AuthenticatorData is the parsed binary authenticator data structure.
// CredentialID and PublicKey are only populated when the attested
// credential data flag is set (registration ceremonies).
type AuthenticatorData struct {
	RPIDHash     []byte
	Flags        byte
	SignCount    uint32
	AAGUID       []byte
	CredentialID []byte
	PublicKey    []byte
}

func (a *AuthenticatorData) UserPresent() bool  { return a.Flags&FlagUserPresent != 0 }
func (a *AuthenticatorData) UserVerified() bool { return a.Flags&FlagUserVerified != 0 }
func (a *AuthenticatorData) HasAttestedCredentialData() bool {
	return a.Flags&FlagAttestedCredentialData != 0
}

// ParseAuthenticatorData decodes the fixed authenticator data layout:
// 32 bytes rpIdHash, 1 byte flags, 4 bytes big-endian sign count, then
// optional attested credential data (16 byte AAGUID, 2 byte big-endian
// credential ID length, credential ID, CBOR COSE public key).
func ParseAuthenticatorData(data []byte) (*AuthenticatorData, error) {
	const fixedLen = 32 + 1 + 4
	if len(data) < fixedLen {
		return nil, fmt.Errorf("authenticator data too short: %d bytes", len(data))
	}

	ad := &AuthenticatorData{
		RPIDHash:  data[:32],
		Flags:     data[32],
		SignCount: binary.BigEndian.Uint32(data[33:37]),
	}

	if !ad.HasAttestedCredentialData() {
		return ad, nil
	}

	rest := data[fixedLen:]
	if len(rest) < 16+2 {
		return nil, errors.New("attested credential data truncated")
	}
	ad.AAGUID = rest[:16]
	credIDLen := int(binary.BigEndian.Uint16(rest[16:18]))
	rest = rest[18:]
	if len(rest) < credIDLen {
		return nil, errors.New("credential ID overflows authenticator data")
	}
	ad.CredentialID = rest[:credIDLen]

	// The COSE key is the next CBOR item; extensions may follow it, so
	// decode with a reader to learn the key's exact byte extent.
	keyBytes := rest[credIDLen:]
	dec := cbor.NewDecoder(bytes.NewReader(keyBytes))
	var raw cbor.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("credential public key parse: %w", err)
	}
	ad.PublicKey = keyBytes[:dec.NumBytesRead()]

	return ad, nil
}

// ParseCOSEPublicKey extracts an ECDSA P-256 public key from a CBOR
// COSE_Key structure. Only EC2 keys on P-256 are accepted.
func ParseCOSEPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	var cose map[int]any
	if err := cbor.Unmarshal(raw, &cose); err != nil {
		return nil, fmt.Errorf("cose key parse: %w", err)
	}

	kty, ok := coseInt(cose[1])
	if !ok || kty != coseKeyTypeEC2 {
		return nil, fmt.Errorf("unsupported key type %v", cose[1])
	}
	if alg, present := coseInt(cose[3]); present && alg != coseAlgES256 {
		return nil, fmt.Errorf("unsupported algorithm %d", alg)
	}
	crv, ok := coseInt(cose[-1])
	if !ok || crv != coseCurveP256 {
		return nil, fmt.Errorf("unsupported curve %v", cose[-1])
	}

	xBytes, _ := cose[-2].([]byte)
	yBytes, _ := cose[-3].([]byte)
	if len(xBytes) != 32 || len(yBytes) != 32 {
		return nil, errors.New("unexpected coordinate size")
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("point not on curve")
	}
	return pub, nil
}

// coseInt normalizes the integer types the CBOR decoder may produce
// for COSE map values.
func coseInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
