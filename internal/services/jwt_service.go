package services

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bluefin-labs/enterprise-api/internal/config"
	"github.com/bluefin-labs/enterprise-api/internal/middleware"
)

// ---------------------------------------------------------------------
// JWTService interface
// ---------------------------------------------------------------------

type JWTService interface {
	// GenerateAccessToken issues a signed RS256 access token for the
	// given subject. Tokens are only ever minted after a successful
	// passkey assertion.
	GenerateAccessToken(subjectID uuid.UUID) (string, error)
	TokenExpiry() time.Duration
}

// ---------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------

type jwtService struct {
	privateKey  *rsa.PrivateKey
	publicKey   *rsa.PublicKey
	tokenExpiry time.Duration
}

func NewJWTService(cfg *config.Config) JWTService {
	return &jwtService{
		privateKey:  cfg.RSAPrivateKey,
		publicKey:   cfg.RSAPublicKey,
		tokenExpiry: cfg.TokenExpiry,
	}
}

func (j *jwtService) GenerateAccessToken(subjectID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"iss": middleware.TokenIssuer,
		"sub": subjectID.String(),
		"exp": time.Now().Add(j.tokenExpiry).Unix(),
		"iat": time.Now().Unix(),
		"jti": uuid.NewString(),
	}
	return j.signClaims(claims)
}

func (j *jwtService) TokenExpiry() time.Duration {
	return j.tokenExpiry
}

// signClaims signs the claims with the configured RSA key.
func (j *jwtService) signClaims(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(j.privateKey)
}
