package config

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// Config holds all application configuration loaded from the environment.
type Config struct {
	AppName string
	AppPort string
	Env     string
	Version string

	DBUrl string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RSAPrivateKey *rsa.PrivateKey
	RSAPublicKey  *rsa.PublicKey
	TokenExpiry   time.Duration

	// WebAuthn relying party settings
	RPID            string
	RPName          string
	AllowedOrigins  []string
	ChallengeTTL    time.Duration
	CeremonyTimeout time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Item cache
	ItemCacheTTL time.Duration
}

// Defaults for time-based configuration.
const (
	DefaultTokenExpiry     = 30 * time.Minute
	DefaultChallengeTTL    = 5 * time.Minute
	DefaultCeremonyTimeout = 60 * time.Second
	DefaultRateLimitWindow = 1 * time.Minute
	DefaultRateLimitCount  = 60
	DefaultItemCacheTTL    = 5 * time.Minute
	DefaultRPID            = "localhost"
	DefaultRPName          = "Enterprise API"
)

// LoadConfig reads configuration from environment variables and returns
// a *Config. Missing required variables are fatal.
func LoadConfig() *Config {
	appName := os.Getenv("APP_NAME")
	if appName == "" {
		appName = "enterprise-api"
	}

	utils.Logger.Info("Loading config for app: ", appName)

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "1.0.0"
	}

	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		appPort = "8000"
	}

	dbUrl := os.Getenv("DATABASE_URL")
	if dbUrl == "" {
		utils.Logger.Fatal("DATABASE_URL env var is missing")
	}

	//----------------------------------------------------------------------
	// JWT signing keys.
	//----------------------------------------------------------------------
	privateKeyPEM := os.Getenv("JWT_RSA_PRIVATE_KEY")
	if privateKeyPEM == "" {
		utils.Logger.Fatal("JWT_RSA_PRIVATE_KEY env var is missing")
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA private key")
	}

	publicKeyPEM := os.Getenv("JWT_RSA_PUBLIC_KEY")
	if publicKeyPEM == "" {
		utils.Logger.Fatal("JWT_RSA_PUBLIC_KEY env var is missing")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}

	//----------------------------------------------------------------------
	// WebAuthn relying party settings.
	//----------------------------------------------------------------------
	rpID := os.Getenv("WEBAUTHN_RP_ID")
	if rpID == "" {
		rpID = DefaultRPID
	}
	rpName := os.Getenv("WEBAUTHN_RP_NAME")
	if rpName == "" {
		rpName = DefaultRPName
	}

	var allowedOrigins []string
	if raw := os.Getenv("WEBAUTHN_ALLOWED_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	} else {
		allowedOrigins = []string{
			fmt.Sprintf("https://%s", rpID),
			fmt.Sprintf("http://%s:8000", rpID),
			"http://localhost:8000",
		}
	}

	//----------------------------------------------------------------------
	// Redis.
	//----------------------------------------------------------------------
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := envInt("REDIS_DB", 0)

	cfg := &Config{
		AppName:         appName,
		AppPort:         appPort,
		Env:             env,
		Version:         version,
		DBUrl:           dbUrl,
		RedisAddr:       redisAddr,
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		RSAPrivateKey:   privateKey,
		RSAPublicKey:    publicKey,
		TokenExpiry:     envDuration("TOKEN_EXPIRY", DefaultTokenExpiry),
		RPID:            rpID,
		RPName:          rpName,
		AllowedOrigins:  allowedOrigins,
		ChallengeTTL:    envDuration("WEBAUTHN_CHALLENGE_TTL", DefaultChallengeTTL),
		CeremonyTimeout: envDuration("WEBAUTHN_CEREMONY_TIMEOUT", DefaultCeremonyTimeout),

		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", DefaultRateLimitCount),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWindow),

		ItemCacheTTL: envDuration("ITEM_CACHE_TTL", DefaultItemCacheTTL),
	}

	utils.Logger.Debugf("WebAuthn RP ID: %s, allowed origins: %v", cfg.RPID, cfg.AllowedOrigins)

	return cfg
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		utils.Logger.WithError(err).Fatalf("%s must be an integer", key)
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		utils.Logger.WithError(err).Fatalf("%s must be a duration (e.g. 5m, 60s)", key)
	}
	return v
}
