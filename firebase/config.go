package firebase

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"go.uber.org/zap"
)

const (
	// defaultCertsURL is the Google secure-token x509 certificate endpoint.
	// The response is a JSON object mapping key id to PEM certificate.
	defaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

	defaultHTTPTimeout = 5 * time.Second
)

// Config describes how tokens for one Firebase project are verified.
type Config struct {
	// Audience is the expected aud claim, normally the Firebase project id.
	Audience string
	// Algorithm is the only signature algorithm accepted. Defaults to RS256.
	Algorithm jwa.SignatureAlgorithm
	// CertsURL is the public key distribution endpoint.
	CertsURL string
	// HTTPTimeout bounds each key fetch.
	HTTPTimeout time.Duration
	// ClockSkew is the tolerance applied to exp and iat checks.
	ClockSkew time.Duration
	// CacheTTL enables the process-wide key cache when positive. Zero keeps
	// the baseline behaviour of a fresh fetch per verification.
	CacheTTL time.Duration

	// HTTPClient overrides the client used for key fetches.
	HTTPClient *http.Client
	// KeySource overrides key fetching entirely. CertsURL, HTTPTimeout and
	// HTTPClient are ignored when set.
	KeySource KeySource
	// DevBypass short-circuits the HTTP middleware with synthetic claims.
	// It never affects Extract itself.
	DevBypass *DevClaims
	// Logger receives verification telemetry. Defaults to a nop logger.
	Logger *zap.Logger
}

// normalize sets default values for optional fields.
func (c *Config) normalize() {
	if c.Algorithm == "" {
		c.Algorithm = jwa.RS256
	}
	if c.CertsURL == "" {
		c.CertsURL = defaultCertsURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// validate ensures the configuration is usable.
func (c Config) validate() error {
	if c.Audience == "" {
		return errors.New("audience is required")
	}
	return nil
}

// ConfigFromEnv builds a Config from FIREBASE_* environment variables,
// loading a .env file first when one exists.
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		Audience: os.Getenv("FIREBASE_AUDIENCE"),
		CertsURL: os.Getenv("FIREBASE_CERTS_URL"),
	}
	if alg := os.Getenv("FIREBASE_ALGORITHM"); alg != "" {
		cfg.Algorithm = jwa.SignatureAlgorithm(alg)
	}
	cfg.HTTPTimeout = durationFromEnv("FIREBASE_FETCH_TIMEOUT")
	cfg.ClockSkew = durationFromEnv("FIREBASE_CLOCK_SKEW")
	cfg.CacheTTL = durationFromEnv("FIREBASE_KEY_CACHE_TTL")
	return cfg
}

func durationFromEnv(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
