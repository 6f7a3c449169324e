package firebase

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// Verifier attempts token validation against each candidate key until one
// succeeds or all are exhausted. During key rotation several keys are active
// at once and the protocol carries no reliable hint which one signed a given
// token, so every candidate may need to be tried.
type Verifier struct {
	audience string
	alg      jwa.SignatureAlgorithm
	skew     time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

// NewVerifier builds a Verifier from the given configuration.
func NewVerifier(cfg Config) *Verifier {
	cfg.normalize()
	return &Verifier{
		audience: cfg.Audience,
		alg:      cfg.Algorithm,
		skew:     cfg.ClockSkew,
		clock:    time.Now,
		logger:   cfg.Logger,
	}
}

// Verify trial-verifies token against keys and returns the decoded claims of
// the first candidate that fully validates. When the token header names a key
// id present in the set, that candidate is tried first; the fallback loop
// keeps the outcome identical whether or not the hint matched.
func (v *Verifier) Verify(ctx context.Context, token string, keys map[string]string) (*Claims, error) {
	hint := keyIDHint(token)
	if pemData, ok := keys[hint]; hint != "" && ok {
		claims, err := v.tryCandidate(ctx, token, pemData)
		if err == nil {
			return claims, nil
		}
		v.logger.Debug("hinted key rejected token, falling back to full trial",
			zap.String("kid", hint), zap.Error(err))
	}

	for kid, pemData := range keys {
		if kid == hint {
			continue
		}
		claims, err := v.tryCandidate(ctx, token, pemData)
		if err == nil {
			return claims, nil
		}
		// A single unusable candidate must never abort the trial.
		v.logger.Debug("candidate key rejected token", zap.String("kid", kid), zap.Error(err))
	}

	v.logger.Warn("no candidate key validated token", zap.Int("candidates", len(keys)))
	return nil, newError(KindNoValidKey, nil)
}

// tryCandidate runs the full per-candidate validation: PEM parse, signature
// verification under the required algorithm, then standard claim checks.
func (v *Verifier) tryCandidate(ctx context.Context, token, pemData string) (*Claims, error) {
	key, err := parsePublicKey(pemData)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(v.alg, key),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("verify signature: %w", err)
	}

	now := v.clock()
	if err := jwt.Validate(parsed,
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithAudience(v.audience),
	); err != nil {
		return nil, err
	}
	if parsed.Expiration().IsZero() {
		return nil, errors.New("token has no expiry")
	}
	if iat := parsed.IssuedAt(); !iat.IsZero() && iat.After(now.Add(v.skew)) {
		return nil, fmt.Errorf("token issued in the future: %s", iat)
	}
	if parsed.Subject() == "" {
		return nil, errors.New("token has no subject")
	}

	return claimsFromToken(parsed), nil
}

// parsePublicKey extracts a verification key from PEM material, accepting
// both x509 certificates and bare public key blocks.
func parsePublicKey(pemData string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		return cert.PublicKey, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// keyIDHint reads the kid from the token's protected header without
// verifying anything. An empty result falls back to the full trial.
func keyIDHint(token string) string {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return ""
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return ""
	}
	return sigs[0].ProtectedHeaders().KeyID()
}
