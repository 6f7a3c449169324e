package firebase

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// Extractor is the boundary operation: it takes the raw transport credential,
// normalizes it, drives the key source and verifier, and produces either
// verified claims or a classified error.
type Extractor struct {
	keys      KeySource
	verifier  *Verifier
	devBypass *DevClaims
	logger    *zap.Logger
}

// NewExtractor builds an Extractor from the given configuration.
func NewExtractor(cfg Config) (*Extractor, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	src := cfg.KeySource
	if src == nil {
		src = NewCertSource(cfg)
	}
	if cfg.CacheTTL > 0 {
		src = NewCachedSource(src, cfg.CacheTTL)
	}

	return &Extractor{
		keys:      src,
		verifier:  NewVerifier(cfg),
		devBypass: cfg.DevBypass,
		logger:    cfg.Logger,
	}, nil
}

// Extract verifies the raw Authorization header value and returns the claims
// embedded in the token. Every failure carries exactly one ErrorKind and is
// terminal for this call; there is no internal retry.
func (e *Extractor) Extract(ctx context.Context, header string) (*Claims, error) {
	if header == "" {
		return nil, newError(KindMissingToken, nil)
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, newError(KindInvalidToken, nil)
	}
	token := header[len(bearerPrefix):]

	keys, err := e.keys.Keys(ctx)
	if err != nil {
		e.logger.Warn("key source unavailable", zap.Error(err))
		return nil, newError(KindKeySourceUnavailable, err)
	}

	claims, err := e.verifier.Verify(ctx, token, keys)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("token verified",
		zap.String("sub", claims.Subject),
		zap.String("email", claims.Email))
	return claims, nil
}
