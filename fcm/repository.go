package fcm

import (
	"context"
	"errors"
)

// ErrUnsupportedOperation is returned by repositories that do not implement
// an optional lookup.
var ErrUnsupportedOperation = errors.New("operation not supported")

// ErrNoToken is returned when a user has no registered device token.
var ErrNoToken = errors.New("no registration token for user")

// TokenRepository resolves a user's FCM registration token, typically from a
// database keyed by the contact identifier of the verified claims.
type TokenRepository interface {
	UserToken(ctx context.Context, email string) (string, error)
}

// GroupTokenRepository optionally resolves all registration tokens of a
// group. Repositories that cannot should not implement it; senders fall back
// to ErrUnsupportedOperation.
type GroupTokenRepository interface {
	GroupTokens(ctx context.Context, groupID int) ([]string, error)
}
