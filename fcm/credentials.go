package fcm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/impersonate"
)

// ScopeMessaging is the OAuth2 scope required by the FCM v1 API.
const ScopeMessaging = "https://www.googleapis.com/auth/firebase.messaging"

// TokenFactory allows callers to override how access tokens are minted.
type TokenFactory func(context.Context, CredentialsParams) (oauth2.TokenSource, error)

// CredentialsParams select the identity used to call FCM.
type CredentialsParams struct {
	ServiceAccount string
	Delegates      []string
	Scopes         []string
}

// CredentialsConfig defines the default identity.
type CredentialsConfig struct {
	ServiceAccount string
	Delegates      []string
	Scopes         []string
	TokenFactory   TokenFactory
}

// Credentials mints OAuth2 token sources for the FCM API and caches them per
// (service account, delegates, scopes) combination.
type Credentials struct {
	mu       sync.RWMutex
	factory  TokenFactory
	entries  map[credentialsKey]oauth2.TokenSource
	defaults CredentialsParams
}

type credentialsKey struct {
	ServiceAccount string
	Delegates      string
	Scopes         string
}

// CredentialOption customizes the behaviour for a single TokenSource call.
type CredentialOption func(*CredentialsParams)

// WithServiceAccount overrides the service account used to mint the token.
func WithServiceAccount(email string) CredentialOption {
	return func(p *CredentialsParams) {
		p.ServiceAccount = email
	}
}

// WithDelegates sets the impersonation delegation chain.
func WithDelegates(delegates ...string) CredentialOption {
	return func(p *CredentialsParams) {
		p.Delegates = append([]string(nil), delegates...)
	}
}

// NewCredentials constructs a Credentials cache using the supplied defaults.
func NewCredentials(cfg CredentialsConfig) *Credentials {
	factory := cfg.TokenFactory
	if factory == nil {
		factory = defaultFactory
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeMessaging}
	}
	return &Credentials{
		factory: factory,
		entries: make(map[credentialsKey]oauth2.TokenSource),
		defaults: CredentialsParams{
			ServiceAccount: cfg.ServiceAccount,
			Delegates:      append([]string(nil), cfg.Delegates...),
			Scopes:         scopes,
		},
	}
}

// TokenSource returns a cached, self-refreshing token source for the
// configured identity.
func (c *Credentials) TokenSource(ctx context.Context, opts ...CredentialOption) (oauth2.TokenSource, error) {
	params := cloneParams(c.defaults)
	for _, opt := range opts {
		opt(&params)
	}

	key := credentialsKey{
		ServiceAccount: params.ServiceAccount,
		Delegates:      strings.Join(params.Delegates, ","),
		Scopes:         strings.Join(params.Scopes, ","),
	}

	c.mu.RLock()
	source, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return source, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if source, ok = c.entries[key]; ok {
		return source, nil
	}

	source, err := c.factory(persistentContext(ctx), params)
	if err != nil {
		return nil, fmt.Errorf("create token source: %w", err)
	}
	source = oauth2.ReuseTokenSource(nil, source)
	c.entries[key] = source
	return source, nil
}

func defaultFactory(ctx context.Context, params CredentialsParams) (oauth2.TokenSource, error) {
	if params.ServiceAccount != "" {
		return impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: params.ServiceAccount,
			Delegates:       params.Delegates,
			Scopes:          params.Scopes,
		})
	}
	return google.DefaultTokenSource(ctx, params.Scopes...)
}

func cloneParams(in CredentialsParams) CredentialsParams {
	out := in
	if len(in.Delegates) > 0 {
		out.Delegates = append([]string(nil), in.Delegates...)
	}
	if len(in.Scopes) > 0 {
		out.Scopes = append([]string(nil), in.Scopes...)
	}
	return out
}

// persistentContext detaches cached token sources from the lifetime of the
// request that first created them, while keeping context values reachable.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if _, ok := ctx.(*detachedContext); ok {
		return ctx
	}
	return &detachedContext{parent: ctx}
}

type detachedContext struct {
	parent context.Context
}

func (d *detachedContext) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (d *detachedContext) Done() <-chan struct{} {
	return nil
}

func (d *detachedContext) Err() error {
	return nil
}

func (d *detachedContext) Value(key any) any {
	if d.parent == nil {
		return nil
	}
	return d.parent.Value(key)
}
