package firebase

import "context"

type claimsKey struct{}

// BindClaims stores verified claims inside the context for downstream
// consumers.
func BindClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext retrieves claims previously stored in the context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
