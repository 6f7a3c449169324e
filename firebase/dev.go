package firebase

import "time"

// DevClaims holds attributes used when issuing synthetic claims in local
// development, where no real issuer is reachable.
type DevClaims struct {
	Subject  string
	Audience string
	Email    string
	Name     string
}

// ToClaims converts the dev bypass configuration into a claims value.
func (d DevClaims) ToClaims() *Claims {
	now := time.Now()
	return &Claims{
		Subject:   d.Subject,
		Audience:  d.Audience,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Email:     d.Email,
		Name:      d.Name,
	}
}

// DefaultDevClaims returns a baseline identity suitable for local development.
func DefaultDevClaims(audience string) DevClaims {
	if audience == "" {
		audience = "dev.local"
	}
	return DevClaims{
		Subject:  "dev-bypass",
		Audience: audience,
		Email:    "dev@localhost",
	}
}
