package firebase

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims is the verified identity payload of a token. Values are decoded once
// by a successful verification and never mutated afterwards.
type Claims struct {
	Subject   string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time

	Email string
	Name  string

	CustomClaims map[string]any
}

// claimsFromToken extracts the normalized claim set from a verified token.
func claimsFromToken(token jwt.Token) *Claims {
	claims := &Claims{
		Subject:   token.Subject(),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Audience = aud[0]
	}

	private := token.PrivateClaims()
	if v, ok := private["email"]; ok {
		if s, ok := v.(string); ok {
			claims.Email = s
		}
	}
	if v, ok := private["name"]; ok {
		if s, ok := v.(string); ok {
			claims.Name = s
		}
	}
	if len(private) > 0 {
		claims.CustomClaims = make(map[string]any, len(private))
		for k, v := range private {
			claims.CustomClaims[k] = v
		}
	}
	return claims
}
