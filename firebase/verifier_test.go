package firebase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func newSigningKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, certPEM(t, key)
}

func certPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func signToken(t *testing.T, builder *jwt.Builder, key *rsa.PrivateKey, kid string) string {
	t.Helper()
	token, err := builder.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	jwkPriv, err := jwk.FromRaw(key)
	if err != nil {
		t.Fatalf("private key jwk: %v", err)
	}
	if err := jwkPriv.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("set alg: %v", err)
	}
	if kid != "" {
		if err := jwkPriv.Set(jwk.KeyIDKey, kid); err != nil {
			t.Fatalf("set kid: %v", err)
		}
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, jwkPriv))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func tokenBuilder(audience string) *jwt.Builder {
	now := time.Now()
	return jwt.NewBuilder().
		Subject("user-1234567890").
		Audience([]string{audience}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("email", "user@example.com").
		Claim("name", "John Doe")
}

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error kind %s, got nil", want)
	}
	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if kind != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, kind, err)
	}
}

func TestVerifier_SuccessDuringRotation(t *testing.T) {
	// Two simultaneously active keys; the token is signed with the second.
	_, pemA := newSigningKey(t)
	keyB, pemB := newSigningKey(t)

	keys := map[string]string{"k1": pemA, "k2": pemB}
	verifier := NewVerifier(Config{Audience: "app1"})

	token := signToken(t, tokenBuilder("app1"), keyB, "k2")

	claims, err := verifier.Verify(context.Background(), token, keys)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1234567890" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Audience != "app1" {
		t.Fatalf("unexpected audience: %s", claims.Audience)
	}
}

func TestVerifier_SuccessWithoutKeyIDHint(t *testing.T) {
	keyB, pemB := newSigningKey(t)
	keys := map[string]string{"k2": pemB}
	for i := 0; i < 4; i++ {
		_, pemOther := newSigningKey(t)
		keys[string(rune('a'+i))] = pemOther
	}

	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, tokenBuilder("app1"), keyB, "")

	claims, err := verifier.Verify(context.Background(), token, keys)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1234567890" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestVerifier_MismatchedHintStillSucceeds(t *testing.T) {
	keyB, pemB := newSigningKey(t)
	_, pemA := newSigningKey(t)

	// kid points at a key that cannot verify the signature; the fallback
	// trial must still find the right one.
	keys := map[string]string{"k1": pemA, "k2": pemB}
	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, tokenBuilder("app1"), keyB, "k1")

	claims, err := verifier.Verify(context.Background(), token, keys)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1234567890" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestVerifier_UnknownSigner(t *testing.T) {
	_, pemA := newSigningKey(t)
	_, pemB := newSigningKey(t)
	rogue, _ := newSigningKey(t)

	keys := map[string]string{"k1": pemA, "k2": pemB}
	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, tokenBuilder("app1"), rogue, "k1")

	_, err := verifier.Verify(context.Background(), token, keys)
	assertKind(t, err, KindNoValidKey)
}

func TestVerifier_AudienceMismatch(t *testing.T) {
	keyB, pemB := newSigningKey(t)
	keys := map[string]string{"k2": pemB}

	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, tokenBuilder("other-app"), keyB, "k2")

	_, err := verifier.Verify(context.Background(), token, keys)
	assertKind(t, err, KindNoValidKey)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	key, pemData := newSigningKey(t)
	keys := map[string]string{"k1": pemData}

	now := time.Now()
	builder := jwt.NewBuilder().
		Subject("user-1").
		Audience([]string{"app1"}).
		IssuedAt(now.Add(-2 * time.Hour)).
		Expiration(now.Add(-time.Minute)).
		Claim("email", "user@example.com")

	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, builder, key, "k1")

	_, err := verifier.Verify(context.Background(), token, keys)
	assertKind(t, err, KindNoValidKey)
}

func TestVerifier_ExpiryAtVerificationTime(t *testing.T) {
	key, pemData := newSigningKey(t)
	keys := map[string]string{"k1": pemData}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	builder := jwt.NewBuilder().
		Subject("user-1").
		Audience([]string{"app1"}).
		IssuedAt(exp.Add(-time.Hour)).
		Expiration(exp)

	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, builder, key, "k1")

	// One tick before the boundary the token is still valid.
	verifier.clock = func() time.Time { return exp.Add(-time.Second) }
	if _, err := verifier.Verify(context.Background(), token, keys); err != nil {
		t.Fatalf("Verify just before expiry: %v", err)
	}

	// A token expiring exactly at the verification time is already expired.
	verifier.clock = func() time.Time { return exp }
	_, err := verifier.Verify(context.Background(), token, keys)
	assertKind(t, err, KindNoValidKey)
}

func TestVerifier_IssuedInFuture(t *testing.T) {
	key, pemData := newSigningKey(t)
	keys := map[string]string{"k1": pemData}

	now := time.Now()
	builder := jwt.NewBuilder().
		Subject("user-1").
		Audience([]string{"app1"}).
		IssuedAt(now.Add(time.Hour)).
		Expiration(now.Add(2 * time.Hour))

	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, builder, key, "k1")

	_, err := verifier.Verify(context.Background(), token, keys)
	assertKind(t, err, KindNoValidKey)
}

func TestVerifier_SkipsUnparseableCandidates(t *testing.T) {
	key, pemData := newSigningKey(t)

	keys := map[string]string{
		"bad-pem":  "not pem at all",
		"bad-type": "-----BEGIN GARBAGE-----\nZm9v\n-----END GARBAGE-----\n",
		"good":     pemData,
	}

	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, tokenBuilder("app1"), key, "good")

	claims, err := verifier.Verify(context.Background(), token, keys)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
}

func TestVerifier_RejectsUnsignedAlgorithm(t *testing.T) {
	_, pemData := newSigningKey(t)
	keys := map[string]string{"k1": pemData}

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{
		"sub": "user-1",
		"aud": "app1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	token := header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."

	verifier := NewVerifier(Config{Audience: "app1"})
	_, err = verifier.Verify(context.Background(), token, keys)
	assertKind(t, err, KindNoValidKey)
}

func TestVerifier_EmptyKeySet(t *testing.T) {
	key, _ := newSigningKey(t)
	verifier := NewVerifier(Config{Audience: "app1"})
	token := signToken(t, tokenBuilder("app1"), key, "k1")

	_, err := verifier.Verify(context.Background(), token, map[string]string{})
	assertKind(t, err, KindNoValidKey)
}

func TestVerifier_ClaimsRoundTrip(t *testing.T) {
	key, pemData := newSigningKey(t)
	keys := map[string]string{"kid-1": pemData}

	now := time.Now().Truncate(time.Second)
	builder := jwt.NewBuilder().
		Subject("1234567890").
		Audience([]string{"example_audience"}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("email", "user@example.com").
		Claim("name", "John Doe")

	verifier := NewVerifier(Config{Audience: "example_audience"})
	token := signToken(t, builder, key, "kid-1")

	claims, err := verifier.Verify(context.Background(), token, keys)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if claims.Subject != "1234567890" {
		t.Errorf("subject: got %q", claims.Subject)
	}
	if claims.Audience != "example_audience" {
		t.Errorf("audience: got %q", claims.Audience)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("email: got %q", claims.Email)
	}
	if claims.Name != "John Doe" {
		t.Errorf("name: got %q", claims.Name)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Errorf("issued at: got %s, want %s", claims.IssuedAt, now)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expires at: got %s", claims.ExpiresAt)
	}
	if claims.ExpiresAt.Before(claims.IssuedAt) {
		t.Error("expiry must be after issuance")
	}
}

func TestParsePublicKey_BarePublicKeyBlock(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemData := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	parsed, err := parsePublicKey(pemData)
	if err != nil {
		t.Fatalf("parsePublicKey: %v", err)
	}
	if _, ok := parsed.(*rsa.PublicKey); !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", parsed)
	}
}

func TestParsePublicKey_Errors(t *testing.T) {
	if _, err := parsePublicKey("junk"); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
	pemData := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1}}))
	if _, err := parsePublicKey(pemData); err == nil {
		t.Fatal("expected error for unsupported block type")
	}
}
