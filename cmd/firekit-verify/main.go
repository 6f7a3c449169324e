// Command firekit-verify verifies a single Firebase ID token against the
// issuer's published signing keys and prints the decoded claims.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rexlab/firekit/firebase"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	audience := flag.String("audience", os.Getenv("FIREBASE_AUDIENCE"), "Expected audience (env FIREBASE_AUDIENCE)")
	certsURL := flag.String("certs-url", os.Getenv("FIREBASE_CERTS_URL"), "Key distribution endpoint (env FIREBASE_CERTS_URL)")
	token := flag.String("token", os.Getenv("FIREBASE_ID_TOKEN"), "ID token to verify (env FIREBASE_ID_TOKEN)")
	timeout := flag.Duration("timeout", 5*time.Second, "Key fetch timeout")
	cacheTTL := flag.Duration("cache-ttl", 0, "Key cache TTL; 0 fetches fresh keys")
	flag.Parse()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
			log.Printf("warning: load %s: %v", *envPath, err)
		}
		reloadDefaults(audience, certsURL, token)
	}

	if *audience == "" {
		flag.Usage()
		log.Fatal("audience is required (via flag, .env, or environment variables)")
	}
	if *token == "" {
		flag.Usage()
		log.Fatal("token is required (via flag, .env, or environment variables)")
	}

	extractor, err := firebase.NewExtractor(firebase.Config{
		Audience:    *audience,
		CertsURL:    *certsURL,
		HTTPTimeout: *timeout,
		CacheTTL:    *cacheTTL,
	})
	if err != nil {
		log.Fatalf("create extractor: %v", err)
	}

	claims, err := extractor.Extract(context.Background(), "Bearer "+*token)
	if err != nil {
		kind, _ := firebase.KindOf(err)
		log.Fatalf("verification failed (%s): %v", kind, err)
	}

	printClaims(claims)
}

func printClaims(claims *firebase.Claims) {
	fmt.Println("== Firebase ID Token Verified ==")
	fmt.Printf("subject    : %s\n", claims.Subject)
	fmt.Printf("audience   : %s\n", claims.Audience)
	fmt.Printf("email      : %s\n", claims.Email)
	if claims.Name != "" {
		fmt.Printf("name       : %s\n", claims.Name)
	}
	fmt.Printf("issued_at  : %s\n", claims.IssuedAt.Format(time.RFC3339))
	fmt.Printf("expires_at : %s\n", claims.ExpiresAt.Format(time.RFC3339))
}

func reloadDefaults(audience, certsURL, token *string) {
	if *audience == "" {
		*audience = os.Getenv("FIREBASE_AUDIENCE")
	}
	if *certsURL == "" {
		*certsURL = os.Getenv("FIREBASE_CERTS_URL")
	}
	if *token == "" {
		*token = os.Getenv("FIREBASE_ID_TOKEN")
	}
}
