package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/middleware"
)

// Mints a bearer token for local testing against the API.
func main() {
	userID := flag.String("user", "", "User id to embed in the token")
	role := flag.String("role", "buyer", "Role: buyer or seller")
	verified := flag.Bool("verified", false, "Mark the user as verified")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/issue_token -user u-123 -role seller -verified")
	}
	r, ok := identity.ParseRole(*role)
	if !ok {
		log.Fatalf("unknown role %q (want buyer or seller)", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatalf("JWT_SECRET must be set")
	}

	auth := middleware.NewJWTAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer)
	token, err := auth.Issue(identity.Identity{UserID: *userID, Role: r, Verified: *verified}, *ttl)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
