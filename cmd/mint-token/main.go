package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sentinel/internal/auth"
	"sentinel/internal/config"
)

var (
	subject = flag.String("subject", "", "Token subject, e.g. the scheduler name")
	roles   = flag.String("roles", "scheduler", "Comma-separated roles: operator, scheduler, reader")
	ttl     = flag.Duration("ttl", auth.DefaultTokenTTL, "Token lifetime")
)

func main() {
	flag.Parse()
	config.LoadDotEnv()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "ERROR: JWT_SECRET must be set\n")
		os.Exit(1)
	}
	if *subject == "" {
		fmt.Fprintf(os.Stderr, "ERROR: -subject is required\n")
		os.Exit(2)
	}

	parsed, err := parseRoles(*roles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}

	token, expiresAt, err := auth.GenerateServiceToken([]byte(secret), *subject, parsed, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Token for %s (%s) expires %s\n", *subject, *roles, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}

func parseRoles(v string) ([]auth.Role, error) {
	var out []auth.Role
	for _, part := range strings.Split(v, ",") {
		role := auth.Role(strings.TrimSpace(part))
		if role == "" {
			continue
		}
		if !role.IsValid() {
			return nil, fmt.Errorf("unknown role %q", role)
		}
		out = append(out, role)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	return out, nil
}
