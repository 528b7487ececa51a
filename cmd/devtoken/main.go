// Package main issues signed bearer tokens for local development. The API has
// no login endpoint; tokens come from an external identity provider in
// production and from this tool everywhere else.
//
// Usage:
//
//	QUILL_AUTH_JWT_SECRET=... devtoken -role author [-user <uuid>] [-lifetime 60]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/config"
	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/service/auth"
)

const secretEnv = config.EnvPrefix + "_AUTH_JWT_SECRET"

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userFlag := fs.String("user", "", "user ID to embed (random when empty)")
	roleFlag := fs.String("role", string(domain.RoleAuthor), "role claim: admin, author or reader")
	lifetime := fs.Int("lifetime", 60, "token lifetime in minutes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			return fmt.Errorf("invalid -user: %w", err)
		}
		userID = parsed
	}

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            getenv(secretEnv),
		TokenLifetimeMinutes: *lifetime,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", secretEnv, err)
	}

	token, err := jwtService.GenerateToken(context.Background(), userID, domain.Role(*roleFlag))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
