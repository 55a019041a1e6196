// Command admintoken mints a bearer token for the admin cache endpoints,
// signed with the server's auth.jwt_secret.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/config"
	"github.com/temcen/storerec/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(os.Args[1:], cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, cfg *config.Config, out io.Writer) error {
	flags := flag.NewFlagSet("admintoken", flag.ContinueOnError)
	flags.SetOutput(out)
	subject := flags.String("subject", "", "Operator the token is issued to (required)")
	role := flags.String("role", cfg.Auth.AdminRole, "Role claim")
	ttl := flags.Duration("ttl", time.Hour, "Token lifetime")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *subject == "" {
		return errors.New("-subject is required")
	}
	if *ttl <= 0 {
		return errors.New("-ttl must be positive")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	token, err := services.NewAuthService(&cfg.Auth, logger).GenerateToken(*subject, *role, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
