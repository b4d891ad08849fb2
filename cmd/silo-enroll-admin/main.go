package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/urfave/cli/v2"
)

var flagKey = &cli.StringFlag{
	Name:     "key",
	Usage:    "API key to hash",
	EnvVars:  []string{"SILO_ENROLL_API_KEY"},
	Required: true,
}

var flagJWTSecret = &cli.StringFlag{
	Name:     "jwt-secret",
	Usage:    "HMAC secret configured as auth.jwt_secret",
	EnvVars:  []string{"AUTH_JWT_SECRET"},
	Required: true,
}

var flagJWTIssuer = &cli.StringFlag{
	Name:  "issuer",
	Value: "silo-enroll",
	Usage: "Token issuer, must match auth.jwt_issuer",
}

var flagSubject = &cli.StringFlag{
	Name:     "subject",
	Usage:    "Client the token is issued to",
	Required: true,
}

var flagScope = &cli.StringFlag{
	Name:  "scope",
	Usage: "Optional scope claim",
}

var flagTTL = &cli.DurationFlag{
	Name:  "ttl",
	Value: auth.DefaultTokenTTL,
	Usage: "Token lifetime",
}

var flagServer = &cli.StringFlag{
	Name:  "server",
	Value: "http://127.0.0.1:8080/api/v1",
	Usage: "silo-enroll REST base URL",
}

var flagAPIKey = &cli.StringFlag{
	Name:    "api-key",
	Usage:   "API key sent as X-API-Key",
	EnvVars: []string{"SILO_ENROLL_API_KEY"},
}

func main() {
	app := &cli.App{
		Name:  "silo-enroll-admin",
		Usage: "operator helpers for silo-enroll",
		Commands: []*cli.Command{
			{
				Name:  "hash-api-key",
				Usage: "print the bcrypt hash to store in auth.api_key_hash",
				Flags: []cli.Flag{flagKey},
				Action: func(cCtx *cli.Context) error {
					hash, err := auth.HashKey(cCtx.String(flagKey.Name))
					if err != nil {
						return err
					}
					fmt.Println(hash)
					return nil
				},
			},
			{
				Name:  "issue-token",
				Usage: "print a signed bearer token",
				Flags: []cli.Flag{flagJWTSecret, flagJWTIssuer, flagSubject, flagScope, flagTTL},
				Action: func(cCtx *cli.Context) error {
					cfg := auth.Config{
						JWTSecret: cCtx.String(flagJWTSecret.Name),
						JWTIssuer: cCtx.String(flagJWTIssuer.Name),
						TokenTTL:  cCtx.Duration(flagTTL.Name),
					}
					token, err := auth.GenerateToken(cfg, cCtx.String(flagSubject.Name), cCtx.String(flagScope.Name))
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
			{
				Name:  "ping",
				Usage: "ask a running server whether its backend session is alive",
				Flags: []cli.Flag{flagServer, flagAPIKey},
				Action: func(cCtx *cli.Context) error {
					alive, err := ping(cCtx.Context, cCtx.String(flagServer.Name), cCtx.String(flagAPIKey.Name))
					if err != nil {
						return err
					}
					fmt.Println(alive)
					if alive != "true" {
						return cli.Exit("", 1)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ping(ctx context.Context, server, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/ping", nil)
	if err != nil {
		return "", err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}
