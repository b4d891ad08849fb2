package auth

import "time"

type Config struct {
	APIKeyHash string        `mapstructure:"api_key_hash"`
	JWTSecret  string        `mapstructure:"jwt_secret" json:"-"`
	JWTIssuer  string        `mapstructure:"jwt_issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether any credential is configured.
func (c Config) Enabled() bool {
	return c.APIKeyHash != "" || c.JWTSecret != ""
}
