package http

import (
	"time"

	"github.com/EternisAI/silo-enroll/internal/api/http/middleware"
)

type Config struct {
	Port          uint              `mapstructure:"port"`
	BasePath      string            `mapstructure:"base_path"`
	UserDelimiter string            `mapstructure:"user_delimiter"`
	CORS          CORSConfig        `mapstructure:"cors"`
	RateLimit     middleware.Limits `mapstructure:"ratelimit"`
}

type CORSConfig struct {
	AllowOrigins []string      `mapstructure:"allow_origins"`
	MaxAge       time.Duration `mapstructure:"max_age"`
}

const (
	DefaultBasePath      = "/api/v1"
	DefaultUserDelimiter = "@"
)
