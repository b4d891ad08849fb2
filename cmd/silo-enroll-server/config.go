package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EternisAI/silo-enroll/internal/api/http"
	"github.com/EternisAI/silo-enroll/internal/api/http/middleware"
	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	grpcserver "github.com/EternisAI/silo-enroll/internal/grpc/server"
	"github.com/EternisAI/silo-enroll/internal/provisioning"
	"github.com/EternisAI/silo-enroll/internal/session"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          LogConfig
	Http         http.Config
	Grpc         grpcserver.Config
	Bsidca       bsidca.Config
	Session      session.Config
	Provisioning provisioning.Config
	Enrollment   enrollment.Config
	Auth         auth.Config
}

var config Config

func setDefaults() {
	viper.SetDefault("log.level", LOG_LEVEL_INFO)

	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.base_path", http.DefaultBasePath)
	viper.SetDefault("http.user_delimiter", http.DefaultUserDelimiter)
	viper.SetDefault("http.cors.allow_origins", []string{"*"})
	viper.SetDefault("http.cors.max_age", 12*time.Hour)
	viper.SetDefault("http.ratelimit.enrollment.requests", middleware.DefaultEnrollmentLimit.RequestsPerWindow)
	viper.SetDefault("http.ratelimit.enrollment.window", middleware.DefaultEnrollmentLimit.Window)
	viper.SetDefault("http.ratelimit.enrollment.burst", middleware.DefaultEnrollmentLimit.Burst)

	viper.SetDefault("grpc.port", 9090)
	viper.SetDefault("grpc.poll_interval", 5*time.Second)
	viper.SetDefault("grpc.tls.enabled", false)
	viper.SetDefault("grpc.tls.cert_file", "")
	viper.SetDefault("grpc.tls.key_file", "")
	viper.SetDefault("grpc.tls.ca_file", "")
	viper.SetDefault("grpc.tls.client_auth", "none")

	viper.SetDefault("bsidca.base_url", "")
	viper.SetDefault("bsidca.operator", "")
	viper.SetDefault("bsidca.secret", "")
	viper.SetDefault("bsidca.transport.max_conns", 20)
	viper.SetDefault("bsidca.transport.connect_timeout", 20*time.Second)
	viper.SetDefault("bsidca.transport.read_timeout", 20*time.Second)
	viper.SetDefault("bsidca.transport.idle_timeout", 20*time.Second)
	viper.SetDefault("bsidca.transport.ca_file", "")
	viper.SetDefault("bsidca.transport.insecure_skip_verify", false)

	def := session.DefaultConfig()
	viper.SetDefault("session.max_attempts", def.MaxAttempts)
	viper.SetDefault("session.retry_interval", def.RetryInterval)
	viper.SetDefault("session.keepalive_interval", def.KeepaliveInterval)
	viper.SetDefault("session.probe_timeout", def.ProbeTimeout)

	viper.SetDefault("provisioning.page_size", 1000)
	viper.SetDefault("provisioning.description", "")
	viper.SetDefault("enrollment.deep_link_prefix", "")

	viper.SetDefault("auth.api_key_hash", "")
	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.jwt_issuer", "silo-enroll")
	viper.SetDefault("auth.token_ttl", auth.DefaultTokenTTL)
}

func InitConfig() {
	var err error

	_ = godotenv.Load()

	setDefaults()
	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/silo-enroll-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
