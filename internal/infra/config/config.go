package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	StoreBackend string
	DatabaseURL  string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	JWTSecret         string
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	TokenTTL          time.Duration
	TokenLeeway       time.Duration
	Issuer            string
	Audience          string

	PasswordPepper        string
	PasswordHashAlgorithm string
	BcryptCost            int
	HashConcurrency       int

	HTTPAddress    string
	GRPCAddress    string
	HTTPSCertFile  string
	HTTPSKeyFile   string
	HealthInterval time.Duration

	AllowedOrigins   []string
	AllowCredentials bool
	RateLimit        int
	RateBurst        int

	LogLevel string
	LogFile  string
}

var keys = []string{
	"STORE_BACKEND", "DATABASE_URL",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB",
	"JWT_SECRET", "JWT_PRIVATE_KEY_PATH", "JWT_PUBLIC_KEY_PATH",
	"TOKEN_TTL", "TOKEN_LEEWAY", "JWT_ISSUER", "JWT_AUDIENCE",
	"PASSWORD_PEPPER", "PASSWORD_HASH_ALGORITHM", "BCRYPT_COST", "HASH_CONCURRENCY",
	"HTTP_ADDRESS", "GRPC_ADDRESS", "HTTPS_CERT_FILE", "HTTPS_KEY_FILE", "HEALTH_INTERVAL",
	"ALLOWED_ORIGINS", "ALLOW_CREDENTIALS", "RATE_LIMIT", "RATE_BURST",
	"LOG_LEVEL", "LOG_FILE",
}

// Load reads configuration from the environment, falling back to an
// optional config.json in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("TOKEN_LEEWAY", "0s")
	v.SetDefault("JWT_ISSUER", "credential-service")
	v.SetDefault("PASSWORD_HASH_ALGORITHM", "argon2id")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("HASH_CONCURRENCY", 4)
	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("GRPC_ADDRESS", ":50051")
	v.SetDefault("HEALTH_INTERVAL", "10s")
	v.SetDefault("RATE_LIMIT", 50)
	v.SetDefault("RATE_BURST", 100)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	origins := splitList(v.GetStringSlice("ALLOWED_ORIGINS"))

	cfg := &Config{
		StoreBackend:          strings.ToLower(v.GetString("STORE_BACKEND")),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		RedisAddress:          v.GetString("REDIS_ADDRESS"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		JWTPrivateKeyPath:     v.GetString("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:      v.GetString("JWT_PUBLIC_KEY_PATH"),
		TokenTTL:              v.GetDuration("TOKEN_TTL"),
		TokenLeeway:           v.GetDuration("TOKEN_LEEWAY"),
		Issuer:                v.GetString("JWT_ISSUER"),
		Audience:              v.GetString("JWT_AUDIENCE"),
		PasswordPepper:        v.GetString("PASSWORD_PEPPER"),
		PasswordHashAlgorithm: v.GetString("PASSWORD_HASH_ALGORITHM"),
		BcryptCost:            v.GetInt("BCRYPT_COST"),
		HashConcurrency:       v.GetInt("HASH_CONCURRENCY"),
		HTTPAddress:           v.GetString("HTTP_ADDRESS"),
		GRPCAddress:           v.GetString("GRPC_ADDRESS"),
		HTTPSCertFile:         v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:          v.GetString("HTTPS_KEY_FILE"),
		HealthInterval:        v.GetDuration("HEALTH_INTERVAL"),
		AllowedOrigins:        origins,
		AllowCredentials:      v.GetBool("ALLOW_CREDENTIALS"),
		RateLimit:             v.GetInt("RATE_LIMIT"),
		RateBurst:             v.GetInt("RATE_BURST"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFile:               v.GetString("LOG_FILE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisAddress == "" {
			return errors.New("REDIS_ADDRESS is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	rsa := c.JWTPrivateKeyPath != "" || c.JWTPublicKeyPath != ""
	switch {
	case rsa && (c.JWTPrivateKeyPath == "" || c.JWTPublicKeyPath == ""):
		return errors.New("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	case !rsa && c.JWTSecret == "":
		return errors.New("either JWT_SECRET or an RSA key pair is required")
	}

	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.TokenLeeway < 0 {
		return errors.New("TOKEN_LEEWAY must not be negative")
	}
	if (c.HTTPSCertFile == "") != (c.HTTPSKeyFile == "") {
		return errors.New("HTTPS_CERT_FILE and HTTPS_KEY_FILE must be set together")
	}
	return nil
}

// TLSEnabled reports whether both listeners should serve TLS.
func (c *Config) TLSEnabled() bool {
	return c.HTTPSCertFile != "" && c.HTTPSKeyFile != ""
}

// splitList flattens viper's slice: env values arrive split on whitespace
// only, so "a, b" and "a,b" are split again on commas.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, p := range strings.Split(item, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
