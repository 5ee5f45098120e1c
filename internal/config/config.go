package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	devJWTSecret     = "change-me"
	devAdminPassword = "adminpassword"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"text"`

	MySQLDSN string `envconfig:"MYSQL_DSN" default:"user:password@tcp(localhost:3306)/donations?charset=utf8mb4&parseTime=True&loc=UTC"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`

	JWTSecret         string        `envconfig:"JWT_SECRET" default:"change-me"`
	AccessTokenTTL    time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"30m"`
	SessionCookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"access_token"`
	CookieSecure      bool          `envconfig:"COOKIE_SECURE" default:"false"`
	LoginRateLimit    int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"adminpassword"`

	ActivityLogMax  int64         `envconfig:"ACTIVITY_LOG_MAX" default:"1000"`
	ProjectsSeedURL string        `envconfig:"PROJECTS_SEED_URL"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	SwaggerHost string `envconfig:"SWAGGER_HOST"`
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	if cfg.IsProduction() && cfg.JWTSecret == devJWTSecret {
		return nil, errors.New("JWT_SECRET must be set in production")
	}
	if cfg.IsProduction() && cfg.AdminPassword == devAdminPassword {
		return nil, errors.New("ADMIN_PASSWORD must be set in production")
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// CookieMaxAge is the session cookie lifetime in seconds, matching the token TTL.
func (c *Config) CookieMaxAge() int {
	return int(c.AccessTokenTTL / time.Second)
}
