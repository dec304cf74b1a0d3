// Package config provides environment-based configuration for Arx.
//
// Configuration is loaded from environment variables using Viper, with
// sensible defaults for development. This package handles database
// connection settings, token secrets and lifetimes, session ledger limits,
// and tenant resolution strategy.
//
// # Environment Variables
//
//   - DB_TYPE: Database type (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: arx.db
//   - SKIP_AUTO_MIGRATE: Skip automatic database migrations. Default: false
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - PORT: HTTP server port. Default: 8080
//   - ACCESS_TOKEN_SECRET: HMAC secret for access tokens (required in prod)
//   - REFRESH_TOKEN_SECRET: server-side pepper mixed into stored refresh token hashes
//   - ACCESS_TOKEN_TTL: access token lifetime. Default: 15m
//   - REFRESH_TOKEN_TTL: refresh token lifetime. Default: 168h (7 days)
//   - VERIFICATION_CODE_TTL: email verification code lifetime. Default: 15m
//   - SESSION_CAP: max live refresh records per user. Default: 5
//   - DEFAULT_ROLE: role assigned at signup. Default: member
//   - TENANT_RESOLUTION: tenant resolution strategy (header, subdomain, static). Default: header
//   - BASE_DOMAIN: root domain for subdomain resolution
//
// # Example Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Starting on port %d with %s database\n", cfg.Port, cfg.DBType)
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBType          string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"DSN"`
	SkipAutoMigrate bool   `mapstructure:"SKIP_AUTO_MIGRATE"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	Port            int    `mapstructure:"PORT"`

	AccessTokenSecret  string        `mapstructure:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `mapstructure:"REFRESH_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL    time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	VerificationCodeTTL time.Duration `mapstructure:"VERIFICATION_CODE_TTL"`
	SessionCap          int           `mapstructure:"SESSION_CAP"`
	BcryptCost          int           `mapstructure:"BCRYPT_COST"`
	DefaultRole         string        `mapstructure:"DEFAULT_ROLE"`

	TenantResolution string `mapstructure:"TENANT_RESOLUTION"` // header, subdomain, static
	BaseDomain       string `mapstructure:"BASE_DOMAIN"`
	StaticTenantID   string `mapstructure:"STATIC_TENANT_ID"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "arx.db") // Default to sqlite if not provided
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)

	viper.SetDefault("ACCESS_TOKEN_SECRET", "dev-access-secret")
	viper.SetDefault("REFRESH_TOKEN_SECRET", "dev-refresh-secret")
	viper.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	viper.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)

	viper.SetDefault("VERIFICATION_CODE_TTL", 15*time.Minute)
	viper.SetDefault("SESSION_CAP", 5)
	viper.SetDefault("BCRYPT_COST", 12)
	viper.SetDefault("DEFAULT_ROLE", "member")

	viper.SetDefault("TENANT_RESOLUTION", "header")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
