package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/database"
	"github.com/spf13/viper"
)

const (
	envPrefix                 = "SEATPLAN"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = database.DriverSQLite
	defaultDatabasePath       = "seatplan.db"
	defaultLogLevel           = "info"
	defaultCookieName         = "app_session"
	defaultIssuer             = "seatplan"
	defaultTokenTTLMinutes    = 720
	defaultSaveTimeoutSeconds = 5
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	LogLevel          string
	AuthSigningSecret string
	AuthCookieName    string
	AuthIssuer        string
	TokenTTL          time.Duration
	PlanSaveTimeout   time.Duration
	AllowedOrigins    []string
}

// DatabaseOptions returns the connection options for the configured backend.
func (c AppConfig) DatabaseOptions() database.Options {
	return database.Options{
		Driver: c.DatabaseDriver,
		Path:   c.DatabasePath,
		DSN:    c.DatabaseDSN,
	}
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", "")
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("plan.save_timeout_seconds", defaultSaveTimeoutSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:      configViper.GetString("database.path"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		LogLevel:          configViper.GetString("log.level"),
		AuthSigningSecret: configViper.GetString("auth.signing_secret"),
		AuthCookieName:    configViper.GetString("auth.cookie_name"),
		AuthIssuer:        configViper.GetString("auth.issuer"),
		TokenTTL:          time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		PlanSaveTimeout:   time.Duration(configViper.GetInt("plan.save_timeout_seconds")) * time.Second,
		AllowedOrigins:    splitOrigins(configViper.GetString("http.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if strings.TrimSpace(c.AuthIssuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.PlanSaveTimeout <= 0 {
		return fmt.Errorf("plan.save_timeout_seconds must be positive")
	}
	switch c.DatabaseDriver {
	case database.DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case database.DriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
