// Package config loads server configuration from environment variables:
// plain os.Getenv reads with sensible dev-mode defaults, no third-party
// config framework.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything the process needs to construct its store,
// authenticator, and rate limiter at startup. Deployment-profile values
// live in profile_loader.go; the optional backends (blob storage, Redis,
// OTLP export), CORS origins and the MCP port are read from the
// environment directly where they are wired up, not through Config.
type Config struct {
	// Store connection. Password is mandatory outside LocalInsecure mode.
	StoreDriver   string // "postgres" or "sqlite"
	StoreHost     string
	StorePort     string
	StoreDB       string
	StoreUser     string
	StorePassword string

	Port     string
	LogLevel string

	// AdminBypassStrict is loaded from NEBULA_ADMIN_BYPASS_STRICT and
	// defaults to true. Nothing else reads it: the admin check always
	// requires the admin scope name to match exactly, whatever its value.
	AdminBypassStrict bool

	// BootstrapEnabled is handed to auth.NewAuthenticator: when true, a
	// request with no credential resolves to the bootstrap caller (which
	// may use the enrollment actions); when false it is rejected.
	BootstrapEnabled bool

	// LocalInsecure lifts Load's store-password requirement; nothing else
	// reads it, and credential verification is unaffected. Development
	// only; Load refuses to honor it unless NEBULA_ENV is unset or "dev".
	LocalInsecure bool
}

// Load reads configuration from the environment. Every value has a
// default except the store password, which is required once
// LocalInsecure is off.
func Load() (*Config, error) {
	cfg := &Config{
		StoreDriver:       getEnvDefault("NEBULA_STORE_DRIVER", "postgres"),
		StoreHost:         getEnvDefault("NEBULA_STORE_HOST", "localhost"),
		StorePort:         getEnvDefault("NEBULA_STORE_PORT", "5432"),
		StoreDB:           getEnvDefault("NEBULA_STORE_DB", "nebula"),
		StoreUser:         getEnvDefault("NEBULA_STORE_USER", "nebula"),
		StorePassword:     os.Getenv("NEBULA_STORE_PASSWORD"),
		Port:              getEnvDefault("NEBULA_PORT", "8080"),
		LogLevel:          getEnvDefault("NEBULA_LOG_LEVEL", "INFO"),
		AdminBypassStrict: getEnvBool("NEBULA_ADMIN_BYPASS_STRICT", true),
		BootstrapEnabled:  getEnvBool("NEBULA_BOOTSTRAP_ENABLED", true),
		LocalInsecure:     getEnvBool("NEBULA_LOCAL_INSECURE", false),
	}

	if cfg.LocalInsecure && getEnvDefault("NEBULA_ENV", "dev") != "dev" {
		return nil, fmt.Errorf("config: NEBULA_LOCAL_INSECURE is only permitted when NEBULA_ENV is unset or \"dev\"")
	}
	if cfg.StorePassword == "" && !cfg.LocalInsecure {
		return nil, fmt.Errorf("config: NEBULA_STORE_PASSWORD is required unless NEBULA_LOCAL_INSECURE is set")
	}
	return cfg, nil
}

// DSN builds the driver-appropriate connection string for pkg/store.Open.
func (c *Config) DSN() string {
	if c.StoreDriver == "sqlite" {
		return c.StoreDB
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.StoreUser, c.StorePassword, c.StoreHost, c.StorePort, c.StoreDB)
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
