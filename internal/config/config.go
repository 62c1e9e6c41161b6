// Package config loads the process configuration: the database DSN, the
// query API bind address, and the list of CheckWeigher devices to poll.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the collector and api processes.
type Config struct {
	Global  GlobalConfig
	API     APIConfig
	Devices []DeviceConfig
}

// GlobalConfig holds settings shared by both processes.
type GlobalConfig struct {
	// DatabaseURL is the DSN consumed by the connection pool (C9). Required.
	DatabaseURL string
}

// APIConfig holds the bind address for the external query surface.
type APIConfig struct {
	Host string
	Port int
	// CORSOrigins is an ambient addition beyond spec.md's external
	// interfaces table: the query surface is explicitly unauthenticated,
	// so the origin allowlist is the only access control knob exposed.
	CORSOrigins []string
}

// DeviceConfig describes one CheckWeigher device entry from
// observer.checkweighers.
type DeviceConfig struct {
	CWID         string
	Name         string
	IPAddress    string
	Port         int
	Enabled      bool
	PollInterval time.Duration
	Timeout      time.Duration
}

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultReadTimeout  = 5 * time.Second
	defaultAPIPort      = 8080
)

// Load builds configuration from environment variables only, with
// sensible defaults. LoadWithFile layers a TOML file underneath this.
func Load() (*Config, error) {
	cfg := &Config{
		Global: GlobalConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		API: APIConfig{
			Host:        getEnv("API_HOST", "0.0.0.0"),
			Port:        getEnvInt("API_PORT", defaultAPIPort),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),
		},
	}
	return cfg, nil
}

// Validate enforces the fatal-configuration-error contract from spec.md
// §7: a missing DSN must be reported and terminate the process.
func (c *Config) Validate() error {
	if c.Global.DatabaseURL == "" {
		return fmt.Errorf("config: global.DATABASE_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
