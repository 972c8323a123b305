package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const defaultListen = "0.0.0.0:8080"

// ServerConfig holds the HTTP server settings read from the environment.
type ServerConfig struct {
	Listen   string // LISTEN
	Salt     string // SALT, mixed into every record id
	Username string // BASIC_AUTH_USERNAME
	Password string // BASIC_AUTH_PASSWORD
	GinMode  string // GIN_MODE
}

// HasCredentials reports whether basic auth is configured. Both username and
// password must be set.
func (c *ServerConfig) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// LoadDotEnv loads variables from path (".env" when empty) into the process
// environment. A missing file is not an error; variables already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadServerConfig reads the server settings from the environment.
func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Listen:   getEnv("LISTEN", defaultListen),
		Salt:     os.Getenv("SALT"),
		Username: os.Getenv("BASIC_AUTH_USERNAME"),
		Password: os.Getenv("BASIC_AUTH_PASSWORD"),
		GinMode:  getEnv("GIN_MODE", "release"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
