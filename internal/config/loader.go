package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// credentialsEnv is the environment credential overlay.
type credentialsEnv struct {
	KeyID      string `env:"APCA_API_KEY_ID"`
	SecretKey  string `env:"APCA_API_SECRET_KEY"`
	OAuthToken string `env:"APCA_API_OAUTH_TOKEN"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*StreamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg StreamConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*StreamConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*StreamConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// overlayEnv replaces file credentials with any set APCA_API_* variables.
func (c *StreamConfig) overlayEnv() error {
	var env credentialsEnv
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode credential env: %w", err)
	}
	if env.KeyID != "" {
		c.Stream.KeyID = env.KeyID
	}
	if env.SecretKey != "" {
		c.Stream.SecretKey = env.SecretKey
	}
	if env.OAuthToken != "" {
		c.Stream.OAuthToken = env.OAuthToken
	}
	return nil
}

// FromEnv returns a default config carrying credentials from the environment.
func FromEnv() (*StreamConfig, error) {
	var cfg StreamConfig
	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}
