package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Secrets holds sensitive configuration loaded from environment variables
// SECURITY: Use environment variables instead of CLI flags for secrets
// CLI flags are visible in process listings (ps auxww)
type Secrets struct {
	// AIProxyToken is the LLM API key.
	// Env: AIPROXY_TOKEN
	AIProxyToken string `envconfig:"AIPROXY_TOKEN"`

	// LLMAPIKey is accepted when AIPROXY_TOKEN is unset.
	// Env: LLM_API_KEY
	LLMAPIKey string `envconfig:"LLM_API_KEY"`

	// DBKey is the SQLCipher database encryption key
	// Env: DB_KEY
	DBKey string `envconfig:"DB_KEY"`
}

// LoadSecrets loads secrets from environment variables
func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to load secrets from environment: %w", err)
	}
	return &s, nil
}

// APIKey returns the LLM key, preferring AIPROXY_TOKEN.
func (s *Secrets) APIKey() string {
	if s.AIProxyToken != "" {
		return s.AIProxyToken
	}
	return s.LLMAPIKey
}

// Validate validates that required secrets are set
func (s *Secrets) Validate() error {
	if s.APIKey() == "" {
		return errors.New("LLM API key is required (set AIPROXY_TOKEN or LLM_API_KEY)")
	}
	return nil
}

// ValidateDBKey validates the database encryption key if set
func (s *Secrets) ValidateDBKey() error {
	if s.DBKey != "" && len(s.DBKey) < 16 {
		return errors.New("database encryption key must be at least 16 characters")
	}
	return nil
}

// HasDBEncryption returns true if database encryption is configured
func (s *Secrets) HasDBEncryption() bool {
	return s.DBKey != ""
}

// MaskAPIKey returns a masked version of the LLM API key for logging
func (s *Secrets) MaskAPIKey() string {
	key := s.APIKey()
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
