package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/AgentShepherd/dataworks/internal/guard"
	"github.com/AgentShepherd/dataworks/internal/logger"
	"github.com/AgentShepherd/dataworks/internal/types"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var cfgLog = logger.New("config")

// validate reports field errors by their YAML path (e.g. "sandbox.root").
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config represents the dataworks configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Audit   AuditConfig   `yaml:"audit"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string         `yaml:"host" validate:"required"`
	Port         int            `yaml:"port" validate:"min=1,max=65535"`
	LogLevel     types.LogLevel `yaml:"log_level"`
	NoColor      bool           `yaml:"no_color"`
	ReadTimeout  int            `yaml:"read_timeout" validate:"min=0"` // seconds, 0 = none
	MaxBodyBytes int64          `yaml:"max_body_bytes" validate:"min=1"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SandboxConfig is the authorization boundary. It is read once at startup;
// edits to the file take effect only after a restart.
type SandboxConfig struct {
	Root                 string   `yaml:"root" validate:"required"`
	AllowedExtensions    []string `yaml:"allowed_extensions" validate:"min=1,dive,startswith=.,min=2,excludesall=/\\"`
	RestrictedOperations []string `yaml:"restricted_operations" validate:"dive,required"`
	MaxFileSize          int64    `yaml:"max_file_size" validate:"min=1"`
}

// LLMConfig holds the OpenAI-compatible endpoint used to parse tasks
type LLMConfig struct {
	Endpoint       string  `yaml:"endpoint" validate:"required"`
	Model          string  `yaml:"model" validate:"required"`
	EmbeddingModel string  `yaml:"embedding_model" validate:"required"`
	MaxTokens      int     `yaml:"max_tokens" validate:"min=1"`
	Temperature    float64 `yaml:"temperature" validate:"min=0,max=2"`
	Timeout        int     `yaml:"timeout" validate:"min=1"` // seconds
}

// StorageConfig holds database settings
type StorageConfig struct {
	DBPath string `yaml:"db_path" validate:"required"`
}

// AuditConfig holds decision audit trail settings
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days" validate:"min=0,max=36500"` // 0 = forever
}

// HTTPConfig holds settings for outbound fetches made by tasks
type HTTPConfig struct {
	FetchTimeout int    `yaml:"fetch_timeout" validate:"min=1"` // seconds
	UserAgent    string `yaml:"user_agent" validate:"required"`
}

// DefaultConfigPath returns the default config file path (~/.dataworks/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".dataworks", "config.yaml")
}

// defaultDBPath returns the default database path under ~/.dataworks/.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./dataworks.db"
	}
	return filepath.Join(home, ".dataworks", "dataworks.db")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			LogLevel:     types.LogLevelInfo,
			ReadTimeout:  30,
			MaxBodyBytes: 1 << 20,
		},
		Sandbox: SandboxConfig{
			Root:                 "/data",
			AllowedExtensions:    []string{".txt", ".md", ".json", ".csv", ".db", ".mp3", ".png", ".jpg", ".log", ".html"},
			RestrictedOperations: []string{"delete", "remove", "rm", "rmdir", "unlink"},
			MaxFileSize:          100 * 1024 * 1024,
		},
		LLM: LLMConfig{
			Endpoint:       "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			MaxTokens:      150,
			Temperature:    0,
			Timeout:        30,
		},
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		HTTP: HTTPConfig{
			FetchTimeout: 30,
			UserAgent:    "dataworks",
		},
	}
}

// ToGuard returns the authorizer configuration.
func (c *Config) ToGuard() guard.Config {
	return guard.Config{
		Root:                 c.Sandbox.Root,
		AllowedExtensions:    append([]string(nil), c.Sandbox.AllowedExtensions...),
		RestrictedOperations: append([]string(nil), c.Sandbox.RestrictedOperations...),
		MaxFileSize:          c.Sandbox.MaxFileSize,
	}
}

// Validate checks all Config fields and returns a multi-error report.
// Call this AFTER CLI and environment overrides have been applied.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation failed: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	if !c.Server.LogLevel.Valid() && c.Server.LogLevel != "" {
		errs = append(errs, fmt.Sprintf("server.log_level: unknown log level %q (valid: trace, debug, info, warn, error)", c.Server.LogLevel))
	}

	if c.Sandbox.Root != "" && !filepath.IsAbs(c.Sandbox.Root) {
		errs = append(errs, fmt.Sprintf("sandbox.root: must be an absolute path (got %q)", c.Sandbox.Root))
	}

	if c.LLM.Endpoint != "" {
		if u, err := url.Parse(c.LLM.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("llm.endpoint: must be a valid http/https URL (got %q)", c.LLM.Endpoint))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for i, e := range errs {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e)
	}
	return errors.New(sb.String())
}

// describe renders a validator error as "section.field: message".
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: must not be empty", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s: must have at least %s entries", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s: must be at least %s characters (got %q)", field, fe.Param(), fe.Value())
		}
		return fmt.Sprintf("%s: must be >= %s (got %v)", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s: must be <= %s (got %v)", field, fe.Param(), fe.Value())
	case "startswith":
		return fmt.Sprintf("%s: must start with %q (got %q)", field, fe.Param(), fe.Value())
	case "excludesall":
		return fmt.Sprintf("%s: must not contain a path separator (got %q)", field, fe.Value())
	}
	return fmt.Sprintf("%s: failed %q check", field, fe.Tag())
}

// isUnknownFieldError returns true if the error is from yaml.Decoder.KnownFields(true)
// detecting an unrecognized key (e.g. typo like "sandbx:").
func isUnknownFieldError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found in type")
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Note: Load does NOT call Validate(). Callers should apply CLI overrides
// first, then call cfg.Validate() themselves.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	// Try strict decode to warn about unknown fields (typos like "sandbx:")
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if isUnknownFieldError(err) {
			cfgLog.Warn("config has unknown fields (ignored): %v", err)
			// Re-parse without strict mode for forward compatibility
			cfg = DefaultConfig()
			if err2 := yaml.Unmarshal(data, cfg); err2 != nil {
				return nil, fmt.Errorf("config parse error: %w", err2)
			}
		} else if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config parse error: %w", err)
		}
	}

	return cfg, nil
}
