package config

import (
	"fmt"

	"github.com/AgentShepherd/dataworks/internal/types"
	"github.com/kelseyhightower/envconfig"
)

// envOverrides are non-secret settings that deployments commonly set from the
// container environment rather than the config file.
type envOverrides struct {
	DataDir   string `envconfig:"DATA_DIR"`
	ModelName string `envconfig:"MODEL_NAME"`
	LLMURL    string `envconfig:"LLM_ENDPOINT"`
	Port      int    `envconfig:"PORT"`
	Debug     bool   `envconfig:"DEBUG"`
}

// ApplyEnv overlays DATA_DIR, MODEL_NAME, LLM_ENDPOINT, PORT and DEBUG onto
// the configuration. Unset variables leave the file values alone.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to load settings from environment: %w", err)
	}
	if env.DataDir != "" {
		c.Sandbox.Root = env.DataDir
	}
	if env.ModelName != "" {
		c.LLM.Model = env.ModelName
	}
	if env.LLMURL != "" {
		c.LLM.Endpoint = env.LLMURL
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.Debug {
		c.Server.LogLevel = types.LogLevelDebug
	}
	return nil
}
