// Package config loads gearforge's runtime configuration via viper:
// defaults, an optional config file, then environment variables, in
// increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Storage StorageConfig `mapstructure:"storage"`
	Forward ForwardConfig `mapstructure:"forward"`
	Log     LogConfig     `mapstructure:"log"`
	DevMode bool          `mapstructure:"dev_mode"`
}

// HTTPConfig configures the server's listen address.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LLMConfig selects and authenticates the LLM adapter.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // anthropic, openai, google, mock
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// StorageConfig selects and connects the storage backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, sqlite, mysql
	DSN    string `mapstructure:"dsn"`
}

// ForwardConfig governs outbound gear-to-gear and HTTP-node traffic.
type ForwardConfig struct {
	// PublicOrigin resolves relative outputUrls configured on a gear.
	PublicOrigin string `mapstructure:"public_origin"`
	// AllowedHosts augments the urlguard allow-list beyond loopback/private
	// rejection, e.g. a trusted internal hostname used in tests.
	AllowedHosts []string      `mapstructure:"allowed_hosts"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load resolves configuration from defaults, an optional config file
// named "gearforge" on the search paths below, and GEARFORGE_-prefixed
// environment variables (e.g. GEARFORGE_LLM_API_KEY).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("gearforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gearforge")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("GEARFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "mock" {
		return nil, fmt.Errorf("config: llm.api_key is required for provider %q", cfg.LLM.Provider)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("forward.public_origin", "")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("forward.timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dev_mode", false)
}
