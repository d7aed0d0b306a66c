// Package config loads sqlchat settings from defaults, an optional config
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	appName   = "sqlchat"
	envPrefix = "SQLCHAT"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
}

// AppConfig holds settings shared by every surface.
type AppConfig struct {
	DataDir     string   `mapstructure:"data_dir"`
	DevMode     bool     `mapstructure:"dev_mode"` // show intermediate agent steps
	Greeting    string   `mapstructure:"greeting"`
	Suggestions []string `mapstructure:"suggestions"`
}

// LLMConfig selects and authenticates the hosted model.
type LLMConfig struct {
	Provider        string `mapstructure:"provider"` // "openai", "azure", "anthropic"
	Model           string `mapstructure:"model"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AzureAPIKey     string `mapstructure:"azure_api_key"`
	AzureEndpoint   string `mapstructure:"azure_endpoint"`
	AzureDeployment string `mapstructure:"azure_deployment"`
	AzureAPIVersion string `mapstructure:"azure_api_version"`
}

// AgentConfig tunes the SQL agent.
type AgentConfig struct {
	TopK         int `mapstructure:"top_k"`         // default row cap in generated queries
	MaxSteps     int `mapstructure:"max_steps"`     // model/tool round trips per question
	MemoryWindow int `mapstructure:"memory_window"` // exchanges replayed to the model, 0 = all
}

// ServerConfig holds the web server settings.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig holds the initial database selection.
type DatabaseConfig struct {
	URI            string        `mapstructure:"uri"` // empty selects the bundled sample
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DefaultSuggestions are offered as one-click questions.
var DefaultSuggestions = []string{
	"Which 5 countries have the highest total sales?",
	"Plot a bar chart of the number of tracks per genre",
	"Show a pie chart of invoices by billing country",
	"Draw a line chart of total sales per year",
	"Who are the top 3 best selling artists?",
}

// envAliases are the variable names used by the original deployment. They are
// read when the SQLCHAT_ prefixed name is not set.
var envAliases = map[string]string{
	"llm.openai_api_key":    "OPENAI_API_KEY",
	"llm.anthropic_api_key": "ANTHROPIC_API_KEY",
	"llm.azure_api_key":     "AZURE_OPENAI_API_KEY",
	"llm.azure_endpoint":    "AZURE_OPENAI_ENDPOINT",
	"llm.azure_deployment":  "AZURE_OPENAI_DEPLOYMENT_NAME",
	"llm.azure_api_version": "AZURE_OPENAI_API_VERSION",
	"app.dev_mode":          "DEV_MODE",
}

// Load reads the configuration. configPath may be empty, in which case
// config.{yaml,toml,json} is looked up in the working directory and in
// $HOME/.sqlchat. A .env file in the working directory is loaded first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+appName))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", alias, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", "tmpdata/")
	v.SetDefault("app.dev_mode", false)
	v.SetDefault("app.greeting", "Please ask me anything about your database!")
	v.SetDefault("app.suggestions", DefaultSuggestions)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.azure_api_version", "2024-02-01")

	v.SetDefault("agent.top_k", 10)
	v.SetDefault("agent.max_steps", 15)
	v.SetDefault("agent.memory_window", 0)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_ttl", "2h")
	v.SetDefault("server.request_timeout", "3m")

	v.SetDefault("database.uri", "")
	v.SetDefault("database.connect_timeout", "10s")
}

// Validate checks that the values can be used.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LLM.Provider) {
	case "", "openai", "azure", "azure-openai", "azure_openai", "anthropic", "claude":
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d is out of range", c.Server.Port))
	}
	if c.Server.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("server.session_ttl must be positive"))
	}
	if c.Agent.TopK <= 0 {
		errs = append(errs, fmt.Errorf("agent.top_k must be positive"))
	}
	if c.Agent.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_steps must be positive"))
	}
	if c.Agent.MemoryWindow < 0 {
		errs = append(errs, fmt.Errorf("agent.memory_window cannot be negative"))
	}
	if c.App.DataDir == "" {
		errs = append(errs, fmt.Errorf("app.data_dir is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
