package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Modes an agent can be reached in.
const (
	ModeStandalone = "standalone"
	ModeAPIServer  = "api-server"
)

// Target is one agent the smoke command calls.
type Target struct {
	Name    string `mapstructure:"name"`
	Mode    string `mapstructure:"mode"`
	URL     string `mapstructure:"url"`
	App     string `mapstructure:"app"`
	Kind    string `mapstructure:"kind"`
	Message string `mapstructure:"message"`
}

type Config struct {
	StandaloneURL string        `mapstructure:"standalone_url"`
	APIServerURL  string        `mapstructure:"api_server_url"`
	AppName       string        `mapstructure:"app_name"`
	UserID        string        `mapstructure:"user_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Precedence    string        `mapstructure:"precedence"`
	OutputFormat  string        `mapstructure:"output_format"`
	Verbose       bool          `mapstructure:"verbose"`
	LogLevel      string        `mapstructure:"log_level"`
	MetricsFile   string        `mapstructure:"metrics_file"`
	Targets       []Target      `mapstructure:"targets"`
}

// DefaultConfigFile is $HOME/.agentcheck/config.yaml.
func DefaultConfigFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting user home directory: %w", err)
	}
	return filepath.Join(home, ".agentcheck", "config.yaml"), nil
}

func setDefaults() {
	viper.SetDefault("standalone_url", "http://127.0.0.1:8004")
	viper.SetDefault("api_server_url", "http://127.0.0.1:8000")
	viper.SetDefault("app_name", "agents.coordinator")
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("precedence", "function_response")
	viper.SetDefault("output_format", "table")
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_level", "info")
}

// Init loads .env from the working directory, then the config file, creating
// it with defaults when it does not exist. Environment variables prefixed
// AGENTCHECK_ override file values; USER_ID is honored as is.
func Init(configFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}

	if configFile == "" {
		var err error
		if configFile, err = DefaultConfigFile(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	viper.SetConfigFile(configFile)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("AGENTCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	setDefaults()

	viper.MustBindEnv("user_id", "USER_ID")

	if err := viper.ReadInConfig(); err != nil {
		// If config file doesn't exist, create it with defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if err := viper.WriteConfigAs(configFile); err != nil {
				return fmt.Errorf("error creating default config file: %w", err)
			}
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func Get() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if config.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	switch config.OutputFormat {
	case "table", "json":
	default:
		return nil, fmt.Errorf("unknown output format: %s", config.OutputFormat)
	}
	return &config, nil
}

// SmokeTargets returns the configured targets, or one target per protocol
// built from the base URLs when none are configured.
func (c *Config) SmokeTargets() []Target {
	if len(c.Targets) > 0 {
		return c.Targets
	}
	return []Target{
		{
			Name:    "sentiment",
			Mode:    ModeStandalone,
			URL:     c.StandaloneURL,
			Kind:    "sentiment",
			Message: "I'm feeling extremely happy and excited today!",
		},
		{
			Name:    c.AppName,
			Mode:    ModeAPIServer,
			URL:     c.APIServerURL,
			App:     c.AppName,
			Kind:    "generic",
			Message: "Hello, what can you do?",
		},
	}
}
