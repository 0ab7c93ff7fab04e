package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultConfigPath is where the config file is looked up when --config is not given
const DefaultConfigPath = "~/.config/phishsim/config.json"

// EnvPrefix prefixes every environment override, e.g. PHISHSIM_SERVER_PORT
const EnvPrefix = "PHISHSIM"

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Logs     LogsConfig     `mapstructure:"logs" json:"logs"`
	Capture  CaptureConfig  `mapstructure:"capture" json:"capture"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Ntfy     NtfyConfig     `mapstructure:"ntfy" json:"ntfy"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port       string `mapstructure:"port" json:"port" validate:"required,numeric"`
	Env        string `mapstructure:"env" json:"env" validate:"oneof=development production"`
	Domain     string `mapstructure:"domain" json:"domain" validate:"required_if=AutoTLS true"`
	AutoTLS    bool   `mapstructure:"auto_tls" json:"auto_tls"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
	LandingDir string `mapstructure:"landing_dir" json:"landing_dir"`
}

// LogsConfig holds the event log destinations, one file per event kind
type LogsConfig struct {
	OpensPath       string `mapstructure:"opens_path" json:"opens_path" validate:"required"`
	CredentialsPath string `mapstructure:"credentials_path" json:"credentials_path" validate:"required,nefield=OpensPath"`
}

// CaptureConfig holds credential capture settings
type CaptureConfig struct {
	RedirectURL string `mapstructure:"redirect_url" json:"redirect_url" validate:"required,url"`
}

// DatabaseConfig holds the optional SQLite event mirror
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// NtfyConfig holds operator notification settings
type NtfyConfig struct {
	URL         string `mapstructure:"url" json:"url" validate:"omitempty,url"`
	Topic       string `mapstructure:"topic" json:"topic"`
	NotifyOpens bool   `mapstructure:"notify_opens" json:"notify_opens"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "4698")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.domain", "")
	v.SetDefault("server.auto_tls", false)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.landing_dir", "")
	v.SetDefault("logs.opens_path", "logs/email_opens.log")
	v.SetDefault("logs.credentials_path", "logs/credentials.log")
	v.SetDefault("capture.redirect_url", "https://example.com/login")
	v.SetDefault("database.path", "")
	v.SetDefault("ntfy.url", "https://ntfy.sh")
	v.SetDefault("ntfy.topic", "")
	v.SetDefault("ntfy.notify_opens", false)
}

// Load reads the JSON config file at path (if it exists), applies PHISHSIM_*
// environment overrides and validates the result. A missing file is not an
// error; defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		path = ExpandPath(path)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Logs.OpensPath = ExpandPath(cfg.Logs.OpensPath)
	cfg.Logs.CredentialsPath = ExpandPath(cfg.Logs.CredentialsPath)
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Server.LandingDir = ExpandPath(cfg.Server.LandingDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CreateDefaultConfig returns a config populated with default values
func CreateDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "4698",
			Env:  "development",
		},
		Logs: LogsConfig{
			OpensPath:       "logs/email_opens.log",
			CredentialsPath: "logs/credentials.log",
		},
		Capture: CaptureConfig{
			RedirectURL: "https://example.com/login",
		},
		Ntfy: NtfyConfig{
			URL: "https://ntfy.sh",
		},
	}
}

// SaveToFile writes the config as JSON with owner-only permissions
func SaveToFile(cfg *Config, path string) error {
	path = ExpandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// MirrorEnabled reports whether events are also written to SQLite
func (c *Config) MirrorEnabled() bool {
	return c.Database.Path != ""
}

// NotificationsEnabled reports whether ntfy notifications are sent
func (c *Config) NotificationsEnabled() bool {
	return c.Ntfy.Topic != ""
}

// ExpandPath expands ~/ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
