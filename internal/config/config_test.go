package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"home prefix", "~/test/path", filepath.Join(homeDir, "test/path")},
		{"absolute path", "/etc/config", "/etc/config"},
		{"relative path", "relative/path", "relative/path"},
		{"empty string", "", ""},
		{"just tilde", "~", "~"}, // Only ~/... is expanded
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandPath(tt.input))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config { return *CreateDefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"production", func(c *Config) { c.Server.Env = "production" }, ""},
		{"port not a number", func(c *Config) { c.Server.Port = "abc" }, "Port"},
		{"empty port", func(c *Config) { c.Server.Port = "" }, "Port"},
		{"invalid environment", func(c *Config) { c.Server.Env = "staging" }, "Env"},
		{"auto tls without domain", func(c *Config) { c.Server.AutoTLS = true }, "Domain"},
		{"auto tls with domain", func(c *Config) {
			c.Server.AutoTLS = true
			c.Server.Domain = "login.example.com"
		}, ""},
		{"missing opens path", func(c *Config) { c.Logs.OpensPath = "" }, "OpensPath"},
		{"same file for both logs", func(c *Config) { c.Logs.CredentialsPath = c.Logs.OpensPath }, "CredentialsPath"},
		{"redirect not a url", func(c *Config) { c.Capture.RedirectURL = "not a url" }, "RedirectURL"},
		{"missing redirect", func(c *Config) { c.Capture.RedirectURL = "" }, "RedirectURL"},
		{"bad ntfy url", func(c *Config) { c.Ntfy.URL = "::" }, "URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigEnvironmentMethods(t *testing.T) {
	devConfig := &Config{Server: ServerConfig{Env: "development"}}
	prodConfig := &Config{Server: ServerConfig{Env: "production"}}

	assert.True(t, devConfig.IsDevelopment())
	assert.False(t, devConfig.IsProduction())
	assert.False(t, prodConfig.IsDevelopment())
	assert.True(t, prodConfig.IsProduction())
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "4698", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "logs/email_opens.log", cfg.Logs.OpensPath)
	assert.Equal(t, "logs/credentials.log", cfg.Logs.CredentialsPath)
	assert.Equal(t, "https://example.com/login", cfg.Capture.RedirectURL)
	assert.False(t, cfg.MirrorEnabled())
	assert.False(t, cfg.NotificationsEnabled())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := CreateDefaultConfig()
	cfg.Server.Port = "8080"
	cfg.Logs.OpensPath = filepath.Join(dir, "opens.log")
	cfg.Logs.CredentialsPath = filepath.Join(dir, "creds.log")
	cfg.Capture.RedirectURL = "https://login.example.org/"
	cfg.Database.Path = filepath.Join(dir, "events.db")
	require.NoError(t, SaveToFile(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	t.Setenv("PHISHSIM_SERVER_PORT", "9090")
	t.Setenv("PHISHSIM_NTFY_TOPIC", "campaign-alerts")

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", loaded.Server.Port, "env should override file")
	assert.Equal(t, filepath.Join(dir, "opens.log"), loaded.Logs.OpensPath)
	assert.Equal(t, filepath.Join(dir, "creds.log"), loaded.Logs.CredentialsPath)
	assert.Equal(t, "https://login.example.org/", loaded.Capture.RedirectURL)
	assert.True(t, loaded.MirrorEnabled())
	assert.True(t, loaded.NotificationsEnabled())
	assert.Equal(t, "campaign-alerts", loaded.Ntfy.Topic)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("PHISHSIM_SERVER_ENV", "staging")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
