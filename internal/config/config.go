package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "taskboard.yml"

// Config models taskboard.yml.
type Config struct {
	Server struct {
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`
	Security struct {
		Enabled      bool   `yaml:"enabled"`
		Password     string `yaml:"password"`
		PasswordHash string `yaml:"password_hash"`
		// SessionDuration is in hours. It is reported to the client only.
		SessionDuration int `yaml:"session_duration"`
	} `yaml:"security"`
	Database struct {
		Path             string `yaml:"path"`
		EnableSampleData bool   `yaml:"enable_sample_data"`
	} `yaml:"database"`
	App struct {
		Name     string `yaml:"name"`
		Version  string `yaml:"version"`
		Language string `yaml:"language"`
	} `yaml:"app"`
	Webhook struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"webhook"`
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// WebhookTimeout returns the outbound call timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config.server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config.database.path is required")
	}
	if c.Security.SessionDuration < 0 {
		return errors.New("config.security.session_duration must not be negative")
	}
	if c.Security.Enabled && c.Security.Password == "" && c.Security.PasswordHash == "" {
		return errors.New("config.security.password or password_hash is required when security is enabled")
	}
	if c.Webhook.TimeoutSeconds < 0 {
		return errors.New("config.webhook.timeout_seconds must not be negative")
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults unchanged.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const secretMask = "********"

// Masked returns a copy of the config with the password and its hash hidden.
func (c *Config) Masked() *Config {
	masked := *c
	if masked.Security.Password != "" {
		masked.Security.Password = secretMask
	}
	if masked.Security.PasswordHash != "" {
		masked.Security.PasswordHash = secretMask
	}
	return &masked
}

// ToYAML renders the config with secrets masked.
func (c *Config) ToYAML() (string, error) {
	out, err := yaml.Marshal(c.Masked())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

const defaultTemplate = `server:
  host: localhost
  port: 8765
  static_dir: public

security:
  enabled: true
  password: admin123
  password_hash: ""
  session_duration: 24

database:
  path: data/tasks.db
  enable_sample_data: true

app:
  name: Taskboard
  version: 1.0.0
  language: zh-CN

webhook:
  timeout_seconds: 10
`
