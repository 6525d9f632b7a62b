// Package config provides YAML-based configuration loading for Deskline.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported birth date formats. Exactly one applies per tenant.
const (
	DateFormatSlash = "DD/MM/YYYY"
	DateFormatISO   = "YYYY-MM-DD"
)

// Config is the top-level Deskline configuration, loaded from deskline.yaml.
type Config struct {
	Tenant    TenantConfig    `yaml:"tenant"`
	Database  DatabaseConfig  `yaml:"database"`
	Transport TransportConfig `yaml:"transport"`
	Dialogue  DialogueConfig  `yaml:"dialogue"`
	Records   RecordsConfig   `yaml:"records"`
	Server    ServerConfig    `yaml:"server"`
}

// TenantConfig identifies the tenant this bot instance serves.
type TenantConfig struct {
	ID string `yaml:"id"`
}

// DatabaseConfig selects the persistence backend. Driver "sqlite" uses Path;
// driver "mysql" uses Host/Port/Name.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
}

// TransportConfig selects and configures the chat platform.
type TransportConfig struct {
	Platform string         `yaml:"platform"` // "discord", "slack", or "mock"
	Discord  DiscordConfig  `yaml:"discord"`
	Slack    SlackTransport `yaml:"slack"`
}

// DiscordConfig holds Discord gateway credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SlackTransport holds Slack Socket Mode credentials.
type SlackTransport struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DialogueConfig tunes the conversation state machine.
type DialogueConfig struct {
	Greeting             string `yaml:"greeting"`
	AttemptLimit         int    `yaml:"attempt_limit"`
	InactivityTimeoutSec int    `yaml:"inactivity_timeout_sec"`
	LockoutSec           int    `yaml:"lockout_sec"`
	DateFormat           string `yaml:"date_format"`
	PurgeCron            string `yaml:"purge_cron"`
	LogRetentionDays     int    `yaml:"log_retention_days"`
}

// RecordsConfig names the required dataset columns and the columns stripped
// from user-visible output.
type RecordsConfig struct {
	MobileColumn    string   `yaml:"mobile_column"`
	BirthDateColumn string   `yaml:"birth_date_column"`
	KeyColumn       string   `yaml:"key_column"`
	ExcludedColumns []string `yaml:"excluded_columns"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "deskline.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" && c.Tenant.ID != "" {
		c.Database.Name = "deskline_" + c.Tenant.ID
	}
	if c.Dialogue.Greeting == "" {
		c.Dialogue.Greeting = "hi agent"
	}
	if c.Dialogue.AttemptLimit == 0 {
		c.Dialogue.AttemptLimit = 3
	}
	if c.Dialogue.InactivityTimeoutSec == 0 {
		c.Dialogue.InactivityTimeoutSec = 120
	}
	if c.Dialogue.LockoutSec == 0 {
		c.Dialogue.LockoutSec = 120
	}
	if c.Dialogue.DateFormat == "" {
		c.Dialogue.DateFormat = DateFormatSlash
	}
	if c.Dialogue.PurgeCron == "" {
		c.Dialogue.PurgeCron = "0 3 * * *"
	}
	if c.Dialogue.LogRetentionDays == 0 {
		c.Dialogue.LogRetentionDays = 30
	}
	if c.Records.MobileColumn == "" {
		c.Records.MobileColumn = "MobileNumber"
	}
	if c.Records.BirthDateColumn == "" {
		c.Records.BirthDateColumn = "BirthDate"
	}
	if c.Records.KeyColumn == "" {
		c.Records.KeyColumn = "Policy #"
	}
	if c.Records.ExcludedColumns == nil {
		c.Records.ExcludedColumns = []string{"Address", "SN"}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Tenant.ID == "" {
		errs = append(errs, "tenant.id is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (use sqlite or mysql)", c.Database.Driver))
	}
	switch c.Transport.Platform {
	case "", "mock":
	case "discord":
		if c.Transport.Discord.BotToken == "" {
			errs = append(errs, "transport.discord.bot_token is required")
		}
	case "slack":
		if c.Transport.Slack.AppToken == "" {
			errs = append(errs, "transport.slack.app_token is required")
		}
		if c.Transport.Slack.BotToken == "" {
			errs = append(errs, "transport.slack.bot_token is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("transport.platform %q is not supported", c.Transport.Platform))
	}
	switch c.Dialogue.DateFormat {
	case DateFormatSlash, DateFormatISO:
	default:
		errs = append(errs, fmt.Sprintf("dialogue.date_format %q is not supported (use %s or %s)",
			c.Dialogue.DateFormat, DateFormatSlash, DateFormatISO))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
