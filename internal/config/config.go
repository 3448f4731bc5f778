package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "NEWSROOM_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	twilioSIDEnv     = "TWILIO_ACCOUNT_SID"
	twilioTokenEnv   = "TWILIO_AUTH_TOKEN"
	twilioNumberEnv  = "TWILIO_PHONE_NUMBER"
	publicURLEnv     = "PUBLIC_URL"
	defaultCallEnv   = "WHERE_TO_CALL"
	enrichmentURLEnv = "ENRICHMENT_URL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Editorial  EditorialConfig  `yaml:"editorial"`
	Twilio     TwilioConfig     `yaml:"twilio"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig describes the phone-interview HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PublicURL is the externally reachable base URL the telephony provider
	// calls back on (https://...). The media-stream URL is derived from it.
	PublicURL string `yaml:"publicUrl"`
	LogDir    string `yaml:"logDir"`
}

// EditorialConfig defines the review capability and state-machine limits.
type EditorialConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	MaxRevisionCycles int           `yaml:"maxRevisionCycles"`
	BatchInterval     time.Duration `yaml:"batchInterval"`
	BatchLimit        int           `yaml:"batchLimit"`
}

// TwilioConfig wires all data required to place and end calls.
type TwilioConfig struct {
	AccountSID  string `yaml:"accountSid"`
	AuthToken   string `yaml:"authToken"`
	FromNumber  string `yaml:"fromNumber"`
	DefaultCall string `yaml:"defaultCall"`
}

// RealtimeConfig defines how to reach the realtime speech model.
type RealtimeConfig struct {
	URL          string `yaml:"url"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	DefaultVoice string `yaml:"defaultVoice"`
}

// EnrichmentConfig describes the downstream re-enrichment webhook.
type EnrichmentConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Editorial.APIKey = v
		c.Realtime.APIKey = v
	}
	if v := os.Getenv(twilioSIDEnv); v != "" {
		c.Twilio.AccountSID = v
	}
	if v := os.Getenv(twilioTokenEnv); v != "" {
		c.Twilio.AuthToken = v
	}
	if v := os.Getenv(twilioNumberEnv); v != "" {
		c.Twilio.FromNumber = v
	}
	if v := os.Getenv(defaultCallEnv); v != "" {
		c.Twilio.DefaultCall = v
	}
	if v := os.Getenv(publicURLEnv); v != "" {
		c.Server.PublicURL = v
	}
	if v := os.Getenv(enrichmentURLEnv); v != "" {
		c.Enrichment.URL = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.PublicURL != "" {
		base.Server.PublicURL = override.Server.PublicURL
	}
	if override.Server.LogDir != "" {
		base.Server.LogDir = override.Server.LogDir
	}

	if override.Editorial.Endpoint != "" {
		base.Editorial.Endpoint = override.Editorial.Endpoint
	}
	if override.Editorial.Model != "" {
		base.Editorial.Model = override.Editorial.Model
	}
	if override.Editorial.APIKey != "" {
		base.Editorial.APIKey = override.Editorial.APIKey
	}
	if override.Editorial.MaxRevisionCycles > 0 {
		base.Editorial.MaxRevisionCycles = override.Editorial.MaxRevisionCycles
	}
	if override.Editorial.BatchInterval > 0 {
		base.Editorial.BatchInterval = override.Editorial.BatchInterval
	}
	if override.Editorial.BatchLimit > 0 {
		base.Editorial.BatchLimit = override.Editorial.BatchLimit
	}

	if override.Twilio.AccountSID != "" {
		base.Twilio.AccountSID = override.Twilio.AccountSID
	}
	if override.Twilio.AuthToken != "" {
		base.Twilio.AuthToken = override.Twilio.AuthToken
	}
	if override.Twilio.FromNumber != "" {
		base.Twilio.FromNumber = override.Twilio.FromNumber
	}
	if override.Twilio.DefaultCall != "" {
		base.Twilio.DefaultCall = override.Twilio.DefaultCall
	}

	if override.Realtime.URL != "" {
		base.Realtime.URL = override.Realtime.URL
	}
	if override.Realtime.Model != "" {
		base.Realtime.Model = override.Realtime.Model
	}
	if override.Realtime.APIKey != "" {
		base.Realtime.APIKey = override.Realtime.APIKey
	}
	if override.Realtime.DefaultVoice != "" {
		base.Realtime.DefaultVoice = override.Realtime.DefaultVoice
	}

	if override.Enrichment.URL != "" {
		base.Enrichment.URL = override.Enrichment.URL
	}
	if override.Enrichment.Timeout > 0 {
		base.Enrichment.Timeout = override.Enrichment.Timeout
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Server: ServerConfig{
			Addr:   ":8080",
			LogDir: "conversations_log",
		},
		Editorial: EditorialConfig{
			Endpoint:          "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o-mini",
			MaxRevisionCycles: 2,
			BatchInterval:     2 * time.Minute,
			BatchLimit:        10,
		},
		Realtime: RealtimeConfig{
			URL:          "wss://api.openai.com/v1/realtime",
			Model:        "gpt-4o-mini-realtime-preview-2024-12-17",
			DefaultVoice: "shimmer",
		},
		Enrichment: EnrichmentConfig{
			Timeout: 300 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
