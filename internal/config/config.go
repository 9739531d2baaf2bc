package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	UploadDir     string `json:"upload_dir"`
	ChatProvider  string `json:"chat_provider"`
	MinWorkers    int    `json:"min_workers"`
	MaxWorkers    int    `json:"max_workers"`
	QueueSize     int    `json:"queue_size"`
	// WorkerIdleTimeout is in minutes.
	WorkerIdleTimeout int `json:"worker_idle_timeout"`
	// TempFileTTL and TempCleanInterval are in minutes.
	TempFileTTL       int `json:"temp_file_ttl"`
	TempCleanInterval int `json:"temp_clean_interval"`
}

const (
	DefaultGeminiModel  = "gemini-2.0-flash-exp"
	defaultChatProvider = "gemini"
)

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: the only mandatory value is the Gemini API
// key, which always comes from the GEMINI_API_KEY environment variable and
// overrides whatever the file carries.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err == nil {
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", absPath, err)
		}
		cfg.applyDefaults()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		gem := cfg.Providers["gemini"]
		gem.APIKey = key
		cfg.Providers["gemini"] = gem
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		BasicConfig: BasicConfig{},
		Providers: map[string]ProviderConfig{
			"gemini": {Model: DefaultGeminiModel},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":3000"
	}
	if c.BasicConfig.UploadDir == "" {
		c.BasicConfig.UploadDir = "./uploads"
	}
	if c.BasicConfig.ChatProvider == "" {
		c.BasicConfig.ChatProvider = defaultChatProvider
	}
	if c.BasicConfig.MinWorkers <= 0 {
		c.BasicConfig.MinWorkers = 1
	}
	if c.BasicConfig.MaxWorkers < c.BasicConfig.MinWorkers {
		c.BasicConfig.MaxWorkers = 4
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = 16
	}
	if c.BasicConfig.WorkerIdleTimeout <= 0 {
		c.BasicConfig.WorkerIdleTimeout = 5
	}
	if c.BasicConfig.TempFileTTL <= 0 {
		c.BasicConfig.TempFileTTL = 60
	}
	if c.BasicConfig.TempCleanInterval <= 0 {
		c.BasicConfig.TempCleanInterval = 30
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	gem := c.Providers["gemini"]
	if gem.Model == "" {
		gem.Model = DefaultGeminiModel
	}
	c.Providers["gemini"] = gem
}

// GeminiAPIKey returns the configured Gemini credential.
func (c *Config) GeminiAPIKey() string {
	return c.Providers["gemini"].APIKey
}

// GeminiModel returns the content model used for video analysis.
func (c *Config) GeminiModel() string {
	return c.Providers["gemini"].Model
}
