package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"` // retention of attempt analytics records
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Attempt struct {
		Tick   string `yaml:"tick"`
		Grace  string `yaml:"grace"`
		Locale string `yaml:"locale"`
		// SaveRetries and RetryBackoff govern saving a result after expiry.
		SaveRetries  int    `yaml:"saveRetries"`
		RetryBackoff string `yaml:"retryBackoff"`
	} `yaml:"attempt"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// TickInterval returns the deadline tick, never slower than once per second.
func (c Config) TickInterval() time.Duration {
	d := TTLDuration(c.Attempt.Tick, time.Second)
	if d <= 0 || d > time.Second {
		return time.Second
	}
	return d
}
