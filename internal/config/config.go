package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultSessionKey = "game1"

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Session struct {
		Key                  string `yaml:"key"`
		QuestionTimerSeconds int    `yaml:"questionTimerSeconds"`
		TickInterval         string `yaml:"tickInterval"`
		DefaultQuestionSet   string `yaml:"defaultQuestionSet"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		KeyTTL   string `yaml:"keyTTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Blob struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		Bucket     string `yaml:"bucket"`
		UseSSL     bool   `yaml:"useSSL"`
		PublicURL  string `yaml:"publicURL"`
		PresignTTL string `yaml:"presignTTL"`
	} `yaml:"blob"`
	Questions struct {
		Dir      string `yaml:"dir"`
		CacheTTL string `yaml:"cacheTTL"`
	} `yaml:"questions"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Load reads YAML config from path. Unset fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Session.Key == "" {
		cfg.Session.Key = DefaultSessionKey
	}
	return cfg, nil
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Session.Key = DefaultSessionKey
	cfg.Session.QuestionTimerSeconds = 20
	cfg.Session.TickInterval = "1s"
	cfg.Redis.KeyTTL = "24h"
	cfg.Blob.Bucket = "quiz"
	cfg.Blob.PresignTTL = "24h"
	cfg.Questions.CacheTTL = "10m"
	cfg.Log.Level = "info"
	return cfg
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
