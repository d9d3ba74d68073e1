package config

import (
	"github.com/trackdeck/realtime/internal/conn"
	"github.com/trackdeck/realtime/internal/pipeline"
	"github.com/trackdeck/realtime/internal/recovery"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig    `yaml:"server"`
	Logging    LoggingConfig   `yaml:"logging"`
	Connection conn.Config     `yaml:"connection"`
	Recovery   recovery.Config `yaml:"recovery"`
	Pipeline   pipeline.Config `yaml:"pipeline"`
}

// ServerConfig holds the health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
