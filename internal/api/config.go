// Package api serves health, metrics and the preference management
// endpoints over HTTP.
package api

import (
	"time"

	"github.com/thyholm1234/DOF.not/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultListen          = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "64K"
	DefaultStoreTimeout    = 3 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port to bind

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	StoreTimeout    time.Duration // Bound on each preference store call

	BodyLimit      string   // Maximum request body size (e.g. "64K")
	AllowedOrigins []string // CORS allowed origins, empty disables CORS
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		StoreTimeout:    DefaultStoreTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// withDefaults fills unset fields from DefaultConfig
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Listen == "" {
		out.Listen = d.Listen
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.StoreTimeout <= 0 {
		out.StoreTimeout = d.StoreTimeout
	}
	if out.BodyLimit == "" {
		out.BodyLimit = d.BodyLimit
	}
	return &out
}
