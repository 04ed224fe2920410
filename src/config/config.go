// Package config holds the transceiver's configuration record
// (spec.md §6), validated once on entry to Prepared rather than resolved
// through a property/reflection system.
package config

import (
	"strings"
	"time"

	"github.com/square-key-labs/wstransceiver/src/errs"
)

// Config mirrors spec.md §6's option set.
type Config struct {
	URI string

	SampleRate      int
	Channels        int
	FrameDurationMs int

	MaxQueueSize       int
	InitialBufferCount int

	ReconnectEnabled        bool
	InitialReconnectDelayMs int
	MaxBackoffMs            int
	MaxReconnects           int
}

// Default returns the option defaults from spec.md §6.
func Default() Config {
	return Config{
		SampleRate:              16000,
		Channels:                1,
		FrameDurationMs:         250,
		MaxQueueSize:            100,
		InitialBufferCount:      3,
		ReconnectEnabled:        true,
		InitialReconnectDelayMs: 1000,
		MaxBackoffMs:            30000,
		MaxReconnects:           10,
	}
}

// Validate enforces the ranges and requirements of spec.md §6, returning a
// *errs.ConfigError describing the first violation found.
func (c Config) Validate() error {
	if c.URI == "" {
		return &errs.ConfigError{Field: "uri", Reason: "required"}
	}
	if !strings.HasPrefix(c.URI, "ws://") && !strings.HasPrefix(c.URI, "wss://") {
		return &errs.ConfigError{Field: "uri", Reason: "must start with ws:// or wss://"}
	}
	if c.SampleRate <= 0 {
		return &errs.ConfigError{Field: "sample-rate", Reason: "must be positive"}
	}
	if c.Channels != 1 && c.Channels != 2 {
		return &errs.ConfigError{Field: "channels", Reason: "must be 1 or 2"}
	}
	if c.FrameDurationMs < 10 || c.FrameDurationMs > 1000 {
		return &errs.ConfigError{Field: "frame-duration-ms", Reason: "must be in [10,1000]"}
	}
	if c.MaxQueueSize < 1 || c.MaxQueueSize > 1000 {
		return &errs.ConfigError{Field: "max-queue-size", Reason: "must be in [1,1000]"}
	}
	if c.InitialBufferCount < 0 || c.InitialBufferCount > 100 {
		return &errs.ConfigError{Field: "initial-buffer-count", Reason: "must be in [0,100]"}
	}
	if c.InitialReconnectDelayMs < 100 || c.InitialReconnectDelayMs > 5000 {
		return &errs.ConfigError{Field: "initial-reconnect-delay-ms", Reason: "must be in [100,5000]"}
	}
	if c.MaxBackoffMs < 1000 || c.MaxBackoffMs > 60000 {
		return &errs.ConfigError{Field: "max-backoff-ms", Reason: "must be in [1000,60000]"}
	}
	if c.MaxReconnects < 0 || c.MaxReconnects > 100 {
		return &errs.ConfigError{Field: "max-reconnects", Reason: "must be in [0,100]"}
	}
	return nil
}

// FrameDuration returns the negotiated frame duration as a time.Duration.
func (c Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameDurationMs) * time.Millisecond
}
