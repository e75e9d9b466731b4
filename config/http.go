package config

import (
	"errors"
	"time"

	"github.com/kilianp07/dutysched/auth"
)

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string    `json:"addr"`
	Auth auth.Conf `json:"auth"`
	// AlertGrace is how late an assigned duty may start before it is
	// reported as delayed.
	AlertGrace time.Duration `json:"alert_grace"`
	// StreamBuffer is the per-connection event stream queue length.
	StreamBuffer    int           `json:"stream_buffer"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	// MetricsPath serves Prometheus metrics when set.
	MetricsPath string `json:"metrics_path"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	c.Auth.SetDefaults()
	if c.AlertGrace <= 0 {
		c.AlertGrace = 15 * time.Minute
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = 64
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.MetricsPath != "" && c.MetricsPath[0] != '/' {
		return errors.New("metrics_path must start with /")
	}
	return nil
}
