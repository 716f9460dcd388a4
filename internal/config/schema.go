// Package config defines the configuration schema for nsbus.
//
// JSON keys use camelCase; the same keys are accepted in YAML files.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/robotweb/nsbus/internal/transport"
)

// ServerConfig locates the robot controller's HTTP server. The bus endpoint
// is always one port above it.
type ServerConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	PingPath string `json:"pingPath" yaml:"pingPath"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{Host: "192.168.43.1", Port: 8080, PingPath: "/ping"}
}

// BusConfig holds client-side bus settings.
type BusConfig struct {
	LogMessages        bool `json:"logMessages" yaml:"logMessages"`
	LogDebug           bool `json:"logDebug" yaml:"logDebug"`
	HandshakeTimeoutMs int  `json:"handshakeTimeoutMs" yaml:"handshakeTimeoutMs"`
	WriteTimeoutMs     int  `json:"writeTimeoutMs" yaml:"writeTimeoutMs"`
}

func defaultBusConfig() BusConfig {
	return BusConfig{HandshakeTimeoutMs: 5000, WriteTimeoutMs: 10000}
}

// LivenessConfig controls the periodic ping that drives reconnection.
type LivenessConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Schedule  string `json:"schedule" yaml:"schedule"`
	TimeoutMs int    `json:"timeoutMs" yaml:"timeoutMs"`
}

func defaultLivenessConfig() LivenessConfig {
	return LivenessConfig{Enabled: true, Schedule: "@every 1s", TimeoutMs: 2000}
}

// HubConfig configures the server side started by `nsbus serve`.
type HubConfig struct {
	RelayNamespaces []string `json:"relayNamespaces" yaml:"relayNamespaces"`
	BroadcastOnly   []string `json:"broadcastOnly" yaml:"broadcastOnly"`
	MetricsPath     string   `json:"metricsPath" yaml:"metricsPath"`
}

func defaultHubConfig() HubConfig {
	return HubConfig{
		RelayNamespaces: []string{"chat"},
		BroadcastOnly:   []string{"telemetry"},
		MetricsPath:     "/metrics",
	}
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.nsbus/config.json.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Bus      BusConfig      `json:"bus" yaml:"bus"`
	Liveness LivenessConfig `json:"liveness" yaml:"liveness"`
	Hub      HubConfig      `json:"hub" yaml:"hub"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Server:   defaultServerConfig(),
		Bus:      defaultBusConfig(),
		Liveness: defaultLivenessConfig(),
		Hub:      defaultHubConfig(),
	}
}

// HTTPAddr is the address of the robot controller's HTTP server.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// BusAddr is the listen address of the hub, one port above HTTPAddr.
func (c *Config) BusAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port+1))
}

// Endpoint is the websocket URL clients connect to.
func (c *Config) Endpoint() string {
	return transport.Endpoint(c.Server.Host, c.Server.Port)
}

// PingURL is the URL polled by the liveness checker.
func (c *Config) PingURL() string {
	path := c.Server.PingPath
	if path == "" {
		path = "/ping"
	}
	return "http://" + c.HTTPAddr() + path
}

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Bus.HandshakeTimeoutMs) * time.Millisecond
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Bus.WriteTimeoutMs) * time.Millisecond
}

func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.Liveness.TimeoutMs) * time.Millisecond
}
