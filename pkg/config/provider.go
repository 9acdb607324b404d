package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/chrissnell/floodfreq/internal/ffa"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// Session storage backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server   ServerData   `json:"server" yaml:"server"`
	Gateway  GatewayData  `json:"gateway" yaml:"gateway"`
	Sessions SessionsData `json:"sessions" yaml:"sessions"`
	Analysis AnalysisData `json:"analysis" yaml:"analysis"`
}

// ServerData configures the REST server
type ServerData struct {
	ListenAddr   string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	HTTPPort     int    `json:"http_port,omitempty" yaml:"http_port,omitempty"`
	TLSCertPath  string `json:"tls_cert_path,omitempty" yaml:"tls_cert_path,omitempty"`
	TLSKeyPath   string `json:"tls_key_path,omitempty" yaml:"tls_key_path,omitempty"`
	CookieMaxAge int    `json:"cookie_max_age,omitempty" yaml:"cookie_max_age,omitempty"`
}

// GatewayData configures the statistics backend
type GatewayData struct {
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// SessionsData configures where analysis sessions are kept
type SessionsData struct {
	Backend          string        `json:"backend,omitempty" yaml:"backend,omitempty"`
	Path             string        `json:"path,omitempty" yaml:"path,omitempty"`
	ConnectionString string        `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`
	PurgeInterval    time.Duration `json:"purge_interval,omitempty" yaml:"purge_interval,omitempty"`
}

// AnalysisData holds the worker count and the options new sessions start with
type AnalysisData struct {
	Workers int         `json:"workers,omitempty" yaml:"workers,omitempty"`
	Options ffa.Options `json:"options" yaml:"options"`
}

// Defaults
const (
	DefaultListenAddr     = "0.0.0.0"
	DefaultHTTPPort       = 8080
	DefaultCookieMaxAge   = 60 * 60 * 24 * 7
	DefaultGatewayURL     = "http://localhost:8000"
	DefaultGatewayTimeout = 60 * time.Second
	DefaultSessionsPath   = "floodfreq.db"
	DefaultPurgeInterval  = time.Hour
	DefaultWorkers        = 4
)

// NewConfigData returns a configuration with every default applied
func NewConfigData() *ConfigData {
	c := &ConfigData{Analysis: AnalysisData{Options: ffa.DefaultOptions()}}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every unset field. Analysis options are not touched;
// providers start from ffa.DefaultOptions and overlay the configured values.
func (c *ConfigData) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort
	}
	if c.Server.CookieMaxAge == 0 {
		c.Server.CookieMaxAge = DefaultCookieMaxAge
	}
	if c.Gateway.URL == "" {
		c.Gateway.URL = DefaultGatewayURL
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = DefaultGatewayTimeout
	}
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = BackendSQLite
	}
	if c.Sessions.Backend == BackendSQLite && c.Sessions.Path == "" {
		c.Sessions.Path = DefaultSessionsPath
	}
	if c.Sessions.PurgeInterval == 0 {
		c.Sessions.PurgeInterval = DefaultPurgeInterval
	}
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = DefaultWorkers
	}
}

// Validate reports the first configuration problem found
func (c *ConfigData) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if (c.Server.TLSCertPath == "") != (c.Server.TLSKeyPath == "") {
		return fmt.Errorf("server.tls_cert_path and server.tls_key_path must be set together")
	}
	if c.Server.CookieMaxAge < 0 {
		return fmt.Errorf("server.cookie_max_age must not be negative")
	}

	u, err := url.Parse(c.Gateway.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gateway.url %q is not an absolute URL", c.Gateway.URL)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}

	switch c.Sessions.Backend {
	case BackendSQLite:
		if c.Sessions.Path == "" {
			return fmt.Errorf("sessions.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Sessions.ConnectionString == "" {
			return fmt.Errorf("sessions.connection_string is required for the postgres backend")
		}
	case BackendNone:
	default:
		return fmt.Errorf("unknown sessions.backend %q", c.Sessions.Backend)
	}
	if c.Sessions.PurgeInterval < 0 {
		return fmt.Errorf("sessions.purge_interval must not be negative")
	}

	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be at least 1")
	}
	if err := c.Analysis.Options.Validate(); err != nil {
		return fmt.Errorf("analysis.options: %w", err)
	}

	return nil
}
