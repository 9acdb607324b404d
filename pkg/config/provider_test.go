package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLProviderLoadConfig(t *testing.T) {
	doc := `
server:
  http_port: 9090
  cookie_max_age: 3600
gateway:
  url: http://stats.internal:8000
  timeout: 90s
sessions:
  backend: postgres
  connection_string: postgres://ffa@localhost/ffa
analysis:
  workers: 8
  options:
    significance_level: 0.1
    ns_uncertainty: RFGPL
    return_periods: [10, 100]
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	provider := NewYAMLProvider(path)
	defer provider.Close()
	assert.True(t, provider.IsReadOnly())

	cfg, err := provider.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 3600, cfg.Server.CookieMaxAge)
	assert.Equal(t, "http://stats.internal:8000", cfg.Gateway.URL)
	assert.Equal(t, 90*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, BackendPostgres, cfg.Sessions.Backend)
	assert.Empty(t, cfg.Sessions.Path)
	assert.Equal(t, 8, cfg.Analysis.Workers)

	opts := cfg.Analysis.Options
	assert.Equal(t, 0.1, opts.SignificanceLevel)
	assert.Equal(t, ffa.MethodRFGPL, opts.NonStationaryUncertainty)
	assert.Equal(t, []int{10, 100}, opts.ReturnPeriods)
	// untouched options keep their defaults
	assert.Equal(t, ffa.MethodLMoments, opts.StationaryEstimation)
	assert.Equal(t, 1000, opts.BootstrapSamples)
	assert.Equal(t, []float64{6, 9}, opts.GEVPrior)
}

func TestParseYAMLDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, NewConfigData(), cfg)
	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTPPort)
	assert.Equal(t, DefaultCookieMaxAge, cfg.Server.CookieMaxAge)
	assert.Equal(t, DefaultGatewayURL, cfg.Gateway.URL)
	assert.Equal(t, BackendSQLite, cfg.Sessions.Backend)
	assert.Equal(t, DefaultSessionsPath, cfg.Sessions.Path)
	assert.Equal(t, ffa.DefaultOptions(), cfg.Analysis.Options)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errMsg string
	}{
		{"port", "server: {http_port: 70000}", "http_port"},
		{"half tls", "server: {tls_cert_path: cert.pem}", "tls_key_path"},
		{"relative gateway", "gateway: {url: localhost}", "gateway.url"},
		{"negative timeout", "gateway: {timeout: -1s}", "gateway.timeout"},
		{"backend", "sessions: {backend: valkey}", "sessions.backend"},
		{"postgres without dsn", "sessions: {backend: postgres}", "connection_string"},
		{"workers", "analysis: {workers: -2}", "workers"},
		{"options", "analysis: {options: {s_estimation: Moments}}", "s_estimation"},
		{"malformed", "server: [", "error parsing config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := ParseYAML([]byte("analysis: {options: {significance_level: 2}}"))
	assert.ErrorIs(t, err, ffa.ErrConfig)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "nope.yaml")).LoadConfig()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
