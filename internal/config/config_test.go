package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "https://us.posthog.com", c.Regions.USBaseURL)
	assert.Equal(t, "https://eu.posthog.com", c.Regions.EUBaseURL)
	assert.Equal(t, 30*time.Second, c.Regions.Timeout)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 10, c.Rate.Register.Limit)
	assert.Equal(t, time.Minute, c.Rate.Register.Window)
	assert.False(t, c.IsProd())
}

func TestLoad_YAML(t *testing.T) {
	p := writeYAML(t, `
app:
  app_env: prod
server:
  addr: ":9090"
  public_url: "https://mcp.example.com"
regions:
  us_base_url: "http://us.internal"
  timeout: 5s
cache:
  kind: redis
  redis:
    addr: "redis:6379"
    db: 2
rate:
  enabled: false
oauth:
  scopes_supported: [openid, profile]
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.True(t, c.IsProd())
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "https://mcp.example.com", c.Server.PublicURL)
	assert.Equal(t, "http://us.internal", c.Regions.USBaseURL)
	assert.Equal(t, "https://eu.posthog.com", c.Regions.EUBaseURL)
	assert.Equal(t, 5*time.Second, c.Regions.Timeout)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 2, c.Cache.Redis.DB)
	assert.False(t, c.Rate.Enabled)
	assert.Equal(t, []string{"openid", "profile"}, c.OAuth.ScopesSupported)
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeYAML(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("REGION_EU_BASE_URL", "http://eu.local:8000")
	t.Setenv("UPSTREAM_TIMEOUT", "2s")
	t.Setenv("CACHE_KIND", "REDIS")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RATE_ENABLED", "false")
	t.Setenv("OAUTH_SCOPES_SUPPORTED", "openid, email,")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel:4318")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.Server.Addr)
	assert.Equal(t, "http://eu.local:8000", c.Regions.EUBaseURL)
	assert.Equal(t, 2*time.Second, c.Regions.Timeout)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 3, c.Cache.Redis.DB)
	assert.False(t, c.Rate.Enabled)
	assert.Equal(t, []string{"openid", "email"}, c.OAuth.ScopesSupported)
	assert.Equal(t, "http://otel:4318", c.Telemetry.OTLPEndpoint)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeYAML(t, "server: [oops"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	c.Regions.USBaseURL = "ftp://us"
	c.Cache.Kind = "etcd"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regions.us_base_url")
	assert.Contains(t, err.Error(), "cache.kind")

	c = Default()
	c.Rate.Register.Limit = -1
	require.Error(t, c.Validate())
	c.Rate.Enabled = false
	require.NoError(t, c.Validate())
}

func TestValidate_ScopesSupported(t *testing.T) {
	c := Default()
	c.OAuth.ScopesSupported = []string{"openid", "experiment:read", "*"}
	require.NoError(t, c.Validate())

	c.OAuth.ScopesSupported = append(c.OAuth.ScopesSupported, `bad"scope`)
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth.scopes_supported")
}
