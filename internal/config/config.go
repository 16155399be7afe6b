// Package config carga la configuración del proxy: YAML opcional, defaults y
// overrides por variables de entorno, en ese orden.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/regionproxy/internal/validation"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// PublicURL fija el origen del discovery. Vacío: se deriva del request.
		PublicURL string `yaml:"public_url"`
		// AdminAddr expone /metrics y /readyz. Vacío lo desactiva.
		AdminAddr       string        `yaml:"admin_addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Regions struct {
		USBaseURL string `yaml:"us_base_url"`
		EUBaseURL string `yaml:"eu_base_url"`
		// Timeout del http.Client hacia las regiones. 0 lo desactiva.
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"regions"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled  bool `yaml:"enabled"`
		Register struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"register"`
	} `yaml:"rate"`

	OAuth struct {
		ScopesSupported []string `yaml:"scopes_supported"`
	} `yaml:"oauth"`

	Telemetry struct {
		// OTLPEndpoint activa el export de trazas (OTLP/HTTP). Vacío: no-op.
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		ServiceName  string `yaml:"service_name"`
	} `yaml:"telemetry"`
}

// Load lee path (si existe), aplica defaults y env. path vacío o inexistente
// no es error: queda defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	// yaml solo pisa los campos presentes: los defaults no-cero van antes
	c.Rate.Enabled = true
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default retorna la configuración sin archivo ni env.
func Default() *Config {
	var c Config
	c.Rate.Enabled = true
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Regions.USBaseURL == "" {
		c.Regions.USBaseURL = "https://us.posthog.com"
	}
	if c.Regions.EUBaseURL == "" {
		c.Regions.EUBaseURL = "https://eu.posthog.com"
	}
	if c.Regions.Timeout == 0 {
		c.Regions.Timeout = 30 * time.Second
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "regionproxy"
	}
	if c.Rate.Register.Limit == 0 {
		c.Rate.Register.Limit = 10
	}
	if c.Rate.Register.Window == 0 {
		c.Rate.Register.Window = time.Minute
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "regionproxy"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_PUBLIC_URL"); ok {
		c.Server.PublicURL = v
	}
	if v, ok := getEnvStr("ADMIN_ADDR"); ok {
		c.Server.AdminAddr = v
	}

	// REGIONS
	if v, ok := getEnvStr("REGION_US_BASE_URL"); ok {
		c.Regions.USBaseURL = v
	}
	if v, ok := getEnvStr("REGION_EU_BASE_URL"); ok {
		c.Regions.EUBaseURL = v
	}
	if v, ok := getEnvDur("UPSTREAM_TIMEOUT"); ok {
		c.Regions.Timeout = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_REGISTER_LIMIT"); ok {
		c.Rate.Register.Limit = v
	}
	if v, ok := getEnvDur("RATE_REGISTER_WINDOW"); ok {
		c.Rate.Register.Window = v
	}

	// OAUTH
	if v, ok := getEnvCSV("OAUTH_SCOPES_SUPPORTED"); ok {
		c.OAuth.ScopesSupported = v
	}

	// TELEMETRY
	if v, ok := getEnvStr("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		c.Telemetry.OTLPEndpoint = v
	}
}

// Validate chequea los valores que harían fallar el arranque más tarde.
func (c *Config) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"regions.us_base_url": c.Regions.USBaseURL,
		"regions.eu_base_url": c.Regions.EUBaseURL,
	} {
		if err := validateBaseURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Server.PublicURL != "" {
		if err := validateBaseURL(c.Server.PublicURL); err != nil {
			errs = append(errs, fmt.Errorf("server.public_url: %w", err))
		}
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unknown %q (memory|redis)", c.Cache.Kind))
	}
	if c.Regions.Timeout < 0 {
		errs = append(errs, errors.New("regions.timeout: must be >= 0"))
	}
	if c.Rate.Enabled && (c.Rate.Register.Limit <= 0 || c.Rate.Register.Window <= 0) {
		errs = append(errs, errors.New("rate.register: limit and window must be > 0"))
	}
	if bad := validation.InvalidScopes(c.OAuth.ScopesSupported); len(bad) > 0 {
		errs = append(errs, fmt.Errorf("oauth.scopes_supported: invalid scope tokens %q", bad))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// IsProd indica si el entorno es productivo (logs JSON).
func (c *Config) IsProd() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}
