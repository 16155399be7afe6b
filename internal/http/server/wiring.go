// Package server arma el proxy a partir de la configuración: KV, stores,
// relay, controllers, tabla de rutas y middlewares.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/regionproxy/internal/cache"
	"github.com/dropDatabas3/regionproxy/internal/config"
	"github.com/dropDatabas3/regionproxy/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/regionproxy/internal/http/middlewares"
	"github.com/dropDatabas3/regionproxy/internal/http/router"
	"github.com/dropDatabas3/regionproxy/internal/metrics"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/rate"
	"github.com/dropDatabas3/regionproxy/internal/region"
	"github.com/dropDatabas3/regionproxy/internal/relay"
	"github.com/dropDatabas3/regionproxy/internal/store"
)

// Deps permite inyectar dependencias (tests). Los campos nil se construyen desde la config.
type Deps struct {
	KV         cache.Client
	HTTPClient *http.Client
	Registry   *prometheus.Registry
	Limiter    rate.Limiter
}

// App es el proxy armado.
type App struct {
	Handler http.Handler
	Admin   http.Handler
	KV      cache.Client

	Clients    *store.ClientMappings
	Selections *store.RegionSelections
	Router     *router.Router
}

// Close libera el KV.
func (a *App) Close() error {
	return a.KV.Close()
}

// Build arma el App. ctx solo se usa durante la construcción.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	log := logger.From(ctx).With(logger.Component("wiring"))

	regions, err := region.NewRegistry(cfg.Regions.USBaseURL, cfg.Regions.EUBaseURL)
	if err != nil {
		return nil, err
	}

	kv := deps.KV
	if kv == nil {
		kv, err = cache.New(cache.Config{
			Driver:   cfg.Cache.Kind,
			Addr:     cfg.Cache.Redis.Addr,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("wiring: cache: %w", err)
		}
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("wiring: metrics: %w", err)
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Regions.Timeout}
	}

	clients := store.NewClientMappings(kv)
	selections := store.NewRegionSelections(kv)
	ctrl := oauth.NewControllers(oauth.Deps{
		Relay:      relay.New(httpClient, regions),
		Clients:    clients,
		Selections: selections,
		Discovery: oauth.DiscoveryConfig{
			PublicURL: cfg.Server.PublicURL,
			Scopes:    cfg.OAuth.ScopesSupported,
		},
	})

	limiter := deps.Limiter
	if limiter == nil {
		limiter = newLimiter(cfg, kv)
	}

	rt, err := Routes(ctrl, limiter)
	if err != nil {
		return nil, err
	}

	handler := mw.Chain(rt,
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(rt.Pattern),
		mw.WithSecurityHeaders(),
	)

	log.Info("proxy wired",
		logger.String("cache", cfg.Cache.Kind),
		logger.String("us", regions.BaseURL(region.US)),
		logger.String("eu", regions.BaseURL(region.EU)),
		logger.Bool("rate_limit", cfg.Rate.Enabled))

	return &App{
		Handler:    handler,
		Admin:      AdminHandler(reg, kv),
		KV:         kv,
		Clients:    clients,
		Selections: selections,
		Router:     rt,
	}, nil
}

// Routes arma la tabla de rutas pública. El orden es el de matching.
func Routes(c *oauth.Controllers, limiter rate.Limiter) (*router.Router, error) {
	const registerRoute = "/oauth/register"
	register := router.With(c.Register.Register, mw.WithRateLimit(mw.RateLimitConfig{
		Limiter: limiter,
		KeyFunc: mw.RouteRateKey(registerRoute),
	}))

	return router.NewBuilder().
		Handle(http.MethodGet, c.Discovery.Metadata, "/.well-known/oauth-authorization-server").
		Handle(http.MethodGet, c.JWKS.JWKS, "/.well-known/jwks.json").
		Handle(http.MethodPost, register, registerRoute, "/register").
		Handle(http.MethodGet, c.Authorize.Authorize, "/oauth/authorize", "/authorize").
		Handle(http.MethodPost, c.Token.Token, "/oauth/token", "/token").
		Handle(http.MethodPost, c.Revoke.Revoke, "/oauth/revoke").
		Handle(http.MethodPost, c.Introspect.Introspect, "/oauth/introspect").
		Handle(http.MethodGet, c.UserInfo.UserInfo, "/oauth/userinfo").
		Build()
}

// newLimiter: ventana fija en redis si el KV es redis, token bucket en memoria si no.
func newLimiter(cfg *config.Config, kv cache.Client) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	limit, window := cfg.Rate.Register.Limit, cfg.Rate.Register.Window
	if rc, ok := cache.RedisClient(kv); ok {
		prefix := "rl:"
		if p := strings.TrimSuffix(cfg.Cache.Redis.Prefix, ":"); p != "" {
			prefix = p + ":rl:"
		}
		return rate.NewRedisLimiter(rc, prefix, limit, window)
	}
	return rate.NewMemoryLimiter(limit, window)
}
