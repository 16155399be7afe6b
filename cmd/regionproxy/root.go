package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/regionproxy/internal/cache"
	"github.com/dropDatabas3/regionproxy/internal/config"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
)

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{
		configPath: envOr("CONFIG_PATH", "configs/config.yaml"),
		envFile:    ".env",
	}

	root := &cobra.Command{
		Use:           "regionproxy",
		Short:         "Proxy OAuth 2.0 que unifica los authorization servers US y EU",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", g.configPath, "ruta a config.yaml (env CONFIG_PATH); si no existe se usan defaults + env")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", g.envFile, "ruta a .env (si existe, se carga)")

	root.AddCommand(newServeCmd(g), newMappingCmd(g), newRegionCmd(g), newConfigCmd(g))
	return root
}

// load carga .env, config y logger. Lo comparten todos los subcomandos.
func (g *globalFlags) load() (*config.Config, error) {
	if g.envFile != "" {
		err := godotenv.Load(g.envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dotenv %s: %w", g.envFile, err)
		}
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	return cfg, nil
}

// openKV abre el KV configurado para los comandos de operación.
func openKV(cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Kind != "redis" {
		logger.L().Warn("cache.kind=memory: los cambios no salen de este proceso")
	}
	return cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Username: cfg.Cache.Redis.Username,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
