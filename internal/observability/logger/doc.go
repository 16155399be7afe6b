// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: una instancia global inicializada con Init() (o Replace en tests).
//   - Context Scoping: cada request tiene su logger "scoped" con request_id,
//     method y path, inyectado por middlewares.WithLogging.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx)
//	log.Info("routed by selection", logger.ClientID(id), logger.Region("eu"))
//
// Nunca loguear client_secret, authorization codes ni tokens.
package logger
