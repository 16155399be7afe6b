package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
)

// Listener es un http.Server con nombre para logs.
type Listener struct {
	Name   string
	Server *http.Server
}

// NewListener crea un http.Server con timeouts de lectura razonables.
// No hay WriteTimeout: las llamadas upstream tienen el suyo.
func NewListener(name, addr string, h http.Handler) Listener {
	return Listener{Name: name, Server: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Run sirve todos los listeners hasta que ctx se cancele o uno falle, y luego
// hace shutdown ordenado de todos dentro de grace.
func Run(ctx context.Context, grace time.Duration, listeners ...Listener) error {
	log := logger.From(ctx).With(logger.Component("server"))
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range listeners {
		g.Go(func() error {
			ln, err := net.Listen("tcp", l.Server.Addr)
			if err != nil {
				return err
			}
			log.Info("listening", logger.String("listener", l.Name), logger.String("addr", ln.Addr().String()))
			if err := l.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		var errs []error
		for _, l := range listeners {
			if err := l.Server.Shutdown(sctx); err != nil {
				errs = append(errs, err)
			}
		}
		log.Info("listeners stopped")
		return errors.Join(errs...)
	})

	return g.Wait()
}
