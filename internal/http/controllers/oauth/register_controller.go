package oauth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/regionproxy/internal/metrics"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/region"
	"github.com/dropDatabas3/regionproxy/internal/relay"
	"github.com/dropDatabas3/regionproxy/internal/store"
)

// RegisterController maneja POST /oauth/register (RFC 7591).
type RegisterController struct {
	relay   *relay.Relay
	clients *store.ClientMappings
	now     func() time.Time
}

func NewRegisterController(rl *relay.Relay, clients *store.ClientMappings) *RegisterController {
	return &RegisterController{relay: rl, clients: clients, now: time.Now}
}

// registration es la respuesta bufferizada de una región.
type registration struct {
	resp *http.Response
	body []byte
}

func (reg registration) ok() bool {
	return reg.resp.StatusCode >= 200 && reg.resp.StatusCode < 300
}

func (reg registration) credentials() (clientID, secret string, err error) {
	var v struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(reg.body, &v); err != nil {
		return "", "", fmt.Errorf("decode registration: %w", err)
	}
	if v.ClientID == "" {
		return "", "", errors.New("registration response without client_id")
	}
	return v.ClientID, v.ClientSecret, nil
}

// Register registra el mismo payload en ambas regiones en paralelo.
// Todo o nada: si una región falla se relaya su respuesta y no se guarda mapping.
// El caller solo ve la respuesta de US; el client_id de US es el client_id proxy.
func (c *RegisterController) Register(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.register"))

	in, err := relay.Buffer(r)
	if err != nil {
		return err
	}

	var results [2]registration
	g, gctx := errgroup.WithContext(ctx)
	for i, reg := range region.All() {
		g.Go(func() error {
			resp, err := c.relay.ProxyToRegion(gctx, in, reg, upstreamRegister)
			if err != nil {
				return err
			}
			resp, body, err := relay.BufferResponse(resp)
			if err != nil {
				return fmt.Errorf("read %s registration: %w", reg, err)
			}
			results[i] = registration{resp: resp, body: body}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return err
	}

	us, eu := results[0], results[1]
	switch {
	case !us.ok():
		metrics.RegistrationsTotal.WithLabelValues("us_failed").Inc()
		log.Info("us registration failed", logger.Status(us.resp.StatusCode))
		return writeBuffered(w, us)
	case !eu.ok():
		metrics.RegistrationsTotal.WithLabelValues("eu_failed").Inc()
		log.Info("eu registration failed", logger.Status(eu.resp.StatusCode))
		return writeBuffered(w, eu)
	}

	usID, usSecret, err := us.credentials()
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("us: %w", err)
	}
	euID, euSecret, err := eu.credentials()
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("eu: %w", err)
	}

	m := &store.ClientMapping{
		ProxyClientID:  usID,
		USClientID:     usID,
		EUClientID:     euID,
		USClientSecret: usSecret,
		EUClientSecret: euSecret,
		CreatedAt:      c.now().UTC(),
	}
	if err := c.clients.Put(ctx, m); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	log.Info("client registered in both regions", logger.ClientID(usID))
	return writeBuffered(w, us)
}

func writeBuffered(w http.ResponseWriter, reg registration) error {
	reg.resp.Body = io.NopCloser(bytes.NewReader(reg.body))
	return relay.WriteResponse(w, reg.resp)
}
