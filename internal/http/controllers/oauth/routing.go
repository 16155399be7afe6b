package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/relay"
	"github.com/dropDatabas3/regionproxy/internal/store"
)

// clientRouter resuelve la región de un request por su client_id.
type clientRouter struct {
	relay      *relay.Relay
	clients    *store.ClientMappings
	selections *store.RegionSelections
}

// routeByClientID reenvía a la región seleccionada para el client_id del request,
// traduciendo credenciales si hay mapping. ok=false si no hay selección: el
// caller decide el fallback.
func (cr *clientRouter) routeByClientID(ctx context.Context, in *relay.Inbound, path string) (resp *http.Response, ok bool, err error) {
	clientID := in.ClientID()
	if clientID == "" {
		return nil, false, nil
	}
	reg, found, err := cr.selections.Get(ctx, clientID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	m, err := cr.clients.Get(ctx, clientID)
	if err != nil {
		return nil, false, err
	}
	rw := relay.ClientRewrite{}
	if m != nil {
		rw = relay.ClientRewrite{
			ProxyClientID:    m.ProxyClientID,
			RegionalClientID: m.RegionalClientID(reg),
			ProxySecret:      m.USClientSecret,
			RegionalSecret:   m.RegionalClientSecret(reg),
		}
	}

	logger.From(ctx).Debug("routing by client selection",
		logger.Layer("controller"), logger.ClientID(clientID), logger.Region(reg.String()),
		logger.Bool("mapped", m != nil))

	resp, err = cr.relay.ProxyPostWithClientID(ctx, in, reg, path, rw)
	if err != nil {
		return nil, true, fmt.Errorf("route by client id: %w", err)
	}
	return resp, true, nil
}

// proxyOrFallback: ruta determinística si hay selección, try-both si no.
func (cr *clientRouter) proxyOrFallback(ctx context.Context, w http.ResponseWriter, in *relay.Inbound, path string) error {
	resp, ok, err := cr.routeByClientID(ctx, in, path)
	if err != nil {
		return err
	}
	if ok {
		return relay.WriteResponse(w, resp)
	}
	res, err := cr.relay.TryBothRegions(ctx, in, path)
	if err != nil {
		return err
	}
	return relay.WriteResponse(w, res.Response)
}
