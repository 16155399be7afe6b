package oauth

import (
	_ "embed"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/region"
	"github.com/dropDatabas3/regionproxy/internal/store"
)

// regionParam es el marcador interno que agrega el picker. Nunca llega upstream.
const regionParam = "_region"

//go:embed assets/picker.html
var pickerHTML []byte

// AuthorizeController maneja GET /oauth/authorize.
//
// Sin _region válido sirve el picker; con _region guarda la selección bajo
// state y client_id y redirige al authorize de la región.
type AuthorizeController struct {
	regions    *region.Registry
	clients    *store.ClientMappings
	selections *store.RegionSelections
}

func NewAuthorizeController(regions *region.Registry, clients *store.ClientMappings, selections *store.RegionSelections) *AuthorizeController {
	return &AuthorizeController{regions: regions, clients: clients, selections: selections}
}

func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	q := r.URL.Query()

	reg, ok := region.Lookup(q.Get(regionParam))
	if !ok {
		return c.picker(w)
	}

	clientID := q.Get("client_id")
	state := q.Get("state")

	regionalID := clientID
	if clientID != "" {
		m, err := c.clients.Get(ctx, clientID)
		if err != nil {
			return err
		}
		// sin mapping se pasa tal cual: el client pudo registrarse directo en una región
		if m != nil {
			regionalID = m.RegionalClientID(reg)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.selections.Put(gctx, state, reg) })
	g.Go(func() error { return c.selections.Put(gctx, clientID, reg) })
	if err := g.Wait(); err != nil {
		return err
	}

	q.Del(regionParam)
	if clientID != "" {
		q.Set("client_id", regionalID)
	}
	target := c.regions.URL(reg, upstreamAuthorize)
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}

	logger.From(ctx).Debug("authorize redirected",
		logger.Layer("controller"), logger.Op("oauth.authorize"),
		logger.Region(reg.String()), logger.ClientID(clientID))

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}

func (c *AuthorizeController) picker(w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(pickerHTML)
	return err
}
