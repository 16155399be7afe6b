package oauth

import (
	"net/http"

	"github.com/dropDatabas3/regionproxy/internal/region"
	"github.com/dropDatabas3/regionproxy/internal/relay"
)

// JWKSController sirve /.well-known/jwks.json desde US.
// Las claves de firma son las mismas en ambas regiones; no hay fallback.
type JWKSController struct {
	relay *relay.Relay
}

func NewJWKSController(rl *relay.Relay) *JWKSController {
	return &JWKSController{relay: rl}
}

func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) error {
	in, err := relay.Buffer(r)
	if err != nil {
		return err
	}
	resp, err := c.relay.ProxyToRegion(r.Context(), in, region.US, upstreamJWKS)
	if err != nil {
		return err
	}
	return relay.WriteResponse(w, resp)
}
