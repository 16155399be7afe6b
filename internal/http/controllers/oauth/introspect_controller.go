package oauth

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/relay"
)

// IntrospectController maneja POST /oauth/introspect (RFC 7662).
type IntrospectController struct {
	relay *relay.Relay
}

func NewIntrospectController(rl *relay.Relay) *IntrospectController {
	return &IntrospectController{relay: rl}
}

// activeToken acepta la respuesta de US solo si reporta active == true.
// Un 200 con active:false no alcanza: el token puede ser de EU.
func activeToken(status int, body []byte) bool {
	if status != http.StatusOK {
		return false
	}
	var v struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return false
	}
	return v.Active
}

func (c *IntrospectController) Introspect(w http.ResponseWriter, r *http.Request) error {
	in, err := relay.Buffer(r)
	if err != nil {
		return err
	}
	res, err := c.relay.TryBothRegionsUntil(r.Context(), in, upstreamIntrospect, activeToken)
	if err != nil {
		return err
	}
	logger.From(r.Context()).Debug("introspection answered",
		logger.Layer("controller"), logger.Op("oauth.introspect"), logger.Region(res.Region.String()))
	return relay.WriteResponse(w, res.Response)
}
