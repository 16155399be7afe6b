package oauth

import (
	"net/http"

	"github.com/dropDatabas3/regionproxy/internal/relay"
)

// RevokeController maneja POST /oauth/revoke (RFC 7009).
type RevokeController struct {
	router *clientRouter
}

func NewRevokeController(cr *clientRouter) *RevokeController {
	return &RevokeController{router: cr}
}

// Revoke usa la selección del client_id; sin selección prueba US y luego EU.
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) error {
	in, err := relay.Buffer(r)
	if err != nil {
		return err
	}
	return c.router.proxyOrFallback(r.Context(), w, in, upstreamRevoke)
}
