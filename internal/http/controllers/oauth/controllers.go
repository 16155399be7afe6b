// Package oauth contiene los handlers de los endpoints OAuth que el proxy expone.
//
// Ningún handler emite tokens: todos deciden a qué región ir y relayan.
package oauth

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/regionproxy/internal/relay"
	"github.com/dropDatabas3/regionproxy/internal/store"
)

// Paths en los authorization servers regionales.
const (
	upstreamAuthorize  = "/oauth/authorize/"
	upstreamRegister   = "/oauth/register/"
	upstreamToken      = "/oauth/token/"
	upstreamRevoke     = "/oauth/revoke/"
	upstreamIntrospect = "/oauth/introspect/"
	upstreamUserInfo   = "/oauth/userinfo/"
	upstreamJWKS       = "/.well-known/jwks.json"
)

// Deps agrupa lo que necesitan los controllers.
type Deps struct {
	Relay      *relay.Relay
	Clients    *store.ClientMappings
	Selections *store.RegionSelections
	Discovery  DiscoveryConfig
}

// Controllers agrupa todos los controllers del dominio oauth.
type Controllers struct {
	Discovery  *DiscoveryController
	JWKS       *JWKSController
	Register   *RegisterController
	Authorize  *AuthorizeController
	Token      *TokenController
	Revoke     *RevokeController
	Introspect *IntrospectController
	UserInfo   *UserInfoController
}

// NewControllers crea el agregador de controllers oauth.
func NewControllers(d Deps) *Controllers {
	cr := &clientRouter{relay: d.Relay, clients: d.Clients, selections: d.Selections}
	return &Controllers{
		Discovery:  NewDiscoveryController(d.Discovery),
		JWKS:       NewJWKSController(d.Relay),
		Register:   NewRegisterController(d.Relay, d.Clients),
		Authorize:  NewAuthorizeController(d.Relay.Regions(), d.Clients, d.Selections),
		Token:      NewTokenController(cr),
		Revoke:     NewRevokeController(cr),
		Introspect: NewIntrospectController(d.Relay),
		UserInfo:   NewUserInfoController(d.Relay),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
