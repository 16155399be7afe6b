package oauth

import (
	"net/http"
	"strings"
)

// DiscoveryConfig ajusta el documento RFC 8414.
type DiscoveryConfig struct {
	// PublicURL fija el origen publicado. Vacío: se deriva del request.
	PublicURL string
	Scopes    []string
}

// metadata es el documento de /.well-known/oauth-authorization-server.
type metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
}

// DiscoveryController publica endpoints del propio proxy, nunca los regionales.
type DiscoveryController struct {
	cfg DiscoveryConfig
}

func NewDiscoveryController(cfg DiscoveryConfig) *DiscoveryController {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &DiscoveryController{cfg: cfg}
}

func (c *DiscoveryController) Metadata(w http.ResponseWriter, r *http.Request) error {
	origin := c.cfg.PublicURL
	if origin == "" {
		origin = requestOrigin(r)
	}
	doc := metadata{
		Issuer:                            origin,
		AuthorizationEndpoint:             origin + "/oauth/authorize",
		TokenEndpoint:                     origin + "/oauth/token",
		RegistrationEndpoint:              origin + "/oauth/register",
		RevocationEndpoint:                origin + "/oauth/revoke",
		IntrospectionEndpoint:             origin + "/oauth/introspect",
		UserInfoEndpoint:                  origin + "/oauth/userinfo",
		JWKSURI:                           origin + "/.well-known/jwks.json",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"none", "client_secret_post", "client_secret_basic"},
		ScopesSupported:                   c.cfg.Scopes,
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	return writeJSON(w, http.StatusOK, doc)
}

// requestOrigin arma scheme://host del request, respetando X-Forwarded-*.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := firstValue(r.Header.Get("X-Forwarded-Proto")); p != "" {
		scheme = strings.ToLower(p)
	}
	host := r.Host
	if h := firstValue(r.Header.Get("X-Forwarded-Host")); h != "" {
		host = h
	}
	return scheme + "://" + host
}

func firstValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
