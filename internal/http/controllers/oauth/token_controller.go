package oauth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/regionproxy/internal/http/errors"
	"github.com/dropDatabas3/regionproxy/internal/metrics"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/relay"
)

// TokenController maneja POST /oauth/token.
type TokenController struct {
	router *clientRouter
}

func NewTokenController(cr *clientRouter) *TokenController {
	return &TokenController{router: cr}
}

// Token decide la región así:
//  1. client_id con selección → esa región, con client_id traducido.
//  2. authorization_code sin región → 400. Nunca se adivina con un code.
//  3. resto (refresh_token) → US y luego EU.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	in, err := relay.Buffer(r)
	if err != nil {
		return err
	}
	if in.Body.Kind == relay.KindUnknown {
		if in.Body.Malformed() {
			metrics.RoutingRejectionsTotal.WithLabelValues("malformed_body").Inc()
			return httperrors.ErrInvalidRequest.WithDescription("body could not be decoded as its content type")
		}
		metrics.RoutingRejectionsTotal.WithLabelValues("unsupported_body").Inc()
		return httperrors.ErrInvalidRequest.WithDescription("body must be application/x-www-form-urlencoded or application/json")
	}

	grantType := in.Body.Get("grant_type")
	log = log.With(logger.GrantType(grantType))

	resp, ok, err := c.router.routeByClientID(ctx, in, upstreamToken)
	if err != nil {
		return err
	}
	if ok {
		return relay.WriteResponse(w, resp)
	}

	if grantType == "authorization_code" {
		metrics.RoutingRejectionsTotal.WithLabelValues("unknown_region_for_code").Inc()
		log.Info("authorization_code without region selection, rejecting")
		return httperrors.ErrInvalidRequest.WithDescription("no region selected for this client; restart the authorization flow")
	}

	res, err := c.router.relay.TryBothRegions(ctx, in, upstreamToken)
	if err != nil {
		return err
	}
	log.Debug("token resolved by fallback", logger.Region(res.Region.String()))
	return relay.WriteResponse(w, res.Response)
}
