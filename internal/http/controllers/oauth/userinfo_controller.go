package oauth

import (
	"net/http"

	"github.com/dropDatabas3/regionproxy/internal/relay"
)

// UserInfoController maneja GET /oauth/userinfo. No hay client_id que
// correlacionar: el Bearer va a US y, si falla, a EU.
type UserInfoController struct {
	relay *relay.Relay
}

func NewUserInfoController(rl *relay.Relay) *UserInfoController {
	return &UserInfoController{relay: rl}
}

func (c *UserInfoController) UserInfo(w http.ResponseWriter, r *http.Request) error {
	in, err := relay.Buffer(r)
	if err != nil {
		return err
	}
	res, err := c.relay.TryBothRegions(r.Context(), in, upstreamUserInfo)
	if err != nil {
		return err
	}
	return relay.WriteResponse(w, res.Response)
}
