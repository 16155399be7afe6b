package oauth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/regionproxy/internal/cache"
	"github.com/dropDatabas3/regionproxy/internal/http/router"
	"github.com/dropDatabas3/regionproxy/internal/region"
	"github.com/dropDatabas3/regionproxy/internal/relay"
	"github.com/dropDatabas3/regionproxy/internal/store"
)

type call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// upstream es un authorization server regional falso que registra cada llamada.
type upstream struct {
	srv *httptest.Server

	mu      sync.Mutex
	calls   []call
	respond func(w http.ResponseWriter, c call)
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{respond: func(w http.ResponseWriter, _ call) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{}`)
	}}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c := call{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Clone(), string(b)}
		u.mu.Lock()
		u.calls = append(u.calls, c)
		respond := u.respond
		u.mu.Unlock()
		respond(w, c)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

// reply fija una respuesta JSON fija.
func (u *upstream) reply(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.respond = func(w http.ResponseWriter, _ call) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (u *upstream) Calls() []call {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]call(nil), u.calls...)
}

type harness struct {
	us, eu     *upstream
	kv         cache.Client
	clients    *store.ClientMappings
	selections *store.RegionSelections
	regions    *region.Registry
	ctrl       *Controllers
	handler    http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{us: newUpstream(t), eu: newUpstream(t), kv: cache.NewMemory("")}
	t.Cleanup(func() { _ = h.kv.Close() })

	regions, err := region.NewRegistry(h.us.srv.URL, h.eu.srv.URL)
	require.NoError(t, err)
	h.regions = regions
	h.clients = store.NewClientMappings(h.kv)
	h.selections = store.NewRegionSelections(h.kv)
	h.ctrl = NewControllers(Deps{
		Relay:      relay.New(nil, regions),
		Clients:    h.clients,
		Selections: h.selections,
		Discovery:  DiscoveryConfig{Scopes: []string{"openid"}},
	})

	c := h.ctrl
	h.handler = router.NewBuilder().
		Handle(http.MethodGet, c.Discovery.Metadata, "/.well-known/oauth-authorization-server").
		Handle(http.MethodGet, c.JWKS.JWKS, "/.well-known/jwks.json").
		Handle(http.MethodPost, c.Register.Register, "/oauth/register", "/register").
		Handle(http.MethodGet, c.Authorize.Authorize, "/oauth/authorize", "/authorize").
		Handle(http.MethodPost, c.Token.Token, "/oauth/token", "/token").
		Handle(http.MethodPost, c.Revoke.Revoke, "/oauth/revoke").
		Handle(http.MethodPost, c.Introspect.Introspect, "/oauth/introspect").
		Handle(http.MethodGet, c.UserInfo.UserInfo, "/oauth/userinfo").
		MustBuild()
	return h
}

func (h *harness) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, r)
	return rec
}

func (h *harness) seedMapping(t *testing.T, m *store.ClientMapping) {
	t.Helper()
	require.NoError(t, h.clients.Put(context.Background(), m))
}

func (h *harness) seedSelection(t *testing.T, key string, r region.Region) {
	t.Helper()
	require.NoError(t, h.selections.Put(context.Background(), key, r))
}

const (
	formCT = "application/x-www-form-urlencoded"
	jsonCT = "application/json"
)

func (h *harness) doWithHeader(t *testing.T, method, target, contentType, body, key, value string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	r.Header.Set(key, value)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, r)
	return rec
}

func serveFunc(t *testing.T, h router.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, h(rec, httptest.NewRequest(method, target, nil)))
	return rec
}

// rendezvous retiene a cada participante hasta que llegan los n, o hasta
// timeout. Con llamadas secuenciales el primero nunca ve al segundo.
type rendezvous struct {
	all     chan struct{}
	timeout time.Duration

	mu      sync.Mutex
	arrived int
	n       int
}

func newRendezvous(n int, timeout time.Duration) *rendezvous {
	return &rendezvous{all: make(chan struct{}), n: n, timeout: timeout}
}

// arrive retorna false si no llegaron todos a tiempo.
func (rv *rendezvous) arrive() bool {
	rv.mu.Lock()
	rv.arrived++
	if rv.arrived == rv.n {
		close(rv.all)
	}
	rv.mu.Unlock()

	select {
	case <-rv.all:
		return true
	case <-time.After(rv.timeout):
		return false
	}
}

// replyTogether responde status/body solo cuando rv se completó; si no, 504.
func (u *upstream) replyTogether(rv *rendezvous, status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.respond = func(w http.ResponseWriter, _ call) {
		if !rv.arrive() {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// rendezvousKV bloquea cada Set en rv antes de delegar.
type rendezvousKV struct {
	cache.Client
	rv *rendezvous
}

func (k *rendezvousKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if !k.rv.arrive() {
		return errors.New("set " + key + ": writes did not overlap")
	}
	return k.Client.Set(ctx, key, value, ttl)
}
