package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/regionproxy/internal/region"
)

type captured struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type fakeRegion struct {
	srv *httptest.Server
	mu  sync.Mutex
	got []captured

	status int
	body   string
}

func newFakeRegion(t *testing.T, status int, body string) *fakeRegion {
	t.Helper()
	f := &fakeRegion{status: status, body: body}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.got = append(f.got, captured{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Clone(), string(b)})
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Region-Test", "1")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRegion) calls() []captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]captured(nil), f.got...)
}

func newRelay(t *testing.T, us, eu *fakeRegion) *Relay {
	t.Helper()
	reg, err := region.NewRegistry(us.srv.URL, eu.srv.URL)
	require.NoError(t, err)
	return New(nil, reg)
}

func inbound(t *testing.T, method, target, contentType, body string) *Inbound {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	in, err := Buffer(r)
	require.NoError(t, err)
	return in
}

func TestDecodeBody_Kinds(t *testing.T) {
	b := DecodeBody("application/json; charset=utf-8", []byte(`{"client_id":"abc","n":1}`))
	require.Equal(t, KindJSON, b.Kind)
	require.Equal(t, "abc", b.Get("client_id"))

	b = DecodeBody("application/x-www-form-urlencoded", []byte("client_id=abc&grant_type=refresh_token"))
	require.Equal(t, KindForm, b.Kind)
	require.Equal(t, "refresh_token", b.Get("grant_type"))

	b = DecodeBody("text/plain", []byte("client_id=abc"))
	require.Equal(t, KindUnknown, b.Kind)
	require.Empty(t, b.Get("client_id"))

	b = DecodeBody("", []byte("client_id=abc"))
	require.Equal(t, KindUnknown, b.Kind)

	b = DecodeBody("application/json", []byte(`[1,2]`))
	require.Equal(t, KindUnknown, b.Kind)
}

func TestProxyToRegion_Verbatim(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{"keys":[]}`)
	eu := newFakeRegion(t, http.StatusOK, `{}`)
	rl := newRelay(t, us, eu)

	in := inbound(t, http.MethodGet, "http://proxy.local/.well-known/jwks.json?x=1", "", "")
	in.Header.Set("Authorization", "Bearer tok")
	in.Header.Set("Connection", "keep-alive")

	resp, err := rl.ProxyToRegion(context.Background(), in, region.US, "/.well-known/jwks.json")
	require.NoError(t, err)
	body, err := ReadResponse(resp)
	require.NoError(t, err)
	require.Equal(t, `{"keys":[]}`, string(body))

	calls := us.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "/.well-known/jwks.json", calls[0].Path)
	require.Equal(t, "x=1", calls[0].Query)
	require.Equal(t, "Bearer tok", calls[0].Header.Get("Authorization"))
	require.Empty(t, eu.calls())
}

func TestProxyPostWithClientID_JSON(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{}`)
	eu := newFakeRegion(t, http.StatusOK, `{}`)
	rl := newRelay(t, us, eu)

	in := inbound(t, http.MethodPost, "http://proxy.local/oauth/token", "application/json",
		`{"client_id":"us_abc","grant_type":"authorization_code","code":"c1","n":12345678901234567890}`)

	_, err := rl.ProxyPostWithClientID(context.Background(), in, region.EU, "/oauth/token/",
		ClientRewrite{ProxyClientID: "us_abc", RegionalClientID: "eu_def"})
	require.NoError(t, err)

	calls := eu.calls()
	require.Len(t, calls, 1)
	var sent map[string]any
	dec := json.NewDecoder(strings.NewReader(calls[0].Body))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&sent))
	require.Equal(t, "eu_def", sent["client_id"])
	require.Equal(t, "c1", sent["code"])
	require.Equal(t, json.Number("12345678901234567890"), sent["n"])
	require.Empty(t, us.calls())
}

func TestProxyPostWithClientID_FormOnlyExactMatch(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{}`)
	eu := newFakeRegion(t, http.StatusOK, `{}`)
	rl := newRelay(t, us, eu)

	in := inbound(t, http.MethodPost, "http://proxy.local/oauth/token", "application/x-www-form-urlencoded",
		"client_id=us_abcX&grant_type=refresh_token&refresh_token=r1")

	_, err := rl.ProxyPostWithClientID(context.Background(), in, region.EU, "/oauth/token/",
		ClientRewrite{ProxyClientID: "us_abc", RegionalClientID: "eu_def"})
	require.NoError(t, err)

	form, err := url.ParseQuery(eu.calls()[0].Body)
	require.NoError(t, err)
	require.Equal(t, "us_abcX", form.Get("client_id"))
	require.Equal(t, "r1", form.Get("refresh_token"))
}

func TestProxyPostWithClientID_SecretAndBasicAuth(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{}`)
	eu := newFakeRegion(t, http.StatusOK, `{}`)
	rl := newRelay(t, us, eu)

	in := inbound(t, http.MethodPost, "http://proxy.local/oauth/token", "application/x-www-form-urlencoded",
		"client_id=us_abc&client_secret=us_sec&grant_type=refresh_token")
	in.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("us_abc:us_sec")))

	_, err := rl.ProxyPostWithClientID(context.Background(), in, region.EU, "/oauth/token/", ClientRewrite{
		ProxyClientID: "us_abc", RegionalClientID: "eu_def",
		ProxySecret: "us_sec", RegionalSecret: "eu_sec",
	})
	require.NoError(t, err)

	got := eu.calls()[0]
	form, _ := url.ParseQuery(got.Body)
	assert.Equal(t, "eu_def", form.Get("client_id"))
	assert.Equal(t, "eu_sec", form.Get("client_secret"))

	req := &http.Request{Header: got.Header}
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "eu_def", user)
	assert.Equal(t, "eu_sec", pass)

	// el Inbound original no se modifica
	assert.Equal(t, "us_abc", in.ClientID())
}

func TestProxyPostWithClientID_UnknownKindForwardedVerbatim(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{}`)
	eu := newFakeRegion(t, http.StatusOK, `{}`)
	rl := newRelay(t, us, eu)

	in := inbound(t, http.MethodPost, "http://proxy.local/oauth/revoke", "text/plain", "client_id=us_abc")
	_, err := rl.ProxyPostWithClientID(context.Background(), in, region.EU, "/oauth/revoke/",
		ClientRewrite{ProxyClientID: "us_abc", RegionalClientID: "eu_def"})
	require.NoError(t, err)
	require.Equal(t, "client_id=us_abc", eu.calls()[0].Body)
}

func TestTryBothRegions_USSuccessSkipsEU(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{"sub":"1"}`)
	eu := newFakeRegion(t, http.StatusOK, `{}`)
	rl := newRelay(t, us, eu)

	res, err := rl.TryBothRegions(context.Background(), inbound(t, http.MethodGet, "http://proxy.local/oauth/userinfo", "", ""), "/oauth/userinfo/")
	require.NoError(t, err)
	require.Equal(t, region.US, res.Region)
	body, _ := ReadResponse(res.Response)
	require.Equal(t, `{"sub":"1"}`, string(body))
	require.Empty(t, eu.calls())
}

func TestTryBothRegions_FallsBackWithSameBody(t *testing.T) {
	us := newFakeRegion(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	eu := newFakeRegion(t, http.StatusUnauthorized, `{"error":"invalid_client"}`)
	rl := newRelay(t, us, eu)

	in := inbound(t, http.MethodPost, "http://proxy.local/oauth/token", "application/x-www-form-urlencoded",
		"grant_type=refresh_token&refresh_token=r1")
	res, err := rl.TryBothRegions(context.Background(), in, "/oauth/token/")
	require.NoError(t, err)
	require.Equal(t, region.EU, res.Region)
	require.Equal(t, http.StatusUnauthorized, res.Response.StatusCode)
	_ = res.Response.Body.Close()

	require.Equal(t, us.calls()[0].Body, eu.calls()[0].Body)
}

func TestTryBothRegions_USTransportErrorFallsBack(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{}`)
	eu := newFakeRegion(t, http.StatusOK, `{"ok":true}`)
	rl := newRelay(t, us, eu)
	us.srv.Close()

	res, err := rl.TryBothRegions(context.Background(), inbound(t, http.MethodGet, "http://proxy.local/oauth/userinfo", "", ""), "/oauth/userinfo/")
	require.NoError(t, err)
	require.Equal(t, region.EU, res.Region)
	_ = res.Response.Body.Close()
}

func TestTryBothRegionsUntil_InspectsBody(t *testing.T) {
	us := newFakeRegion(t, http.StatusOK, `{"active":false}`)
	eu := newFakeRegion(t, http.StatusOK, `{"active":true}`)
	rl := newRelay(t, us, eu)

	accept := func(status int, body []byte) bool {
		return strings.Contains(string(body), `"active":true`)
	}
	res, err := rl.TryBothRegionsUntil(context.Background(),
		inbound(t, http.MethodPost, "http://proxy.local/oauth/introspect", "application/x-www-form-urlencoded", "token=t"),
		"/oauth/introspect/", accept)
	require.NoError(t, err)
	require.Equal(t, region.EU, res.Region)
	body, _ := ReadResponse(res.Response)
	require.JSONEq(t, `{"active":true}`, string(body))
}

func TestWriteResponse_CopiesStatusHeadersBody(t *testing.T) {
	us := newFakeRegion(t, http.StatusCreated, `{"client_id":"us_abc"}`)
	eu := newFakeRegion(t, http.StatusOK, `{}`)
	rl := newRelay(t, us, eu)

	resp, err := rl.ProxyToRegion(context.Background(), inbound(t, http.MethodGet, "http://proxy.local/x", "", ""), region.US, "/x")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, WriteResponse(rec, resp))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Region-Test"))
	require.JSONEq(t, `{"client_id":"us_abc"}`, rec.Body.String())
}

func TestBuffer_TooLarge(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://proxy.local/oauth/token", strings.NewReader(strings.Repeat("a", MaxBodyBytes+1)))
	_, err := Buffer(r)
	require.Error(t, err)
}

func TestDecodeBody_Malformed(t *testing.T) {
	b := DecodeBody("application/x-www-form-urlencoded", []byte("grant_type=refresh_token&x=a;b"))
	require.Equal(t, KindUnknown, b.Kind)
	require.True(t, b.Malformed())
	require.Equal(t, "grant_type=refresh_token&x=a;b", string(b.Raw))

	b = DecodeBody("application/json", []byte(`{"client_id":`))
	require.Equal(t, KindUnknown, b.Kind)
	require.True(t, b.Malformed())

	require.False(t, DecodeBody("text/plain", []byte("x")).Malformed())
	require.False(t, DecodeBody("application/json", []byte(`{}`)).Malformed())
}

func TestWriteResponse_UpstreamHeadersReplaceExisting(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Frame-Options", "DENY")
	rec.Header().Set("Referrer-Policy", "no-referrer")

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"X-Frame-Options": {"SAMEORIGIN"},
			"Set-Cookie":      {"a=1", "b=2"},
			"Connection":      {"close"},
		},
		Body: io.NopCloser(strings.NewReader(`{}`)),
	}
	require.NoError(t, WriteResponse(rec, resp))

	assert.Equal(t, []string{"SAMEORIGIN"}, rec.Header().Values("X-Frame-Options"))
	assert.Equal(t, []string{"no-referrer"}, rec.Header().Values("Referrer-Policy"))
	assert.Equal(t, []string{"a=1", "b=2"}, rec.Header().Values("Set-Cookie"))
	assert.Empty(t, rec.Header().Values("Connection"))
}
