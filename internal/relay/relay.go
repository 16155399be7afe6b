// Package relay reenvía requests a los authorization servers regionales.
//
// Ninguna función reintenta por su cuenta: los únicos "segundos intentos" son
// los fallbacks explícitos de TryBothRegions / TryBothRegionsUntil.
package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	httperrors "github.com/dropDatabas3/regionproxy/internal/http/errors"
	"github.com/dropDatabas3/regionproxy/internal/metrics"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/observability/tracing"
	"github.com/dropDatabas3/regionproxy/internal/region"
)

// MaxBodyBytes limita los bodies entrantes que se bufferizan.
const MaxBodyBytes = 1 << 20

// hopHeaders no se reenvían en ninguna dirección (RFC 7230 §6.1).
// Accept-Encoding se descarta para que el transport negocie y descomprima:
// algunos handlers leen el body de la respuesta.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Inbound es un request entrante con el body ya leído y decodificado una vez.
type Inbound struct {
	Method   string
	Header   http.Header
	RawQuery string
	Body     Body
}

// Buffer lee el body completo de r (hasta MaxBodyBytes) y lo decodifica.
func Buffer(r *http.Request) (*Inbound, error) {
	var raw []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("relay: read body: %w", err)
		}
		if len(b) > MaxBodyBytes {
			return nil, httperrors.ErrRequestTooLarge
		}
		raw = b
	}
	return &Inbound{
		Method:   r.Method,
		Header:   r.Header.Clone(),
		RawQuery: r.URL.RawQuery,
		Body:     DecodeBody(r.Header.Get("Content-Type"), raw),
	}, nil
}

// ClientID retorna el client_id del body o, si falta, el usuario de HTTP Basic.
func (in *Inbound) ClientID() string {
	if id := in.Body.Get("client_id"); id != "" {
		return id
	}
	if user, _, ok := basicAuth(in.Header); ok {
		return user
	}
	return ""
}

// Result es la respuesta de un intento junto con la región que la produjo.
type Result struct {
	Region   region.Region
	Response *http.Response
}

// Relay reenvía requests usando un http.Client compartido.
type Relay struct {
	client  *http.Client
	regions *region.Registry
}

// New crea un Relay. client nil usa un http.Client con timeout de 30s.
func New(client *http.Client, regions *region.Registry) *Relay {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if regions == nil {
		regions = region.DefaultRegistry()
	}
	return &Relay{client: client, regions: regions}
}

// Regions expone el registry (los controllers arman redirects con él).
func (rl *Relay) Regions() *region.Registry { return rl.regions }

// Forward es la primitiva común: un único request a una región.
// Errores de transporte se propagan sin reintentos.
func (rl *Relay) Forward(ctx context.Context, reg region.Region, method, path, rawQuery string, header http.Header, body []byte) (*http.Response, error) {
	target := rl.regions.URL(reg, path)
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	ctx, span := tracing.Tracer().Start(ctx, "relay.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrRegion, string(reg)),
			attribute.String(tracing.AttrEndpoint, path),
			attribute.String(tracing.AttrHTTPMethod, method),
		))
	defer span.End()

	var rdr io.Reader
	if len(body) > 0 {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("relay: build request: %w", err)
	}
	copyHeaders(req.Header, header)
	// Host lo decide la URL destino; Content-Length lo recalcula net/http.
	req.Header.Del("Host")
	req.Header.Del("Content-Length")
	req.Header.Del("Accept-Encoding")
	tracing.Inject(ctx, req.Header)

	start := time.Now()
	resp, err := rl.client.Do(req)
	metrics.UpstreamDuration.WithLabelValues(string(reg), path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(string(reg), path, "error").Inc()
		tracing.RecordError(span, err)
		logger.From(ctx).Warn("upstream request failed",
			logger.Layer("relay"), logger.Region(string(reg)), logger.Upstream(path), logger.Err(err))
		return nil, fmt.Errorf("relay: %s %s: %w", reg, path, err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(string(reg), path, metrics.Outcome(resp.StatusCode)).Inc()
	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatus, resp.StatusCode))
	return resp, nil
}

// ProxyToRegion reenvía el request verbatim (método, headers, body, query)
// al path indicado de la región.
func (rl *Relay) ProxyToRegion(ctx context.Context, in *Inbound, reg region.Region, path string) (*http.Response, error) {
	return rl.Forward(ctx, reg, in.Method, path, in.RawQuery, in.Header, in.Body.Raw)
}

// ClientRewrite describe la traducción de credenciales proxy → regionales.
// Los secrets solo se traducen si ambos están presentes.
type ClientRewrite struct {
	ProxyClientID    string
	RegionalClientID string
	ProxySecret      string
	RegionalSecret   string
}

func (rw ClientRewrite) substitutions() []substitution {
	var subs []substitution
	if rw.ProxyClientID != "" && rw.RegionalClientID != "" {
		subs = append(subs, substitution{field: "client_id", from: rw.ProxyClientID, to: rw.RegionalClientID})
	}
	if rw.ProxySecret != "" && rw.RegionalSecret != "" {
		subs = append(subs, substitution{field: "client_secret", from: rw.ProxySecret, to: rw.RegionalSecret})
	}
	return subs
}

// ProxyPostWithClientID reenvía el POST reescribiendo client_id (y client_secret)
// solo cuando coinciden exactamente con los valores proxy. El resto de los
// campos pasa intacto. Bodies KindUnknown se reenvían sin cambios.
func (rl *Relay) ProxyPostWithClientID(ctx context.Context, in *Inbound, reg region.Region, path string, rw ClientRewrite) (*http.Response, error) {
	body, _, err := in.Body.replace(rw.substitutions())
	if err != nil {
		return nil, fmt.Errorf("relay: rewrite body: %w", err)
	}
	header := in.Header.Clone()
	rewriteBasicAuth(header, rw)
	return rl.Forward(ctx, reg, http.MethodPost, path, in.RawQuery, header, body)
}

// AcceptFunc decide si la respuesta de US termina el try-both.
type AcceptFunc func(status int, body []byte) bool

// Accept2xx acepta cualquier status de éxito.
func Accept2xx(status int, _ []byte) bool {
	return status >= 200 && status < 300
}

// TryBothRegions envía el mismo request a US y, si US no responde 2xx, a EU.
// La respuesta de EU se retorna sea cual sea su status.
func (rl *Relay) TryBothRegions(ctx context.Context, in *Inbound, path string) (Result, error) {
	return rl.TryBothRegionsUntil(ctx, in, path, Accept2xx)
}

// TryBothRegionsUntil es TryBothRegions con un criterio de aceptación sobre
// la respuesta de US. Secuencial: EU solo se llama si US no fue aceptada.
// Un error de transporte en US cuenta como fallo; uno en EU se propaga.
func (rl *Relay) TryBothRegionsUntil(ctx context.Context, in *Inbound, path string, accept AcceptFunc) (Result, error) {
	log := logger.From(ctx).With(logger.Layer("relay"), logger.Upstream(path))

	resp, err := rl.ProxyToRegion(ctx, in, region.US, path)
	if err == nil {
		buffered, body, rerr := BufferResponse(resp)
		if rerr == nil && accept(buffered.StatusCode, body) {
			return Result{Region: region.US, Response: buffered}, nil
		}
		log.Info("us attempt not accepted, trying eu", logger.Status(resp.StatusCode))
	}

	metrics.FallbacksTotal.WithLabelValues(path).Inc()
	resp, err = rl.ProxyToRegion(ctx, in, region.EU, path)
	if err != nil {
		return Result{}, err
	}
	return Result{Region: region.EU, Response: resp}, nil
}

// WriteResponse copia status, headers y body de la respuesta regional.
func WriteResponse(w http.ResponseWriter, resp *http.Response) error {
	defer resp.Body.Close()
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("relay: copy response: %w", err)
	}
	return nil
}

// ReadResponse consume el body de resp y lo cierra.
func ReadResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
}

// BufferResponse lee el body y lo repone para poder inspeccionarlo y relayarlo.
func BufferResponse(resp *http.Response) (*http.Response, []byte, error) {
	body, err := ReadResponse(resp)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, body, err
}

// copyHeaders reemplaza en dst cada header no hop-by-hop presente en src.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if isHop(k) {
			continue
		}
		dst.Del(k)
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func isHop(k string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, k) {
			return true
		}
	}
	return false
}

// basicAuth parsea HTTP Basic (RFC 6749 §2.3.1: credenciales form-encoded).
func basicAuth(h http.Header) (user, pass string, ok bool) {
	const prefix = "Basic "
	auth := h.Get("Authorization")
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	u, p, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}
	if uu, err := url.QueryUnescape(u); err == nil {
		u = uu
	}
	if pp, err := url.QueryUnescape(p); err == nil {
		p = pp
	}
	return u, p, true
}

func rewriteBasicAuth(h http.Header, rw ClientRewrite) {
	user, pass, ok := basicAuth(h)
	if !ok {
		return
	}
	changed := false
	if rw.ProxyClientID != "" && rw.RegionalClientID != "" && user == rw.ProxyClientID {
		user, changed = rw.RegionalClientID, true
	}
	if rw.ProxySecret != "" && rw.RegionalSecret != "" && pass == rw.ProxySecret {
		pass, changed = rw.RegionalSecret, true
	}
	if !changed {
		return
	}
	cred := url.QueryEscape(user) + ":" + url.QueryEscape(pass)
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred)))
}
