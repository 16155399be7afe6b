// Package router despacha requests contra una tabla de rutas ordenada e inmutable.
package router

import (
	"fmt"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/regionproxy/internal/http/errors"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
)

// DefaultBanner es la respuesta de GET / cuando ninguna ruta lo reclama.
const DefaultBanner = "regionproxy: cross-region OAuth 2.0 proxy\n"

// HandlerFunc es un handler que puede fallar. El router convierte el error en respuesta.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Route asocia uno o más paths (alias) a un handler. Method vacío acepta cualquiera.
type Route struct {
	Paths   []string
	Method  string
	Handler HandlerFunc
}

func (rt Route) matches(method, path string) bool {
	if rt.Method != "" && rt.Method != method {
		return false
	}
	for _, p := range rt.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// Builder acumula rutas hasta Build. No es seguro para uso concurrente.
type Builder struct {
	routes []Route
	banner string
}

func NewBuilder() *Builder {
	return &Builder{banner: DefaultBanner}
}

// Handle agrega una ruta al final de la tabla.
func (b *Builder) Handle(method string, h HandlerFunc, paths ...string) *Builder {
	return b.Route(Route{Paths: paths, Method: method, Handler: h})
}

func (b *Builder) Route(rt Route) *Builder {
	b.routes = append(b.routes, rt)
	return b
}

func (b *Builder) Banner(text string) *Builder {
	b.banner = text
	return b
}

// Build congela la tabla. Cambios posteriores al Builder no afectan al Router.
func (b *Builder) Build() (*Router, error) {
	routes := make([]Route, 0, len(b.routes))
	for i, rt := range b.routes {
		if rt.Handler == nil {
			return nil, fmt.Errorf("router: route %d has no handler", i)
		}
		if len(rt.Paths) == 0 {
			return nil, fmt.Errorf("router: route %d has no paths", i)
		}
		paths := make([]string, len(rt.Paths))
		for j, p := range rt.Paths {
			paths[j] = Normalize(p)
		}
		routes = append(routes, Route{Paths: paths, Method: strings.ToUpper(rt.Method), Handler: rt.Handler})
	}
	return &Router{routes: routes, banner: b.banner}, nil
}

// MustBuild es Build que hace panic ante una tabla inválida.
func (b *Builder) MustBuild() *Router {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

// Router implementa http.Handler. Gana la primera ruta que matchea.
type Router struct {
	routes []Route
	banner string
}

// Normalize quita las barras finales. La raíz queda como "/".
func Normalize(path string) string {
	p := strings.TrimRight(path, "/")
	if p == "" {
		return "/"
	}
	return p
}

func (rt *Router) lookup(method, path string) (Route, bool) {
	for _, route := range rt.routes {
		if route.matches(method, path) {
			return route, true
		}
	}
	return Route{}, false
}

// Pattern devuelve el path canónico de la ruta que atiende path (sin mirar el
// método), para usar como label de métricas.
func (rt *Router) Pattern(path string) string {
	p := Normalize(path)
	for _, route := range rt.routes {
		for _, candidate := range route.Paths {
			if candidate == p {
				return route.Paths[0]
			}
		}
	}
	if p == "/" {
		return "/"
	}
	return "unmatched"
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := Normalize(r.URL.Path)

	route, ok := rt.lookup(r.Method, path)
	if !ok {
		if path == "/" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(rt.banner))
			return
		}
		http.NotFound(w, r)
		return
	}

	if err := rt.dispatch(route.Handler, w, r); err != nil {
		oe := httperrors.FromError(err)
		log := logger.From(r.Context())
		if oe.HTTPStatus >= http.StatusInternalServerError {
			log.Error("handler failed", logger.Layer("router"), logger.Path(path), logger.Err(err))
		} else {
			log.Debug("handler rejected request", logger.Layer("router"), logger.Path(path), logger.Err(err))
		}
		httperrors.WriteError(w, oe)
	}
}

// dispatch convierte un panic del handler en error.
func (rt *Router) dispatch(h HandlerFunc, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = fmt.Errorf("router: panic: %v", rec)
		}
	}()
	return h(w, r)
}

// With envuelve h con middlewares http.Handler sin perder el error que retorna.
// El primero de mws es el más externo.
func With(h HandlerFunc, mws ...func(http.Handler) http.Handler) HandlerFunc {
	if len(mws) == 0 {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		var err error
		var next http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err = h(w, r)
		})
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		next.ServeHTTP(w, r)
		return err
	}
}
