// Package region contiene el conocimiento estático de las dos regiones
// (US y EU) y sus base URLs.
package region

import (
	"fmt"
	"net/url"
	"strings"
)

// Region identifica un authorization server regional.
type Region string

const (
	US Region = "us"
	EU Region = "eu"
)

// Base URLs por defecto de cada región.
const (
	DefaultUSBaseURL = "https://us.posthog.com"
	DefaultEUBaseURL = "https://eu.posthog.com"
)

// All retorna las regiones en orden de preferencia (US primero).
func All() []Region { return []Region{US, EU} }

func (r Region) String() string { return string(r) }

// Parse convierte un valor arbitrario en una región.
// Política explícita: solo "eu" (case-insensitive) selecciona EU; cualquier otro
// valor, incluido el vacío, selecciona US sin señalar error.
func Parse(value string) Region {
	if strings.EqualFold(strings.TrimSpace(value), string(EU)) {
		return EU
	}
	return US
}

// Lookup acepta exactamente "us" o "eu".
func Lookup(value string) (Region, bool) {
	switch Region(value) {
	case US, EU:
		return Region(value), true
	}
	return "", false
}

// Registry resuelve la base URL de cada región.
type Registry struct {
	bases map[Region]string
}

// NewRegistry valida y normaliza las base URLs. Vacío usa el default.
func NewRegistry(usBaseURL, euBaseURL string) (*Registry, error) {
	if usBaseURL == "" {
		usBaseURL = DefaultUSBaseURL
	}
	if euBaseURL == "" {
		euBaseURL = DefaultEUBaseURL
	}
	reg := &Registry{bases: make(map[Region]string, 2)}
	for r, raw := range map[Region]string{US: usBaseURL, EU: euBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("region: invalid base url for %s: %q", r, raw)
		}
		reg.bases[r] = strings.TrimRight(raw, "/")
	}
	return reg, nil
}

// DefaultRegistry usa las base URLs de producción.
func DefaultRegistry() *Registry {
	reg, _ := NewRegistry(DefaultUSBaseURL, DefaultEUBaseURL)
	return reg
}

// BaseURL retorna la base URL (sin "/" final) de la región.
// La región se resuelve con Parse: cualquier valor que no sea "eu" cae en US.
func (g *Registry) BaseURL(r Region) string {
	return g.bases[Parse(string(r))]
}

// URL concatena la base de la región con path.
func (g *Registry) URL(r Region, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return g.BaseURL(r) + path
}
