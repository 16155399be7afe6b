// Package store contiene los stores tipados del proxy sobre cache.Client:
// el mapping de clients registrados y las selecciones de región.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/regionproxy/internal/cache"
	"github.com/dropDatabas3/regionproxy/internal/region"
)

const clientKeyPrefix = "client:"

// ClientMapping asocia el client_id visible por el caller con los dos clients
// regionales. Por convención ProxyClientID == USClientID.
type ClientMapping struct {
	ProxyClientID  string    `json:"proxy_client_id"`
	USClientID     string    `json:"us_client_id"`
	EUClientID     string    `json:"eu_client_id"`
	USClientSecret string    `json:"us_client_secret,omitempty"`
	EUClientSecret string    `json:"eu_client_secret,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RegionalClientID retorna el client_id real en la región indicada.
func (m *ClientMapping) RegionalClientID(r region.Region) string {
	if r == region.EU {
		return m.EUClientID
	}
	return m.USClientID
}

// RegionalClientSecret retorna el secret de la región (vacío para clients públicos).
func (m *ClientMapping) RegionalClientSecret(r region.Region) string {
	if r == region.EU {
		return m.EUClientSecret
	}
	return m.USClientSecret
}

// ClientMappings persiste mappings write-once, sin TTL.
type ClientMappings struct {
	kv cache.Client
}

// NewClientMappings crea el store.
func NewClientMappings(kv cache.Client) *ClientMappings {
	return &ClientMappings{kv: kv}
}

// Get retorna el mapping o nil si no existe.
func (s *ClientMappings) Get(ctx context.Context, proxyClientID string) (*ClientMapping, error) {
	if proxyClientID == "" {
		return nil, nil
	}
	var m ClientMapping
	found, err := cache.GetJSON(ctx, s.kv, clientKeyPrefix+proxyClientID, &m)
	if err != nil {
		return nil, fmt.Errorf("store: get client mapping: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &m, nil
}

// Put guarda el mapping bajo su ProxyClientID.
func (s *ClientMappings) Put(ctx context.Context, m *ClientMapping) error {
	if m == nil || m.ProxyClientID == "" {
		return errors.New("store: client mapping without proxy client id")
	}
	if m.USClientID == "" || m.EUClientID == "" {
		return errors.New("store: client mapping requires both regional client ids")
	}
	if err := cache.SetJSON(ctx, s.kv, clientKeyPrefix+m.ProxyClientID, m, 0); err != nil {
		return fmt.Errorf("store: put client mapping: %w", err)
	}
	return nil
}
