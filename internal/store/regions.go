package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/regionproxy/internal/cache"
	"github.com/dropDatabas3/regionproxy/internal/region"
)

const (
	regionKeyPrefix = "region:"

	// SelectionTTL es la vida de una selección de región.
	SelectionTTL = time.Hour
)

// RegionSelections guarda qué región eligió el usuario para un state o client_id.
// Last-write-wins; las entradas expiran solas por TTL.
type RegionSelections struct {
	kv cache.Client
}

// NewRegionSelections crea el store.
func NewRegionSelections(kv cache.Client) *RegionSelections {
	return &RegionSelections{kv: kv}
}

// Get retorna la región solo si el valor guardado es exactamente "us" o "eu".
func (s *RegionSelections) Get(ctx context.Context, key string) (region.Region, bool, error) {
	if key == "" {
		return "", false, nil
	}
	v, err := s.kv.Get(ctx, regionKeyPrefix+key)
	if cache.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get region selection: %w", err)
	}
	r, ok := region.Lookup(v)
	return r, ok, nil
}

// Put liga key a r con SelectionTTL. Keys vacías se ignoran.
func (s *RegionSelections) Put(ctx context.Context, key string, r region.Region) error {
	if key == "" {
		return nil
	}
	if _, ok := region.Lookup(string(r)); !ok {
		return fmt.Errorf("store: invalid region %q", r)
	}
	if err := s.kv.Set(ctx, regionKeyPrefix+key, string(r), SelectionTTL); err != nil {
		return fmt.Errorf("store: put region selection: %w", err)
	}
	return nil
}
