package registry

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// Cached keeps recent successful lookups in memory. Misses always go to the
// backend so a newly registered plate is visible immediately.
type Cached struct {
	backend Backend
	cache   *lru.Cache
}

func NewCached(backend Backend, size int) (*Cached, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cached{backend: backend, cache: c}, nil
}

func (c *Cached) Lookup(ctx context.Context, plate string) (*Vehicle, error) {
	if v, ok := c.cache.Get(plate); ok {
		vehicle := v.(Vehicle)
		return &vehicle, nil
	}

	vehicle, err := c.backend.Lookup(ctx, plate)
	if err != nil {
		return nil, err
	}
	c.cache.Add(plate, *vehicle)
	return vehicle, nil
}

// Upsert writes through to the backend and evicts the plate afterwards, so a
// lookup racing the write cannot leave the old row cached.
func (c *Cached) Upsert(ctx context.Context, v Vehicle) error {
	c.cache.Remove(v.Plate)
	err := c.backend.Upsert(ctx, v)
	c.cache.Remove(v.Plate)
	return err
}
