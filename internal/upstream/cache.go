package upstream

import (
	"context"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/codec"
)

// Cache reads and writes arbitrary values in the host's page cache.
type Cache struct {
	c *Controller
}

// Save stores v under key.
func (k *Cache) Save(ctx context.Context, key string, v any) error {
	payload, err := codec.Encode(map[string]any{"key": key, "value": v})
	if err != nil {
		return err
	}
	return k.c.conn.Emit(ctx, channel.EventCacheSave, payload)
}

// Load reads key into out. A missing key (or a stored nil) reports false
// and leaves out untouched.
func (k *Cache) Load(ctx context.Context, key string, out any) (bool, error) {
	payload, err := codec.Encode(key)
	if err != nil {
		return false, err
	}
	resp, err := k.c.request(ctx, channel.EventCacheLoad, payload)
	if err != nil {
		return false, err
	}

	v, err := codec.Decode(resp)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	return true, codec.DecodeInto(resp, out)
}
