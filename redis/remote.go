package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/satkit/cache"
)

// Remote adapts a Client to cache.Remote. Keys are namespaced with the
// configured prefix.
type Remote struct {
	client    *Client
	keyPrefix string
}

var _ cache.Remote = (*Remote)(nil)

// NewRemote creates the remote cache tier backed by client.
func NewRemote(client *Client, keyPrefix string) *Remote {
	return &Remote{client: client, keyPrefix: keyPrefix}
}

func (r *Remote) fullKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + ":" + key
}

// Get returns the stored string. A missing key is a miss, not an error.
func (r *Remote) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := r.client.Get(ctx, r.fullKey(key))
	if err != nil {
		if IsNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("remote cache get %q: %w", key, err)
	}
	return raw, true, nil
}

// Put stores value. A ttl <= 0 never expires.
func (r *Remote) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.fullKey(key), value, ttl); err != nil {
		return fmt.Errorf("remote cache put %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *Remote) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.fullKey(key)); err != nil {
		return fmt.Errorf("remote cache delete %q: %w", key, err)
	}
	return nil
}
