package cache

import (
	"context"
	"time"
)

// Cache stores JSON values with a TTL. A zero TTL keeps the value until
// it is deleted.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// SnapshotKey is the key workflow snapshots are stored under.
func SnapshotKey(id string) string {
	return "workflow:" + id + ":snapshot"
}
