package ports

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// CachePort stores JSON-encodable values. GetJSON returns ErrCacheMiss when
// the key is absent or expired.
type CachePort interface {
	GetJSON(ctx context.Context, key string, target any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LockerPort is a best-effort lease so scheduled ticks do not overlap across
// processes. The returned release func is safe to call once.
type LockerPort interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool, err error)
}
