package cache

import (
	"context"
	"time"
)

// Store holds expiring ownership markers. SetNX claims a key and
// DeleteIfValue releases it only for the owner.
type Store interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)
}
