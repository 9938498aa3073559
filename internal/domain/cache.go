package domain

import (
	"context"
	"time"
)

// URLSigner mints short-lived, pre-authorized URLs for private binary
// objects. A single call covers a whole batch of paths; paths with no
// resolvable object are simply absent from the result.
type URLSigner interface {
	SignedURLs(ctx context.Context, paths []string, validity time.Duration) (map[string]string, error)
}

// URLCache memoizes signed URLs by object path. Resolve returns live cached
// entries where available and issues at most one batched signer call for the
// remaining misses; if that call fails, the whole Resolve fails.
type URLCache interface {
	Resolve(ctx context.Context, paths []string) (map[string]string, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus is the publish/subscribe primitive behind the notification
// fan-out. Delivery is best-effort and at-most-once per publish: there is no
// persistence, no replay, and a publish with no subscribers is a no-op.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a live stream of payloads for the channel (glob
	// patterns are supported). The stream closes when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
