package importer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another import run holds the integration's lease.
var ErrLocked = errors.New("import already running for integration")

// Locker serializes import runs per integration. Two concurrent runs for the
// same integration would both write staging files and race on the watermark.
type Locker interface {
	// Acquire takes the lease for the integration or returns ErrLocked. The
	// returned release func is safe to call exactly once.
	Acquire(ctx context.Context, integrationID string) (release func(), err error)
}

// MemoryLocker is a single-process Locker keyed by integration id.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]struct{}{}}
}

func (l *MemoryLocker) Acquire(_ context.Context, integrationID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[integrationID]; taken {
		return nil, ErrLocked
	}

	l.held[integrationID] = struct{}{}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.held, integrationID)
	}, nil
}

// RedisLocker is a distributed Locker backed by a short-lived SET NX lease,
// for deployments running more than one instance.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// releaseScript deletes the lease only when the caller still owns it, so a
// run that outlives its TTL cannot release a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, integrationID string) (func(), error) {
	key := "libsync:import:lease:" + integrationID
	owner := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrLocked
	}

	return func() {
		// Best effort: an expired lease releases itself.
		_ = releaseScript.Run(context.Background(), l.client, []string{key}, owner).Err()
	}, nil
}
