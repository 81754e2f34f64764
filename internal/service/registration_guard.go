package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RegistrationGuard serializa altas concurrentes del mismo email. El unique
// de la base sigue siendo la garantía final; el guard sólo evita que dos
// altas hagan el hash y choquen al insertar.
type RegistrationGuard interface {
	Acquire(ctx context.Context, email string) (release func(), err error)
}

const registrationPollInterval = 25 * time.Millisecond

func noopRelease() {}

type memoryRegistrationGuard struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemoryRegistrationGuard crea un guard en memoria para un solo proceso.
func NewMemoryRegistrationGuard() RegistrationGuard {
	return &memoryRegistrationGuard{locks: make(map[string]chan struct{})}
}

func (g *memoryRegistrationGuard) Acquire(ctx context.Context, email string) (func(), error) {
	key := strings.ToLower(strings.TrimSpace(email))
	for {
		g.mu.Lock()
		held, busy := g.locks[key]
		if !busy {
			done := make(chan struct{})
			g.locks[key] = done
			g.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					g.mu.Lock()
					delete(g.locks, key)
					g.mu.Unlock()
					close(done)
				})
			}, nil
		}
		g.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

const redisReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type redisLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisRegistrationGuard struct {
	client redisLocker
	logger *zap.Logger
	ttl    time.Duration
	prefix string
}

// NewRedisRegistrationGuard crea un guard compartido entre réplicas. Ante
// errores de redis deja pasar: el unique de la base resuelve la carrera.
func NewRedisRegistrationGuard(client *redis.Client, logger *zap.Logger, ttl time.Duration) RegistrationGuard {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisRegistrationGuard{
		client: client,
		logger: logger,
		ttl:    ttl,
		prefix: "users:register:",
	}
}

func (g *redisRegistrationGuard) Acquire(ctx context.Context, email string) (func(), error) {
	key := g.prefix + strings.ToLower(strings.TrimSpace(email))
	token := uuid.NewString()

	ticker := time.NewTicker(registrationPollInterval)
	defer ticker.Stop()
	for {
		ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Warn("registration guard unavailable", zap.Error(err))
			return noopRelease, nil
		}
		if ok {
			return func() { g.release(key, token) }, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (g *redisRegistrationGuard) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := g.client.Eval(ctx, redisReleaseScript, []string{key}, token).Err(); err != nil {
		g.logger.Warn("registration guard release failed", zap.Error(err))
	}
}
