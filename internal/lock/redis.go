package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultKey = "jobscout:run-lock"
	DefaultTTL = time.Hour
)

// ErrNotHeld is returned on release when the key expired or was taken over.
var ErrNotHeld = errors.New("run lock is not held by this owner")

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Redis guards runs across processes sharing one Redis instance.
// The key holds a random owner token and expires after ttl unless the
// holder keeps extending it.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis parses the redis url and returns a locker on DefaultKey.
func NewRedis(url string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opts), DefaultKey, ttl, logger), nil
}

func NewRedisWithClient(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, key: key, ttl: ttl, logger: logger}
}

func (r *Redis) TryLock(ctx context.Context) (Release, error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go r.watch(watchCtx, token, done)

	var once sync.Once
	var releaseErr error
	return func(ctx context.Context) error {
		once.Do(func() {
			cancel()
			<-done
			releaseErr = r.release(ctx, token)
		})
		return releaseErr
	}, nil
}

// watch keeps the key alive while the run is in progress.
func (r *Redis) watch(ctx context.Context, token string, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := extendScript.Run(ctx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int64()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Warn("extending run lock", zap.Error(err))
				continue
			}
			if res == 0 {
				r.logger.Warn("run lock lost", zap.String("key", r.key))
				return
			}
		}
	}
}

func (r *Redis) release(ctx context.Context, token string) error {
	res, err := unlockScript.Run(ctx, r.client, []string{r.key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
