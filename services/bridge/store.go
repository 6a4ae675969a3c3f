package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"boardcode-go/types"

	"github.com/redis/go-redis/v9"
)

// ErrNoCommand is returned by Store.Pop when the wait elapsed without a command.
var ErrNoCommand = errors.New("bridge: no command")

// Store is the remote side of the bridge.
type Store interface {
	// Mirror records the latest value of a Dotstar and announces the change.
	Mirror(ctx context.Context, name string, v types.DotstarValue) error
	// Pop blocks up to wait for a command addressed to one of names.
	Pop(ctx context.Context, names []string, wait time.Duration) (name, cmd string, err error)
	Close() error
}

// Dial opens the store for a config. Tests replace it.
var Dial = dialRedis

// redisStore keeps each Dotstar in a hash <prefix>:<name>, announces changes
// on the channel <prefix>, and reads commands from the list <prefix>:<name>:cmd.
type redisStore struct {
	c      *redis.Client
	prefix string
}

func dialRedis(ctx context.Context, cfg RedisConfig) (Store, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &redisStore{c: c, prefix: cfg.prefix()}, nil
}

func (r *redisStore) hashKey(name string) string { return r.prefix + ":" + name }
func (r *redisStore) cmdKey(name string) string  { return r.prefix + ":" + name + ":cmd" }

func (r *redisStore) Mirror(ctx context.Context, name string, v types.DotstarValue) error {
	pipe := r.c.TxPipeline()
	pipe.HSet(ctx, r.hashKey(name), map[string]any{
		"r":          v.R,
		"g":          v.G,
		"b":          v.B,
		"brightness": v.Brightness,
		"field":      v.Field,
		"powered":    v.Powered,
	})
	pipe.Publish(ctx, r.prefix, name)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisStore) Pop(ctx context.Context, names []string, wait time.Duration) (string, string, error) {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = r.cmdKey(n)
	}
	res, err := r.c.BRPop(ctx, wait, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrNoCommand
	}
	if err != nil {
		return "", "", err
	}
	name := strings.TrimSuffix(strings.TrimPrefix(res[0], r.prefix+":"), ":cmd")
	return name, res[1], nil
}

func (r *redisStore) Close() error { return r.c.Close() }
