package mirror

import (
	"context"

	"github.com/go-faster/errors"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "pos:tabs:"

// RedisStore mirrors live tabs in a Redis hash per user and fans out change
// notifications over pub/sub, giving other devices of the same account an
// eventually consistent view.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects a RedisStore using the given URL
// (redis://host:port/db).
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity, used by the readiness probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func tabsKey(userID string) string    { return keyPrefix + userID }
func channelKey(userID string) string { return keyPrefix + "changed:" + userID }

// Put stores the snapshot in the user's tab hash and notifies watchers.
func (s *RedisStore) Put(ctx context.Context, userID, tabID string, snapshot []byte) error {
	if err := s.client.HSet(ctx, tabsKey(userID), tabID, snapshot).Err(); err != nil {
		return errors.Wrap(err, "hset tab")
	}
	return s.publish(ctx, userID)
}

// Delete removes the mirrored tab and notifies watchers.
func (s *RedisStore) Delete(ctx context.Context, userID, tabID string) error {
	if err := s.client.HDel(ctx, tabsKey(userID), tabID).Err(); err != nil {
		return errors.Wrap(err, "hdel tab")
	}
	return s.publish(ctx, userID)
}

// List returns every mirrored tab snapshot for the user.
func (s *RedisStore) List(ctx context.Context, userID string) (map[string][]byte, error) {
	raw, err := s.client.HGetAll(ctx, tabsKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "hgetall tabs")
	}
	out := make(map[string][]byte, len(raw))
	for id, v := range raw {
		out[id] = []byte(v)
	}
	return out, nil
}

// Watch subscribes to the user's change channel and delivers the full tab
// set after every remote mutation. Slow consumers drop intermediate
// updates; the next delivery always carries the current full state, so
// nothing is lost beyond intermediate versions.
func (s *RedisStore) Watch(ctx context.Context, userID string) (<-chan map[string][]byte, error) {
	sub := s.client.Subscribe(ctx, channelKey(userID))
	// Force the subscription to establish before returning so callers do
	// not miss updates raced against the subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "subscribe tab changes")
	}

	out := make(chan map[string][]byte, 1)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				tabs, err := s.List(ctx, userID)
				if err != nil {
					continue
				}
				select {
				case out <- tabs:
				default:
					// Drop when the consumer lags; the next change
					// re-delivers current state.
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) publish(ctx context.Context, userID string) error {
	if err := s.client.Publish(ctx, channelKey(userID), "changed").Err(); err != nil {
		return errors.Wrap(err, "publish tab change")
	}
	return nil
}
