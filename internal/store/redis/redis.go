package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/store"
)

// DefaultKeyPrefix namespaces snapshot keys.
const DefaultKeyPrefix = "boardsync:room:"

// Options configures the Redis snapshot store.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires snapshots; zero keeps them forever.
	TTL time.Duration
}

// RedisStore implements store.SnapshotStore on Redis strings, one key per room.
// Every process of a deployment shares it.
type RedisStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, opts.KeyPrefix, opts.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(roomID string) string {
	return s.prefix + roomID
}

// Load returns the stored snapshot for a room.
func (s *RedisStore) Load(ctx context.Context, roomID string) (board.RoomState, error) {
	data, err := s.client.Get(ctx, s.key(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return board.RoomState{}, store.ErrNotFound
		}
		return board.RoomState{}, fmt.Errorf("get snapshot: %w", err)
	}
	return store.Unmarshal(data)
}

// Save overwrites the snapshot for a room.
func (s *RedisStore) Save(ctx context.Context, roomID string, state board.RoomState) error {
	data, err := store.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(roomID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ store.SnapshotStore = (*RedisStore)(nil)
