// Package redis provides a Redis-backed catalog snapshot cache, shared by all
// catalog-web replicas.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/catalog-browser/internal/catalog"
	"github.com/xenking/catalog-browser/internal/domain/product"
)

// DefaultKey is the Redis key holding the encoded snapshot.
const DefaultKey = "catalog:snapshot"

var _ catalog.SnapshotCache = (*SnapshotCache)(nil)

// Config holds connection settings for the snapshot cache.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// SnapshotCache stores the catalog snapshot under a single key with a TTL.
type SnapshotCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", cfg.Addr)
	}
	return client, nil
}

// NewSnapshotCache wraps an existing client.
func NewSnapshotCache(client *redis.Client, key string, ttl time.Duration) *SnapshotCache {
	if key == "" {
		key = DefaultKey
	}
	return &SnapshotCache{client: client, key: key, ttl: ttl}
}

// Load implements catalog.SnapshotCache.
func (c *SnapshotCache) Load(ctx context.Context) (product.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return product.Snapshot{}, false, nil
	}
	if err != nil {
		return product.Snapshot{}, false, errors.Wrap(err, "redis get")
	}

	s, err := decodeSnapshot(data)
	if err != nil {
		return product.Snapshot{}, false, errors.Wrap(err, "decode snapshot")
	}
	return s, true, nil
}

// Store implements catalog.SnapshotCache.
func (c *SnapshotCache) Store(ctx context.Context, s product.Snapshot) error {
	if err := c.client.Set(ctx, c.key, encodeSnapshot(s), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Invalidate removes the cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// Health checks if Redis is reachable.
func (c *SnapshotCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func encodeSnapshot(s product.Snapshot) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("fetchedAt")
	e.Str(s.FetchedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("products")
	product.EncodeList(&e, s.Products)
	e.ObjEnd()
	return e.Bytes()
}

func decodeSnapshot(data []byte) (product.Snapshot, error) {
	var (
		s        product.Snapshot
		products bool
	)
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "fetchedAt":
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.FetchedAt, err = time.Parse(time.RFC3339Nano, v)
			return err
		case "products":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			s.Products, err = product.DecodeList(raw)
			products = true
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return product.Snapshot{}, err
	}
	if !products {
		return product.Snapshot{}, errors.New("products field missing")
	}
	return s, nil
}
