// Package redisstore is a backend.Backend on Redis. Each document is a hash
// at <prefix>:<namespace>:<id>; the ids of a namespace are kept in the set
// <prefix>:<namespace>:keys. Documents never carry a Redis TTL: an expired
// token stays stored until it is replaced or deleted.
package redisstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "pwl"

// Backend stores documents as Redis hashes.
type Backend struct {
	redis  redis.UniversalClient
	prefix string
}

// New wraps client. An empty prefix selects DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{redis: client, prefix: prefix}
}

// Ready reports whether b was built by a constructor.
func (b *Backend) Ready() bool {
	return b != nil && b.redis != nil
}

func (b *Backend) docKey(namespace, id string) string {
	return b.prefix + ":" + namespace + ":" + id
}

func (b *Backend) indexKey(namespace string) string {
	return b.prefix + ":" + namespace + ":keys"
}

func (b *Backend) Query(ctx context.Context, namespace string, filters []backend.Filter, opts ...backend.QueryOption) ([]backend.Entity, error) {
	o := backend.ApplyQueryOptions(opts...)

	ids, err := b.redis.SMembers(ctx, b.indexKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if o.KeysOnly && len(filters) == 0 {
		result := make([]backend.Entity, len(ids))
		for i, id := range ids {
			result[i] = backend.Entity{Key: models.Key{Namespace: namespace, ID: id}}
		}
		return result, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = b.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, b.docKey(namespace, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	var result []backend.Entity
	for i, cmd := range cmds {
		fields := cmd.Val()
		// index entry left behind by a concurrent delete
		if len(fields) == 0 {
			continue
		}
		doc, err := decode(fields)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", b.docKey(namespace, ids[i]), err)
		}
		ok, err := backend.Match(doc, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		e := backend.Entity{Key: models.Key{Namespace: namespace, ID: ids[i]}}
		if !o.KeysOnly {
			e.Doc = doc
		}
		result = append(result, e)
	}
	return result, nil
}

func (b *Backend) Upsert(ctx context.Context, key models.Key, doc models.Document) error {
	rec, err := models.RecordFromDocument(doc)
	if err != nil {
		return err
	}

	dk := b.docKey(key.Namespace, key.ID)
	_, err = b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, dk)
		pipe.HSet(ctx, dk,
			models.FieldUID, rec.UID,
			models.FieldHashedToken, rec.HashedToken,
			models.FieldTTL, rec.TTL.UnixMilli(),
			models.FieldOriginURL, rec.OriginURL,
		)
		pipe.SAdd(ctx, b.indexKey(key.Namespace), key.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, keys ...models.Key) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, b.docKey(k.Namespace, k.ID))
			pipe.SRem(ctx, b.indexKey(k.Namespace), k.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (b *Backend) AllocateKey(_ context.Context, namespace string) (models.Key, error) {
	return models.Key{Namespace: namespace, ID: uuid.NewString()}, nil
}

func decode(fields map[string]string) (models.Document, error) {
	doc := make(models.Document, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	if raw, ok := fields[models.FieldTTL]; ok {
		ttl, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", models.FieldTTL, err)
		}
		doc[models.FieldTTL] = ttl
	}
	return doc, nil
}
