package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
)

const (
	redisFieldData    = "data"
	redisFieldVersion = "version"
)

// RedisDocumentStoreConfig holds configuration for the Redis document store.
type RedisDocumentStoreConfig struct {
	Addr     string `env:"ADDR" default:"localhost:6379"`
	Password string `env:"PASSWORD" default:""`
	DB       int    `env:"DB" default:"0"`

	// KeyPrefix namespaces all keys written by the store
	KeyPrefix string `env:"KEY_PREFIX" default:"pantry:"`
}

// RedisDocumentStore implements Store with one hash per document and one
// sorted set per collection indexing document ids by insertion time.
type RedisDocumentStore struct {
	client *redis.Client
	log    logging.Logger
	prefix string
}

var _ Store = (*RedisDocumentStore)(nil)

// KEYS[1] document hash; ARGV[1] expected version, ARGV[2] data.
// Returns the new version, or 0 on conflict.
var compareAndSwapScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current or current ~= ARGV[1] then
	return 0
end

local next = tonumber(current) + 1
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', next)
return next
`)

// KEYS[1] document hash, KEYS[2] collection index; ARGV[1] expected version, ARGV[2] id.
// Returns 1 if deleted, 0 on conflict.
var compareAndDeleteScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current or current ~= ARGV[1] then
	return 0
end

redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`)

// RedisDocumentStoreFactory creates a factory function that returns a new RedisDocumentStore.
func RedisDocumentStoreFactory(cfg RedisDocumentStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewRedisDocumentStore(ctx, cfg)
	}
}

// NewRedisDocumentStore connects to cfg.Addr and verifies the connection.
func NewRedisDocumentStore(ctx context.Context, cfg RedisDocumentStoreConfig) (*RedisDocumentStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	store, err := NewRedisDocumentStoreWithClient(ctx, client, cfg.KeyPrefix)
	if err != nil {
		_ = client.Close()

		return nil, err
	}

	return store, nil
}

// NewRedisDocumentStoreWithClient wraps an existing client. The store takes
// ownership of the client and closes it on Close.
func NewRedisDocumentStoreWithClient(ctx context.Context, client *redis.Client, prefix string) (*RedisDocumentStore, error) {
	log := logging.GetLogger("repo.document.redis_document_store").With(
		logging.Group("redis", "addr", client.Options().Addr, "prefix", prefix),
	)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.DebugContext(ctx, "document store ready")

	return &RedisDocumentStore{
		client: client,
		log:    log,
		prefix: prefix,
	}, nil
}

func (s *RedisDocumentStore) docKey(collection string, id domain.DocumentID) string {
	return s.prefix + "doc:" + collection + ":" + id.String()
}

func (s *RedisDocumentStore) indexKey(collection string) string {
	return s.prefix + "idx:" + collection
}

// QueryByField implements Store.QueryByField by scanning the collection index.
func (s *RedisDocumentStore) QueryByField(ctx context.Context, collection, field, value string) ([]domain.Document, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))

	if _, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.docKey(collection, domain.DocumentID(id)), redisFieldData, redisFieldVersion)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	var docs []domain.Document

	for i, cmd := range cmds {
		doc, ok, err := decodeRedisDocument(domain.DocumentID(ids[i]), cmd.Val())
		if err != nil {
			return nil, err
		} else if !ok {
			// Index entry without a document; removed concurrently.
			continue
		}

		if matchesField(doc.Data, field, value) {
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

// GetByID implements Store.GetByID.
func (s *RedisDocumentStore) GetByID(ctx context.Context, collection string, id domain.DocumentID) (domain.Document, bool, error) {
	return s.get(ctx, s.client, collection, id)
}

type hashReader interface {
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
}

func (s *RedisDocumentStore) get(ctx context.Context, c hashReader, collection string, id domain.DocumentID) (domain.Document, bool, error) {
	vals, err := c.HMGet(ctx, s.docKey(collection, id), redisFieldData, redisFieldVersion).Result()
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("read document: %w", err)
	}

	return decodeRedisDocument(id, vals)
}

// Upsert implements Store.Upsert as an optimistic WATCH/MULTI transaction on the document key.
func (s *RedisDocumentStore) Upsert(
	ctx context.Context,
	collection string,
	id domain.DocumentID,
	data domain.DocumentData,
	merge bool,
) (domain.Document, error) {
	key := s.docKey(collection, id)

	var doc domain.Document

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, found, err := s.get(ctx, tx, collection, id)
		if err != nil {
			return err
		}

		doc = domain.Document{ID: id, Data: data, Version: 1}
		if found {
			doc.Version = existing.Version + 1

			if merge {
				doc.Data = existing.Data.Merge(data)
			}
		}

		raw, err := json.Marshal(doc.Data)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, redisFieldData, string(raw), redisFieldVersion, doc.Version)

			if !found {
				pipe.ZAddNX(ctx, s.indexKey(collection), redis.Z{
					Score:  float64(time.Now().UnixMicro()),
					Member: id.String(),
				})
			}

			return nil
		})

		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			err = errors.Join(domain.ErrVersionConflict, err)
		}

		return domain.Document{}, fmt.Errorf("upsert document: %w", err)
	}

	return doc, nil
}

// Delete implements Store.Delete.
func (s *RedisDocumentStore) Delete(ctx context.Context, collection string, id domain.DocumentID) error {
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(collection, id))
		pipe.ZRem(ctx, s.indexKey(collection), id.String())

		return nil
	}); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}

// CompareAndSwap implements Store.CompareAndSwap with a Lua script.
func (s *RedisDocumentStore) CompareAndSwap(
	ctx context.Context,
	collection string,
	id domain.DocumentID,
	data domain.DocumentData,
	version int64,
) (domain.Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.Document{}, fmt.Errorf("marshal document: %w", err)
	}

	next, err := compareAndSwapScript.Run(ctx, s.client,
		[]string{s.docKey(collection, id)},
		strconv.FormatInt(version, 10), string(raw),
	).Int64()
	if err != nil {
		return domain.Document{}, fmt.Errorf("compare and swap: %w", err)
	}

	if next == 0 {
		return domain.Document{}, domain.ErrVersionConflict
	}

	return domain.Document{ID: id, Data: data, Version: next}, nil
}

// CompareAndDelete implements Store.CompareAndDelete with a Lua script.
func (s *RedisDocumentStore) CompareAndDelete(ctx context.Context, collection string, id domain.DocumentID, version int64) error {
	deleted, err := compareAndDeleteScript.Run(ctx, s.client,
		[]string{s.docKey(collection, id), s.indexKey(collection)},
		strconv.FormatInt(version, 10), id.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("compare and delete: %w", err)
	}

	if deleted == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

// Close implements Store.Close.
func (s *RedisDocumentStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}

// decodeRedisDocument turns an HMGET data/version reply into a document.
// A reply without data means the document does not exist.
func decodeRedisDocument(id domain.DocumentID, vals []any) (domain.Document, bool, error) {
	if len(vals) != 2 || vals[0] == nil {
		return domain.Document{}, false, nil
	}

	raw, _ := vals[0].(string)
	versionStr, _ := vals[1].(string)

	version, err := strconv.ParseInt(versionStr, 10, 64)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("parse version of %s: %w", id, err)
	}

	doc := domain.Document{ID: id, Version: version}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return domain.Document{}, false, fmt.Errorf("unmarshal document %s: %w", id, err)
	}

	return doc, true, nil
}
