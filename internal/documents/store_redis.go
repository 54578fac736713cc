package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"givingchain/internal/keyring"
	"givingchain/pkg/platform/sentinel"
)

// Redis key prefix for document state.
const docKeyPrefix = "gc:doc:"

// RedisStore persists documents in Redis. Tip compare-and-set rides on
// WATCH/MULTI: the document key is watched for the duration of the append, so
// a concurrent writer aborts the transaction and surfaces as a conflict.
// This is the recommended backend when several gateway instances share one
// document space.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// storedDoc is the wire shape kept under each document key.
type storedDoc struct {
	Tip       Tip            `json:"tip"`
	Data      map[string]any `json:"data"`
	Ownership []string       `json:"ownership"`
}

func (s *RedisStore) ResolveLatest(ctx context.Context, did string) (*Document, error) {
	raw, err := s.client.Get(ctx, docKeyPrefix+did).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("document %s: %w", did, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get %s: %v: %w", did, err, sentinel.ErrUnavailable)
	}
	return decodeStoredDoc(did, []byte(raw))
}

func (s *RedisStore) AppendTransactions(ctx context.Context, did string, expected Tip, key *keyring.Key, txns []Transaction) (*Document, error) {
	docKey := docKeyPrefix + did
	var result *Document

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var base *Document
		raw, err := tx.Get(ctx, docKey).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if expected != "" {
				return fmt.Errorf("document %s not published, expected %s: %w", did, expected, sentinel.ErrConflict)
			}
			base = NewEmpty(did, key.Address())
		case err != nil:
			return fmt.Errorf("redis get %s: %v: %w", did, err, sentinel.ErrUnavailable)
		default:
			base, err = decodeStoredDoc(did, []byte(raw))
			if err != nil {
				return err
			}
			if base.Tip != expected {
				return fmt.Errorf("document %s at %s, expected %s: %w", did, base.Tip, expected, sentinel.ErrConflict)
			}
		}

		if err := authorize(ctx, s.ResolveLatest, base, key); err != nil {
			return err
		}

		base.applyAll(txns)
		encoded, err := json.Marshal(storedDoc{Tip: base.Tip, Data: base.Data, Ownership: base.Ownership})
		if err != nil {
			return fmt.Errorf("encode document %s: %w", did, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = base.Clone()
		return nil
	}, docKey)

	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// the watched key changed under us; same outcome as a stale tip
			return nil, fmt.Errorf("document %s changed during append: %w", did, sentinel.ErrConflict)
		}
		return nil, err
	}
	return result, nil
}

func decodeStoredDoc(did string, raw []byte) (*Document, error) {
	var sd storedDoc
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, fmt.Errorf("decode document %s: %v: %w", did, err, sentinel.ErrUnavailable)
	}
	if sd.Data == nil {
		sd.Data = map[string]any{}
	}
	return &Document{DID: did, Tip: sd.Tip, Data: sd.Data, Ownership: sd.Ownership}, nil
}
