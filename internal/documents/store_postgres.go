package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"givingchain/internal/keyring"
	"givingchain/pkg/platform/sentinel"
)

// PostgresStore persists documents in PostgreSQL, one row per DID with the
// tip held in its own column. Appends take a row lock and re-check the tip,
// so the compare-and-set is plain SQL rather than advisory locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the documents table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			did  TEXT PRIMARY KEY,
			tip  TEXT NOT NULL,
			body JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

type pgBody struct {
	Data      map[string]any `json:"data"`
	Ownership []string       `json:"ownership"`
}

func (s *PostgresStore) ResolveLatest(ctx context.Context, did string) (*Document, error) {
	var tip string
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT tip, body FROM documents WHERE did = $1`, did).Scan(&tip, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", did, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres select %s: %v: %w", did, err, sentinel.ErrUnavailable)
	}
	return decodePGDoc(did, tip, raw)
}

func (s *PostgresStore) AppendTransactions(ctx context.Context, did string, expected Tip, key *keyring.Key, txns []Transaction) (*Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres begin: %v: %w", err, sentinel.ErrUnavailable)
	}
	defer tx.Rollback(ctx)

	var base *Document
	var curTip string
	var raw []byte
	err = tx.QueryRow(ctx, `SELECT tip, body FROM documents WHERE did = $1 FOR UPDATE`, did).Scan(&curTip, &raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if expected != "" {
			return nil, fmt.Errorf("document %s not published, expected %s: %w", did, expected, sentinel.ErrConflict)
		}
		base = NewEmpty(did, key.Address())
	case err != nil:
		return nil, fmt.Errorf("postgres select %s: %v: %w", did, err, sentinel.ErrUnavailable)
	default:
		base, err = decodePGDoc(did, curTip, raw)
		if err != nil {
			return nil, err
		}
		if base.Tip != expected {
			return nil, fmt.Errorf("document %s at %s, expected %s: %w", did, base.Tip, expected, sentinel.ErrConflict)
		}
	}

	if err := authorize(ctx, s.ResolveLatest, base, key); err != nil {
		return nil, err
	}

	base.applyAll(txns)
	encoded, err := json.Marshal(pgBody{Data: base.Data, Ownership: base.Ownership})
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", did, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (did, tip, body) VALUES ($1, $2, $3)
		ON CONFLICT (did) DO UPDATE SET tip = EXCLUDED.tip, body = EXCLUDED.body
	`, did, string(base.Tip), encoded)
	if err != nil {
		return nil, fmt.Errorf("postgres upsert %s: %v: %w", did, err, sentinel.ErrUnavailable)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres commit %s: %v: %w", did, err, sentinel.ErrUnavailable)
	}
	return base.Clone(), nil
}

func decodePGDoc(did, tip string, raw []byte) (*Document, error) {
	var body pgBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode document %s: %v: %w", did, err, sentinel.ErrUnavailable)
	}
	if body.Data == nil {
		body.Data = map[string]any{}
	}
	return &Document{DID: did, Tip: Tip(tip), Data: body.Data, Ownership: body.Ownership}, nil
}
