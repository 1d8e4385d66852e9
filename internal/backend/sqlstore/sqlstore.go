// Package sqlstore provides a SQL-backed backend.Backend. One table holds
// the documents of every namespace; document fields map onto fixed columns.
// PostgreSQL (pgx) and SQLite (modernc) share the implementation and differ
// only in placeholders and migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/google/uuid"
)

var columns = map[string]string{
	models.FieldUID:         "uid",
	models.FieldHashedToken: "hashed_token",
	models.FieldTTL:         "ttl",
	models.FieldOriginURL:   "origin_url",
}

// Backend stores documents in the tokens table.
type Backend struct {
	db      *sql.DB
	dialect dialect
}

func newBackend(db *sql.DB, d dialect) *Backend {
	return &Backend{db: db, dialect: d}
}

// Ready reports whether b was built by a constructor.
func (b *Backend) Ready() bool {
	return b != nil && b.db != nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

// where renders the WHERE clause and its arguments. The namespace is always
// the first argument.
func (b *Backend) where(namespace string, filters []backend.Filter) (string, []any, error) {
	var sb strings.Builder
	args := []any{namespace}

	sb.WriteString("WHERE namespace = ")
	sb.WriteString(b.dialect.placeholder(1))

	for _, f := range filters {
		col, ok := columns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", f.Field)
		}
		var op string
		switch f.Op {
		case backend.OpEqual:
			op = "="
		case backend.OpGreater:
			op = ">"
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, " AND %s %s %s", col, op, b.dialect.placeholder(len(args)))
	}
	return sb.String(), args, nil
}

func (b *Backend) Query(ctx context.Context, namespace string, filters []backend.Filter, opts ...backend.QueryOption) ([]backend.Entity, error) {
	o := backend.ApplyQueryOptions(opts...)

	where, args, err := b.where(namespace, filters)
	if err != nil {
		return nil, err
	}

	query := "SELECT id, uid, hashed_token, ttl, origin_url FROM tokens " + where
	if o.KeysOnly {
		query = "SELECT id FROM tokens " + where
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []backend.Entity
	for rows.Next() {
		e := backend.Entity{Key: models.Key{Namespace: namespace}}
		if o.KeysOnly {
			if err := rows.Scan(&e.Key.ID); err != nil {
				return nil, fmt.Errorf("db error: %w", err)
			}
		} else {
			var (
				uid, hashed, origin string
				ttl                 int64
			)
			if err := rows.Scan(&e.Key.ID, &uid, &hashed, &ttl, &origin); err != nil {
				return nil, fmt.Errorf("db error: %w", err)
			}
			e.Doc = models.Document{
				models.FieldUID:         uid,
				models.FieldHashedToken: hashed,
				models.FieldTTL:         ttl,
				models.FieldOriginURL:   origin,
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (b *Backend) Upsert(ctx context.Context, key models.Key, doc models.Document) error {
	rec, err := models.RecordFromDocument(doc)
	if err != nil {
		return err
	}

	p := b.dialect.placeholder
	query := fmt.Sprintf(`
		INSERT INTO tokens (namespace, id, uid, hashed_token, ttl, origin_url)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (namespace, id) DO UPDATE SET
			uid = excluded.uid,
			hashed_token = excluded.hashed_token,
			ttl = excluded.ttl,
			origin_url = excluded.origin_url
	`, p(1), p(2), p(3), p(4), p(5), p(6))

	if _, err := b.db.ExecContext(ctx, query, key.Namespace, key.ID, rec.UID, rec.HashedToken, rec.TTL.UnixMilli(), rec.OriginURL); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, keys ...models.Key) error {
	switch len(keys) {
	case 0:
		return nil
	case 1:
		return b.deleteKey(ctx, b.db, keys[0])
	}

	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range keys {
			if err := b.deleteKey(ctx, tx, k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) deleteKey(ctx context.Context, db dbx.DBTX, key models.Key) error {
	query := fmt.Sprintf("DELETE FROM tokens WHERE namespace = %s AND id = %s", b.dialect.placeholder(1), b.dialect.placeholder(2))
	if _, err := db.ExecContext(ctx, query, key.Namespace, key.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (b *Backend) AllocateKey(_ context.Context, namespace string) (models.Key, error) {
	return models.Key{Namespace: namespace, ID: uuid.NewString()}, nil
}
