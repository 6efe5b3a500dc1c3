package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

// Schema creates the comment document table. Applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS discussion_comments (
	id         TEXT PRIMARY KEY,
	post_id    TEXT NOT NULL,
	doc        JSONB NOT NULL,
	version    BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS discussion_comments_post_idx
	ON discussion_comments (post_id, created_at);
`

// PostgresCommentStore persists comment documents in Postgres. Transact reads
// the row version and commits with a conditional UPDATE; zero affected rows
// means another writer won and the attempt is retried.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
	tx   TxOptions
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool, tx TxOptions) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool, tx: tx.withDefaults()}
}

// EnsureSchema applies Schema.
func (s *PostgresCommentStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresCommentStore) Create(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	const op = "store.Create"
	c = c.Clone()
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	c.Version = 1

	doc, err := encodeComment(c)
	if err != nil {
		return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	const q = `INSERT INTO discussion_comments (id, post_id, doc, version, created_at)
	           VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, c.ID, c.PostID, doc, c.Version, c.CreatedAt); err != nil {
		return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	return c, nil
}

func (s *PostgresCommentStore) Get(ctx context.Context, id string) (domain.Comment, error) {
	c, err := s.get(ctx, s.pool, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, notFound("store.Get", id)
	}
	if err != nil {
		return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, "store.Get", err)
	}
	return c, nil
}

func (s *PostgresCommentStore) Put(ctx context.Context, c domain.Comment) error {
	const op = "store.Put"
	if c.ID == "" {
		return domain.E(domain.ErrInvalidInput, op, "id is required")
	}
	doc, err := encodeComment(c)
	if err != nil {
		return domain.Wrap(domain.ErrUnavailable, op, err)
	}
	const q = `INSERT INTO discussion_comments (id, post_id, doc, version, created_at)
	           VALUES ($1, $2, $3, 1, $4)
	           ON CONFLICT (id) DO UPDATE
	           SET post_id = EXCLUDED.post_id, doc = EXCLUDED.doc,
	               version = discussion_comments.version + 1`
	if _, err := s.pool.Exec(ctx, q, c.ID, c.PostID, doc, c.CreatedAt); err != nil {
		return domain.Wrap(domain.ErrUnavailable, op, err)
	}
	return nil
}

func (s *PostgresCommentStore) Transact(ctx context.Context, id string, fn MutateFunc) (domain.Comment, error) {
	const op = "store.Transact"
	return retryTx(ctx, s.tx, "postgres", func() (domain.Comment, error) {
		cur, err := s.get(ctx, s.pool, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Comment{}, notFound(op, id)
		}
		if err != nil {
			return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
		}

		work := cur.Clone()
		if err := fn(&work); err != nil {
			return domain.Comment{}, err
		}
		work.ID = cur.ID
		work.PostID = cur.PostID
		work.Version = cur.Version + 1

		doc, err := encodeComment(work)
		if err != nil {
			return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
		}
		const q = `UPDATE discussion_comments SET doc = $1, version = $2
		           WHERE id = $3 AND version = $4`
		tag, err := s.pool.Exec(ctx, q, doc, work.Version, id, cur.Version)
		if err != nil {
			return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Comment{}, errConflict
		}
		return work, nil
	})
}

func (s *PostgresCommentStore) ListByPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	const op = "store.ListByPost"
	rows, err := s.pool.Query(ctx,
		`SELECT doc, version FROM discussion_comments WHERE post_id = $1`, postID)
	if err != nil {
		return nil, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		c, err := scanDoc(rows)
		if err != nil {
			return nil, domain.Wrap(domain.ErrUnavailable, op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	return out, nil
}

func (s *PostgresCommentStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return domain.Wrap(domain.ErrUnavailable, "store.Ping", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresCommentStore) get(ctx context.Context, q querier, id string) (domain.Comment, error) {
	row := q.QueryRow(ctx, `SELECT doc, version FROM discussion_comments WHERE id = $1`, id)
	return scanDoc(row)
}

func scanDoc(row pgx.Row) (domain.Comment, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		return domain.Comment{}, err
	}
	c, err := decodeComment(doc)
	if err != nil {
		return domain.Comment{}, err
	}
	c.Version = version
	return c, nil
}
