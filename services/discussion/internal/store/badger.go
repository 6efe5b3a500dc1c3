package store

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

// Key layout:
//
//	c/<id>                 -> JSON record
//	p/<postID>\x00<id>     -> empty, secondary index for ListByPost
var (
	commentPrefix = []byte("c/")
	postPrefix    = []byte("p/")
)

func commentKey(id string) []byte {
	return append(append([]byte{}, commentPrefix...), id...)
}

func postIndexPrefix(postID string) []byte {
	k := append(append([]byte{}, postPrefix...), postID...)
	return append(k, 0)
}

func postIndexKey(postID, id string) []byte {
	return append(postIndexPrefix(postID), id...)
}

// BadgerCommentStore keeps comments in an embedded BadgerDB. Badger's
// serializable transactions report ErrConflict on commit when another writer
// touched a key this transaction read, which drives the retry loop.
type BadgerCommentStore struct {
	db *badger.DB
	tx TxOptions
}

// NewBadgerCommentStore creates a store backed by db.
func NewBadgerCommentStore(db *badger.DB, tx TxOptions) *BadgerCommentStore {
	return &BadgerCommentStore{db: db, tx: tx.withDefaults()}
}

func (s *BadgerCommentStore) Create(_ context.Context, c domain.Comment) (domain.Comment, error) {
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

	err := s.db.Update(func(txn *badger.Txn) error {
		return s.write(txn, c)
	})
	if err != nil {
		return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	return c, nil
}

func (s *BadgerCommentStore) Get(_ context.Context, id string) (domain.Comment, error) {
	const op = "store.Get"
	var out domain.Comment
	err := s.db.View(func(txn *badger.Txn) error {
		c, err := s.read(txn, id)
		out = c
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Comment{}, notFound(op, id)
	}
	if err != nil {
		return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	return out, nil
}

func (s *BadgerCommentStore) Put(_ context.Context, c domain.Comment) error {
	const op = "store.Put"
	if c.ID == "" {
		return domain.E(domain.ErrInvalidInput, op, "id is required")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		prev, err := s.read(txn, c.ID)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			c.Version = 1
		case err != nil:
			return err
		default:
			c.Version = prev.Version + 1
			if prev.PostID != c.PostID {
				if err := txn.Delete(postIndexKey(prev.PostID, c.ID)); err != nil {
					return err
				}
			}
		}
		return s.write(txn, c)
	})
	if err != nil {
		return domain.Wrap(domain.ErrUnavailable, op, err)
	}
	return nil
}

func (s *BadgerCommentStore) Transact(ctx context.Context, id string, fn MutateFunc) (domain.Comment, error) {
	const op = "store.Transact"
	return retryTx(ctx, s.tx, "badger", func() (domain.Comment, error) {
		var out domain.Comment
		var abort error
		err := s.db.Update(func(txn *badger.Txn) error {
			cur, err := s.read(txn, id)
			if err != nil {
				return err
			}
			work := cur.Clone()
			if err := fn(&work); err != nil {
				abort = err
				return err
			}
			work.ID = cur.ID
			work.PostID = cur.PostID
			work.Version = cur.Version + 1
			out = work
			return s.writeDoc(txn, work)
		})
		switch {
		case err == nil:
			return out, nil
		case abort != nil:
			return domain.Comment{}, abort
		case errors.Is(err, badger.ErrConflict):
			return domain.Comment{}, errConflict
		case errors.Is(err, badger.ErrKeyNotFound):
			return domain.Comment{}, notFound(op, id)
		default:
			return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
		}
	})
}

func (s *BadgerCommentStore) ListByPost(_ context.Context, postID string) ([]domain.Comment, error) {
	const op = "store.ListByPost"
	var out []domain.Comment
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := postIndexPrefix(postID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix))
			c, err := s.read(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	return out, nil
}

func (s *BadgerCommentStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return domain.E(domain.ErrUnavailable, "store.Ping", "badger is closed")
	}
	return nil
}

func (s *BadgerCommentStore) read(txn *badger.Txn, id string) (domain.Comment, error) {
	item, err := txn.Get(commentKey(id))
	if err != nil {
		return domain.Comment{}, err
	}
	var c domain.Comment
	err = item.Value(func(val []byte) error {
		decoded, err := decodeComment(val)
		c = decoded
		return err
	})
	return c, err
}

func (s *BadgerCommentStore) write(txn *badger.Txn, c domain.Comment) error {
	if err := s.writeDoc(txn, c); err != nil {
		return err
	}
	return txn.Set(postIndexKey(c.PostID, c.ID), nil)
}

func (s *BadgerCommentStore) writeDoc(txn *badger.Txn, c domain.Comment) error {
	b, err := encodeComment(c)
	if err != nil {
		return err
	}
	return txn.Set(commentKey(c.ID), b)
}
