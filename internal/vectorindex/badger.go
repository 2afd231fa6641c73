package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

var vectorPrefix = []byte("vec/")

// Badger persists msgpack-encoded vectors in BadgerDB under "vec/<key>".
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the store. Dir is required unless InMemory is set.
type BadgerOptions struct {
	Dir      string
	InMemory bool
}

func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, fmt.Errorf("%w: badger dir is required for on-disk mode", apperrors.ErrInvalidInput)
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(slogAdapter{slog.Default().With("component", "badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", opts.Dir, err)
	}
	return &Badger{db: db}, nil
}

func vectorKey(key string) []byte {
	return append(append([]byte{}, vectorPrefix...), key...)
}

func (b *Badger) AddMany(_ context.Context, vectors []descriptor.Vector) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, v := range vectors {
		if v.Key == "" {
			return fmt.Errorf("%w: vector without key", apperrors.ErrInvalidInput)
		}
		data, err := msgpack.Marshal(&v)
		if err != nil {
			return fmt.Errorf("encoding vector %s: %w", v.Key, err)
		}
		if err := wb.Set(vectorKey(v.Key), data); err != nil {
			return fmt.Errorf("writing vector %s: %w", v.Key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing %d vectors: %w", len(vectors), err)
	}
	return nil
}

func (b *Badger) Get(_ context.Context, key string) (descriptor.Vector, error) {
	var v descriptor.Vector
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(vectorKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return descriptor.Vector{}, fmt.Errorf("vector %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return descriptor.Vector{}, fmt.Errorf("reading vector %s: %w", key, err)
	}
	return v, nil
}

func (b *Badger) Has(_ context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(vectorKey(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking vector %s: %w", key, err)
	}
	return true, nil
}

// Keys iterates stored keys in byte order without decoding values.
func (b *Badger) Keys(_ context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = vectorPrefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(vectorPrefix); it.ValidForPrefix(vectorPrefix); it.Next() {
				k := it.Item().Key()
				if !yield(string(k[len(vectorPrefix):]), nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield("", fmt.Errorf("iterating vector keys: %w", err))
		}
	}
}

func (b *Badger) Len(ctx context.Context) (int, error) {
	n := 0
	for _, err := range b.Keys(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Errorf(f string, v ...any)   { a.l.Error(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Warningf(f string, v ...any) { a.l.Warn(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Infof(string, ...any)        {}
func (a slogAdapter) Debugf(string, ...any)       {}
