// Package store persists the dataset in a key-value store using a compact
// compressed layout, with a plain JSON layout as fallback.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DropAll(ctx context.Context) error
	Close() error
}

type BadgerOptions struct {
	Path     string
	InMemory bool
	// QuotaBytes caps the total size of stored values. Zero means no cap.
	QuotaBytes int64
}

type BadgerKV struct {
	db    *badger.DB
	quota int64
}

func OpenBadger(opts BadgerOptions, logger *slog.Logger) (*BadgerKV, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := opts.Path
	if opts.InMemory {
		path = ""
	}
	bopts := badger.DefaultOptions(path).
		WithInMemory(opts.InMemory).
		WithLogger(badgerLogger{logger: logger.With("component", "badger")})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerKV{db: db, quota: opts.QuotaBytes}, nil
}

func (s *BadgerKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *BadgerKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if s.quota > 0 {
			if usedBytes(txn, key)+int64(len(value)) > s.quota {
				return ErrQuotaExceeded
			}
		}
		return txn.Set([]byte(key), value)
	})
	switch {
	case errors.Is(err, badger.ErrTxnTooBig):
		return fmt.Errorf("set %s: %w: %w", key, ErrQuotaExceeded, err)
	case err != nil:
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// usedBytes sums the stored value sizes, skipping the key about to be
// replaced.
func usedBytes(txn *badger.Txn, replacing string) int64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var total int64
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		if string(item.Key()) == replacing {
			continue
		}
		total += item.ValueSize()
	}
	return total
}

func (s *BadgerKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *BadgerKV) DropAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	return nil
}

func (s *BadgerKV) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's printf-style logs into slog. Info output is
// demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
