// Package badger provides a storage.Provider on BadgerDB. Keys are laid out
// as "<namespace>/<key>" so a namespace is a key prefix.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/storage"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// DefaultConfig returns the on-disk configuration for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration with no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger routes BadgerDB's internal logging to the application logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

// Store is the badger-backed storage.Provider.
type Store struct {
	cfg Config

	mu sync.RWMutex
	db *badger.DB
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	if !s.cfg.InMemory && s.cfg.Path == "" {
		return errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if s.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.cfg.Path, 0700); err != nil {
			return fmt.Errorf("create database directory %s: %w", s.cfg.Path, err)
		}
		opts = badger.DefaultOptions(s.cfg.Path)
	}
	opts = opts.WithSyncWrites(s.cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Path() string {
	if s.cfg.InMemory {
		return ":memory:"
	}
	return s.cfg.Path
}

func (s *Store) handle() (*badger.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("storage not initialized, run 'habitcraft init' first")
	}
	return s.db, nil
}

func itemKey(namespace, key string) []byte {
	return []byte(namespace + "/" + key)
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := storage.ValidateKey(namespace, key); err != nil {
		return nil, err
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var value []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(itemKey(namespace, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := storage.ValidateKey(namespace, key); err != nil {
		return err
	}
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(itemKey(namespace, key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := storage.ValidateKey(namespace, key); err != nil {
		return err
	}
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Delete(itemKey(namespace, key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	prefix := []byte(namespace + "/")
	var keys []string
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// RunGC triggers one value-log garbage collection pass. badger.ErrNoRewrite
// means there was nothing worth collecting and is not reported.
func (s *Store) RunGC(discardRatio float64) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if s.cfg.InMemory {
		return nil
	}
	err = db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}
