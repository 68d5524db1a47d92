package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/julianstephens/habitcraft/internal/storage"
)

func setupTestBadgerStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(InMemoryConfig())
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := setupTestBadgerStore(t)

	if _, err := store.Get(ctx, "owner", "habits"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("Get on empty store error = %v", err)
	}
	if err := store.Put(ctx, "owner", "habits", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "owner", "habits", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "owner", "habits")
	if err != nil || string(got) != "v2" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if err := store.Delete(ctx, "owner", "habits"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "owner", "habits"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
}

func TestKeysUseNamespacePrefix(t *testing.T) {
	ctx := context.Background()
	store := setupTestBadgerStore(t)

	_ = store.Put(ctx, "tg-1", "habits", []byte("a"))
	_ = store.Put(ctx, "tg-1", "identity", []byte("b"))
	_ = store.Put(ctx, "tg-10", "habits", []byte("c"))

	keys, err := store.Keys(ctx, "tg-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "habits" || keys[1] != "identity" {
		t.Errorf("Keys(tg-1) = %v", keys)
	}
}

func TestPersistentStoreReopens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := NewStore(DefaultConfig(dir))
	if err := first.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := first.Put(ctx, "device", "identity", []byte("x")); err != nil {
		t.Fatal(err)
	}
	_ = first.RunGC(0.5)
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := NewStore(DefaultConfig(dir))
	if err := second.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if got, err := second.Get(ctx, "device", "identity"); err != nil || string(got) != "x" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestRejectsSlashInNamespace(t *testing.T) {
	store := setupTestBadgerStore(t)
	if err := store.Put(context.Background(), "a/b", "habits", nil); err == nil {
		t.Error("expected error for namespace containing '/'")
	}
}
