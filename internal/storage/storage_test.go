package storage

import (
	"context"
	"errors"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		ns, key string
		wantErr bool
	}{
		{"local-abc", "habits", false},
		{"", "habits", true},
		{"owner", "", true},
		{"a/b", "habits", true},
	}
	for _, tt := range tests {
		if err := ValidateKey(tt.ns, tt.key); (err != nil) != tt.wantErr {
			t.Errorf("ValidateKey(%q, %q) error = %v, wantErr %v", tt.ns, tt.key, err, tt.wantErr)
		}
	}
}

func TestMemoryStoreNamespaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.Put(ctx, "alice", "habits", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := m.Put(ctx, "bob", "habits", []byte("b")); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get(ctx, "alice", "habits")
	if err != nil || string(got) != "a" {
		t.Errorf("Get(alice) = %q, %v", got, err)
	}
	if _, err := m.Get(ctx, "carol", "habits"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(carol) error = %v, want ErrKeyNotFound", err)
	}

	if err := m.Delete(ctx, "alice", "habits"); err != nil {
		t.Fatal(err)
	}
	if keys, _ := m.Keys(ctx, "alice"); len(keys) != 0 {
		t.Errorf("Keys(alice) = %v after delete", keys)
	}
	if keys, _ := m.Keys(ctx, "bob"); len(keys) != 1 || keys[0] != "habits" {
		t.Errorf("Keys(bob) = %v", keys)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	type record struct {
		Count int `json:"count"`
	}

	var r record
	found, err := GetJSON(ctx, m, "device", "identity", &r)
	if err != nil || found {
		t.Fatalf("GetJSON on empty store = (%v, %v)", found, err)
	}

	if err := PutJSON(ctx, m, "device", "identity", record{Count: 3}); err != nil {
		t.Fatal(err)
	}
	found, err = GetJSON(ctx, m, "device", "identity", &r)
	if err != nil || !found || r.Count != 3 {
		t.Errorf("GetJSON = (%v, %v, %+v)", found, err, r)
	}

	if err := m.Put(ctx, "device", "broken", []byte("{")); err != nil {
		t.Fatal(err)
	}
	if _, err := GetJSON(ctx, m, "device", "broken", &r); err == nil {
		t.Error("expected decode error for corrupt value")
	}
}

func TestMemoryStoreFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	boom := errors.New("disk full")

	m.SetFailWrites(boom)
	if err := m.Put(ctx, "a", "b", nil); !errors.Is(err, boom) {
		t.Errorf("Put error = %v, want %v", err, boom)
	}
	m.SetFailWrites(nil)
	if err := m.Put(ctx, "a", "b", []byte("x")); err != nil {
		t.Errorf("Put after recovery: %v", err)
	}

	m.FailReads = boom
	if _, err := m.Get(ctx, "a", "b"); !errors.Is(err, boom) {
		t.Errorf("Get error = %v, want %v", err, boom)
	}
}
