package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrKeyNotFound is returned by Provider.Get for an absent key.
var ErrKeyNotFound = errors.New("key not found")

// Provider is the on-device key-value store. Each value is one whole
// serialized collection under a namespace (an owner id or the device
// namespace). Implementations are safe for concurrent use.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Path() string

	// Values
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Keys(ctx context.Context, namespace string) ([]string, error)
}

// ValidateKey rejects empty parts and separators that would let one
// namespace read another's keys.
func ValidateKey(namespace, key string) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("namespace and key must not be empty")
	}
	if strings.Contains(namespace, "/") {
		return fmt.Errorf("namespace %q must not contain '/'", namespace)
	}
	return nil
}

// GetJSON reads and decodes a value. found is false when the key is absent.
func GetJSON(ctx context.Context, p Provider, namespace, key string, v any) (found bool, err error) {
	raw, err := p.Get(ctx, namespace, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// PutJSON encodes and writes a value.
func PutJSON(ctx context.Context, p Provider, namespace, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", namespace, key, err)
	}
	return p.Put(ctx, namespace, key, raw)
}
