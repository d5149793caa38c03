package kv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// DialValkey connects to a Valkey server and verifies the connection with PING.
func DialValkey(addr string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	slog.Info("Connected to Valkey", "address", addr)
	return client, nil
}

// ValkeyStore keeps values as plain Valkey strings under a key prefix.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	owned  bool
}

// NewValkeyStore wraps an existing client. Close does not close a shared client.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	return &ValkeyStore{client: client, prefix: prefix}
}

// OpenValkeyStore dials addr and returns a store that owns the connection.
func OpenValkeyStore(addr, prefix string) (*ValkeyStore, error) {
	client, err := DialValkey(addr)
	if err != nil {
		return nil, err
	}
	return &ValkeyStore{client: client, prefix: prefix, owned: true}, nil
}

// Client exposes the underlying connection so other components can share it.
func (s *ValkeyStore) Client() valkey.Client {
	return s.client
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(s.prefix + key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return data, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(s.prefix + key).Value(valkey.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// SetMulti uses MSET, which Valkey applies atomically.
func (s *ValkeyStore) SetMulti(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	cmd := s.client.B().Mset().KeyValue()
	for _, e := range entries {
		cmd = cmd.KeyValue(s.prefix+e.Key, valkey.BinaryString(e.Value))
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return fmt.Errorf("failed to write %d keys: %w", len(entries), err)
	}
	return nil
}

func (s *ValkeyStore) Close() error {
	if s.owned {
		s.client.Close()
	}
	return nil
}
