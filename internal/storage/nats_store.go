package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/stargazer/internal/logfields"
)

const natsOpTimeout = 2 * time.Second

// NATSStore keeps values in a JetStream KeyValue bucket.
type NATSStore struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	bucket string
}

// NewNATSStore connects to url and opens (or creates) bucket.
func NewNATSStore(url, bucket string) (*NATSStore, error) {
	conn, err := nats.Connect(url, nats.Name("stargazer"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := openBucket(js, bucket)
	if err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS storage initialized", "url", url, "bucket", bucket)
	s := NewNATSStoreFromKV(kv, bucket)
	s.conn = conn
	return s, nil
}

// NewNATSStoreFromKV wraps an existing bucket handle. The caller keeps
// ownership of the underlying connection.
func NewNATSStoreFromKV(kv jetstream.KeyValue, bucket string) *NATSStore {
	return &NATSStore{kv: kv, bucket: bucket}
}

func openBucket(js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to open KV bucket: %w", err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Stargazer session state",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	slog.Info("Created KV bucket for session state", "bucket", bucket)
	return kv, nil
}

func (s *NATSStore) Name() string { return "nats" }

// Get retrieves the latest value for key.
func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, natsOpTimeout)
	defer cancel()

	entry, err := s.kv.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put stores value under key.
func (s *NATSStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, natsOpTimeout)
	defer cancel()

	if _, err := s.kv.Put(ctx, natsKey(key), value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	slog.Debug("Stored value in KV bucket", logfields.StorageKey(key), "bucket", s.bucket)
	return nil
}

// Delete places a delete marker for key.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, natsOpTimeout)
	defer cancel()

	if err := s.kv.Delete(ctx, natsKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the NATS connection when this store opened it.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// KV keys may not contain ':'.
func natsKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}
