package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/pkg/retry"
)

// Well-known KV errors
var (
	ErrKVKeyNotFound      = errors.New("kv: key not found")
	ErrKVKeyExists        = errors.New("kv: key already exists")
	ErrKVRevisionMismatch = errors.New("kv: revision mismatch (concurrent update)")
	ErrKVValueTooLarge    = errors.New("kv: value exceeds size limit")
)

// Bucket is the subset of a JetStream key-value bucket the store relies on.
type Bucket interface {
	Get(ctx context.Context, key string) (value []byte, revision uint64, err error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// JetStreamBucket adapts a jetstream.KeyValue to Bucket.
func JetStreamBucket(kv jetstream.KeyValue) Bucket {
	return jsBucket{kv: kv}
}

type jsBucket struct {
	kv jetstream.KeyValue
}

func (b jsBucket) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return entry.Value(), entry.Revision(), nil
}

func (b jsBucket) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	return b.kv.Create(ctx, key, value)
}

func (b jsBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	return b.kv.Update(ctx, key, value, revision)
}

func (b jsBucket) Delete(ctx context.Context, key string) error {
	return b.kv.Delete(ctx, key)
}

func (b jsBucket) Keys(ctx context.Context) ([]string, error) {
	lister, err := b.kv.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}

// KVEntry is a value together with the revision used for CAS writes.
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions configures KVStore behavior
type KVOptions struct {
	Timeout      time.Duration // per-call timeout, 0 disables
	MaxValueSize int           // 0 disables the check
	Retry        retry.Config  // backoff for transient bucket failures
}

// DefaultKVOptions returns defaults sized for connection pages.
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout:      5 * time.Second,
		MaxValueSize: 1024 * 1024,
		Retry:        retry.DefaultConfig(),
	}
}

// KVStore adds CAS semantics, error mapping and transient retry on top of a Bucket.
type KVStore struct {
	bucket  Bucket
	options KVOptions
	logger  *slog.Logger
}

// NewKVStore wraps bucket. opts may adjust the defaults.
func NewKVStore(bucket Bucket, logger *slog.Logger, opts ...func(*KVOptions)) *KVStore {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}
	options.Retry.Retryable = retry.TransientOnly

	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{bucket: bucket, options: options, logger: logger}
}

// NewKVStore wraps a JetStream bucket with the client's logger.
func (c *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	return NewKVStore(JetStreamBucket(bucket), c.logger, opts...)
}

func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout > 0 {
		return context.WithTimeout(ctx, kv.options.Timeout)
	}
	return ctx, func() {}
}

// do runs op with the per-call timeout, retrying only transient failures.
func (kv *KVStore) do(ctx context.Context, method, key string, op func(context.Context) error) error {
	return retry.Do(ctx, kv.options.Retry, func() error {
		callCtx, cancel := kv.applyTimeout(ctx)
		defer cancel()
		return classify(op(callCtx), method, key)
	})
}

// Get retrieves a value with its revision
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	var entry *KVEntry
	err := kv.do(ctx, "Get", key, func(ctx context.Context) error {
		value, rev, err := kv.bucket.Get(ctx, key)
		if err != nil {
			return err
		}
		entry = &KVEntry{Key: key, Value: value, Revision: rev}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Create writes key only if it does not exist.
func (kv *KVStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := kv.checkSize(key, value); err != nil {
		return 0, err
	}
	var rev uint64
	err := kv.do(ctx, "Create", key, func(ctx context.Context) error {
		var err error
		rev, err = kv.bucket.Create(ctx, key, value)
		return err
	})
	if err != nil {
		return 0, err
	}
	kv.logger.Debug("KV create", "key", key, "revision", rev)
	return rev, nil
}

// Update writes key only if its current revision equals revision.
func (kv *KVStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := kv.checkSize(key, value); err != nil {
		return 0, err
	}
	var rev uint64
	err := kv.do(ctx, "Update", key, func(ctx context.Context) error {
		var err error
		rev, err = kv.bucket.Update(ctx, key, value, revision)
		return err
	})
	if err != nil {
		return 0, err
	}
	kv.logger.Debug("KV update", "key", key, "old_revision", revision, "revision", rev)
	return rev, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	err := kv.do(ctx, "Delete", key, func(ctx context.Context) error {
		return kv.bucket.Delete(ctx, key)
	})
	if err != nil && !errors.Is(err, ErrKVKeyNotFound) {
		return err
	}
	kv.logger.Debug("KV delete", "key", key)
	return nil
}

// Keys lists the live keys in the bucket.
func (kv *KVStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := kv.do(ctx, "Keys", "", func(ctx context.Context) error {
		var err error
		keys, err = kv.bucket.Keys(ctx)
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			keys, err = nil, nil
		}
		return err
	})
	return keys, err
}

func (kv *KVStore) checkSize(key string, value []byte) error {
	if kv.options.MaxValueSize > 0 && len(value) > kv.options.MaxValueSize {
		return errors.WrapInvalid(ErrKVValueTooLarge, "KVStore", "checkSize",
			fmt.Sprintf("key %s: %d bytes exceeds %d", key, len(value), kv.options.MaxValueSize))
	}
	return nil
}

// classify maps raw bucket errors onto the package sentinels. Misses and
// conflicts are invalid, anything else except cancellation is transient.
func classify(err error, method, key string) error {
	switch {
	case err == nil:
		return nil
	case IsKVNotFoundError(err):
		return errors.WrapInvalid(ErrKVKeyNotFound, "KVStore", method, fmt.Sprintf("key %q", key))
	case errors.Is(err, ErrKVKeyExists), errors.Is(err, jetstream.ErrKeyExists),
		strings.Contains(err.Error(), "key exists"):
		return errors.WrapInvalid(ErrKVKeyExists, "KVStore", method, fmt.Sprintf("key %q", key))
	case IsKVConflictError(err):
		return errors.WrapInvalid(ErrKVRevisionMismatch, "KVStore", method, fmt.Sprintf("key %q", key))
	case errors.Is(err, context.Canceled):
		return err
	default:
		return errors.WrapTransient(err, "KVStore", method, fmt.Sprintf("bucket call for %q", key))
	}
}

// IsKVNotFoundError checks if error indicates key not found
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKVKeyNotFound) || errors.Is(err, jetstream.ErrKeyNotFound) ||
		errors.Is(err, jetstream.ErrKeyDeleted) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "10037")
}

// IsKVConflictError checks if error indicates a conflict (key exists or wrong revision)
func IsKVConflictError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKVRevisionMismatch) || errors.Is(err, ErrKVKeyExists) ||
		errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "wrong last sequence") ||
		strings.Contains(msg, "10071") ||
		strings.Contains(msg, "key exists") ||
		strings.Contains(msg, "10058")
}
