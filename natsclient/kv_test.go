package natsclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/pkg/retry"
)

// fakeBucket mimics JetStream KV revision semantics in memory.
type fakeBucket struct {
	mu       sync.Mutex
	values   map[string][]byte
	revs     map[string]uint64
	seq      uint64
	failures int // transient failures to inject before succeeding
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{values: map[string][]byte{}, revs: map[string]uint64{}}
}

func (b *fakeBucket) fail() error {
	if b.failures > 0 {
		b.failures--
		return fmt.Errorf("nats: timeout")
	}
	return nil
}

func (b *fakeBucket) Get(_ context.Context, key string) ([]byte, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return nil, 0, err
	}
	v, ok := b.values[key]
	if !ok {
		return nil, 0, jetstream.ErrKeyNotFound
	}
	return v, b.revs[key], nil
}

func (b *fakeBucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return 0, err
	}
	if _, ok := b.values[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	b.seq++
	b.values[key] = value
	b.revs[key] = b.seq
	return b.seq, nil
}

func (b *fakeBucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return 0, err
	}
	if b.revs[key] != revision {
		return 0, fmt.Errorf("nats: wrong last sequence: %d", b.revs[key])
	}
	b.seq++
	b.values[key] = value
	b.revs[key] = b.seq
	return b.seq, nil
}

func (b *fakeBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return err
	}
	delete(b.values, key)
	delete(b.revs, key)
	return nil
}

func (b *fakeBucket) Keys(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.values) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func newTestStore(b Bucket) *KVStore {
	return NewKVStore(b, nil, func(o *KVOptions) {
		o.Retry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
		o.MaxValueSize = 16
	})
}

func TestKVStore_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(newFakeBucket())

	_, err := kv.Get(ctx, "slot")
	assert.True(t, errors.Is(err, ErrKVKeyNotFound))

	rev, err := kv.Create(ctx, "slot", []byte("v1"))
	require.NoError(t, err)

	_, err = kv.Create(ctx, "slot", []byte("again"))
	assert.True(t, errors.Is(err, ErrKVKeyExists))
	assert.True(t, IsKVConflictError(err))

	entry, err := kv.Get(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(entry.Value))
	assert.Equal(t, rev, entry.Revision)

	next, err := kv.Update(ctx, "slot", []byte("v2"), rev)
	require.NoError(t, err)
	assert.Greater(t, next, rev)

	_, err = kv.Update(ctx, "slot", []byte("v3"), rev)
	assert.True(t, errors.Is(err, ErrKVRevisionMismatch))
	assert.False(t, errors.IsTransient(err), "conflicts are never retried")
}

func TestKVStore_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	kv := newTestStore(bucket)

	bucket.failures = 2
	_, err := kv.Create(ctx, "slot", []byte("v1"))
	require.NoError(t, err)

	bucket.failures = 5
	_, err = kv.Get(ctx, "slot")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.True(t, errors.Is(err, errors.ErrMaxRetriesExceeded))
}

func TestKVStore_ValueTooLarge(t *testing.T) {
	kv := newTestStore(newFakeBucket())

	_, err := kv.Create(context.Background(), "slot", make([]byte, 17))
	assert.True(t, errors.Is(err, ErrKVValueTooLarge))
	assert.True(t, errors.IsInvalid(err))
}

func TestKVStore_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(newFakeBucket())

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, _ = kv.Create(ctx, "b", []byte("1"))
	_, _ = kv.Create(ctx, "a", []byte("2"))

	keys, err = kv.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, kv.Delete(ctx, "a"))
	require.NoError(t, kv.Delete(ctx, "missing"))

	_, err = kv.Get(ctx, "a")
	assert.True(t, IsKVNotFoundError(err))
}

func TestKVStore_CancelledContextIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	kv := newTestStore(bucketFunc(func() error {
		calls++
		return context.Canceled
	}))

	_, err := kv.Get(ctx, "slot")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsKVNotFoundError(jetstream.ErrKeyNotFound))
	assert.True(t, IsKVNotFoundError(fmt.Errorf("nats: key not found")))
	assert.True(t, IsKVConflictError(fmt.Errorf("wrong last sequence: 7")))
	assert.True(t, IsKVConflictError(fmt.Errorf("api error 10071")))
	assert.False(t, IsKVConflictError(nil))
	assert.False(t, IsKVNotFoundError(fmt.Errorf("boom")))
}

// bucketFunc fails every call with the error fn returns.
type bucketFunc func() error

func (f bucketFunc) Get(context.Context, string) ([]byte, uint64, error) { return nil, 0, f() }
func (f bucketFunc) Create(context.Context, string, []byte) (uint64, error) {
	return 0, f()
}
func (f bucketFunc) Update(context.Context, string, []byte, uint64) (uint64, error) {
	return 0, f()
}
func (f bucketFunc) Delete(context.Context, string) error   { return f() }
func (f bucketFunc) Keys(context.Context) ([]string, error) { return nil, f() }
