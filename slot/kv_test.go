package slot

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
	"github.com/c360/driftview/natsclient"
	"github.com/c360/driftview/pkg/retry"
)

// memBucket follows JetStream KV semantics: one stream-wide sequence, deleted
// keys can be created again.
type memBucket struct {
	mu     sync.Mutex
	seq    uint64
	values map[string][]byte
	revs   map[string]uint64
}

func newMemBucket() *memBucket {
	return &memBucket{values: map[string][]byte{}, revs: map[string]uint64{}}
}

func (b *memBucket) Get(_ context.Context, key string) ([]byte, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	if !ok {
		return nil, 0, jetstream.ErrKeyNotFound
	}
	return v, b.revs[key], nil
}

func (b *memBucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.values[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	b.seq++
	b.values[key], b.revs[key] = value, b.seq
	return b.seq, nil
}

func (b *memBucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revs[key] != revision {
		return 0, fmt.Errorf("nats: wrong last sequence: %d", b.revs[key])
	}
	b.seq++
	b.values[key], b.revs[key] = value, b.seq
	return b.seq, nil
}

func (b *memBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++ // delete markers consume a sequence
	delete(b.values, key)
	b.revs[key] = b.seq
	return nil
}

func (b *memBucket) Keys(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func newTestKVStore(b natsclient.Bucket) *KVStore {
	kv := natsclient.NewKVStore(b, nil, func(o *natsclient.KVOptions) {
		o.Retry = retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	})
	return NewKVStore(kv)
}

func TestKVStore_Contract(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		return newTestKVStore(newMemBucket())
	})
}

func TestKVStore_CorruptValue(t *testing.T) {
	b := newMemBucket()
	s := newTestKVStore(b)
	key := testKey(t, "m1")

	_, err := b.Create(context.Background(), key.String(), []byte("{not json"))
	require.NoError(t, err)

	_, err = s.Load(context.Background(), key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataCorrupted))
	assert.True(t, errors.IsFatal(err))
}

func TestKVStore_SkipsForeignKeys(t *testing.T) {
	b := newMemBucket()
	s := newTestKVStore(b)
	ctx := context.Background()

	_, err := b.Create(ctx, "unrelated", []byte("{}"))
	require.NoError(t, err)
	_, err = s.Commit(ctx, testKey(t, "m1"), 0, testConn(false, "A"), false)
	require.NoError(t, err)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testKey(t, "m1").String()}, []string{keys[0].String()})
	assert.Len(t, keys, 1)
}

func TestKVStore_RoundTripsNodes(t *testing.T) {
	ctx := context.Background()
	s := newTestKVStore(newMemBucket())
	key := testKey(t, "m1")

	conn := testConn(true, "A")
	d := 0.25
	conn.Edges[0].Node.DriftMetric = &d

	_, err := s.Commit(ctx, key, 0, conn, false)
	require.NoError(t, err)

	loaded, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, conn, loaded.Connection)
}
