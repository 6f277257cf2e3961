//go:build integration

package slot

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/c360/driftview/natsclient"
)

func TestKVStore_JetStreamContract(t *testing.T) {
	tc := natsclient.NewTestClient(t)

	storeContract(t, func(t *testing.T) Store {
		bucket, err := tc.Client.CreateKeyValueBucket(context.Background(), jetstream.KeyValueConfig{
			Bucket:  "slots-" + sanitize(t.Name()),
			History: 1,
		})
		require.NoError(t, err)
		return NewKVStore(tc.Client.NewKVStore(bucket))
	})
}

func sanitize(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
