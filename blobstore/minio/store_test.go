package minio

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/perfdefs/blobstore"
)

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "b", "run-42/")
	assert.Equal(t, "run-42/definitions.cbor", s.key("definitions.cbor"))
	assert.Equal(t, "run-42/remap/3.cbor", s.key("remap/3.cbor"))

	s = NewStore(nil, "b", "")
	assert.Equal(t, "clock/0.cbor", s.key("clock/0.cbor"))
}

// TestStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MinIO integration test in short mode")
	}

	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "test-perfdefs"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "remap/0.cbor", data))

	blob, err := store.Open(ctx, "remap/0.cbor")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "minio", string(buf))

	n, err = blob.ReadAt(ctx, buf, int64(len(data)-3))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "rld", string(buf[:n]))
	require.NoError(t, blob.Close())

	all, err := blobstore.ReadAll(ctx, store, "remap/0.cbor")
	require.NoError(t, err)
	assert.Equal(t, data, all)

	names, err := store.List(ctx, "remap/")
	require.NoError(t, err)
	assert.Contains(t, names, "remap/0.cbor")

	require.NoError(t, store.Delete(ctx, "remap/0.cbor"))
	require.NoError(t, store.Delete(ctx, "remap/0.cbor"))

	_, err = store.Open(ctx, "remap/0.cbor")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
