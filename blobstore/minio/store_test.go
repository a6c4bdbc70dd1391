package minio

import (
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openanalytics/measstore/blobstore"
)

func newTestClient(t *testing.T) *minio.Client {
	t.Helper()
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds: credentials.NewStaticV4("key", "secret", ""),
	})
	require.NoError(t, err)
	return client
}

func TestNew_Defaults(t *testing.T) {
	store := New(newTestClient(t), Options{Bucket: "measurements"}, nil)
	assert.Equal(t, 5, store.opts.UploadMaxTries)
	assert.NotNil(t, store.logger)

	opts := DefaultOptions("measurements")
	assert.Equal(t, "measurements", opts.Bucket)
	assert.Equal(t, 10000, opts.TempFileThreshold)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(assert.AnError))
}

func TestStore_SatisfiesInterface(t *testing.T) {
	var store blobstore.Store = New(newTestClient(t), DefaultOptions("measurements"), nil)
	assert.NotNil(t, store)
}
