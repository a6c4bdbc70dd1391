package measstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("MEASSTORE_S3_BUCKET_NAME", "measurements")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "measurements", cfg.BucketName)
	assert.Equal(t, 5, cfg.UploadMaxTries)
	assert.Equal(t, time.Second, cfg.UploadRetryDelay)
	assert.Equal(t, 10000, cfg.TempFileThreshold)
	assert.Equal(t, 100, cfg.StoreParallelism)
	assert.Equal(t, "measservice", cfg.DBSchema)
	assert.Equal(t, "welldata", cfg.WelldataTable)
	assert.Equal(t, 50, cfg.QueueCapacity)
	assert.Equal(t, 20, cfg.QueueWorkers)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MEASSTORE_S3_BUCKET_NAME", "measurements")
	t.Setenv("MEASSTORE_S3_UPLOAD_MAX_TRIES", "3")
	t.Setenv("MEASSTORE_S3_UPLOAD_RETRY_DELAY", "250ms")
	t.Setenv("MEASSTORE_DB_SCHEMA", "custom")
	t.Setenv("MEASSTORE_CONSUMER_QUEUE_SIZE", "100")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.UploadMaxTries)
	assert.Equal(t, 250*time.Millisecond, cfg.UploadRetryDelay)
	assert.Equal(t, "custom", cfg.DBSchema)
	assert.Equal(t, 100, cfg.QueueCapacity)
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("MEASSTORE_S3_BUCKET_NAME", "")
	_, err := ConfigFromEnv()
	assert.Error(t, err)

	t.Setenv("MEASSTORE_S3_BUCKET_NAME", "measurements")
	t.Setenv("MEASSTORE_S3_THREADS", "lots")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}
