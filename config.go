package measstore

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the environment-driven configuration surface of the engine.
// Every field has a production default; unset variables keep it.
type Config struct {
	// Object store
	BucketName        string        // MEASSTORE_S3_BUCKET_NAME
	UploadMaxTries    int           // MEASSTORE_S3_UPLOAD_MAX_TRIES
	UploadRetryDelay  time.Duration // MEASSTORE_S3_UPLOAD_RETRY_DELAY
	TempFileThreshold int           // MEASSTORE_S3_UPLOAD_TEMP_FILE_THRESHOLD
	StoreParallelism  int           // MEASSTORE_S3_THREADS

	// Relational store
	DBSchema      string // MEASSTORE_DB_SCHEMA
	WelldataTable string // MEASSTORE_DB_WELLDATA_TABLE

	// Ingestion
	QueueCapacity int // MEASSTORE_CONSUMER_QUEUE_SIZE
	QueueWorkers  int // MEASSTORE_CONSUMER_PROCESSOR_SIZE
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		UploadMaxTries:    5,
		UploadRetryDelay:  time.Second,
		TempFileThreshold: 10000,
		StoreParallelism:  100,
		DBSchema:          "measservice",
		WelldataTable:     "welldata",
		QueueCapacity:     50,
		QueueWorkers:      20,
	}
}

// ConfigFromEnv reads the configuration from the environment on top of the
// defaults. Returns an error for unparseable values; a missing bucket name
// is reported since the engine cannot store anything without it.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var err error

	cfg.BucketName = os.Getenv("MEASSTORE_S3_BUCKET_NAME")
	if cfg.BucketName == "" {
		return cfg, fmt.Errorf("MEASSTORE_S3_BUCKET_NAME is not set")
	}

	if cfg.UploadMaxTries, err = envInt("MEASSTORE_S3_UPLOAD_MAX_TRIES", cfg.UploadMaxTries); err != nil {
		return cfg, err
	}
	if cfg.UploadRetryDelay, err = envDuration("MEASSTORE_S3_UPLOAD_RETRY_DELAY", cfg.UploadRetryDelay); err != nil {
		return cfg, err
	}
	if cfg.TempFileThreshold, err = envInt("MEASSTORE_S3_UPLOAD_TEMP_FILE_THRESHOLD", cfg.TempFileThreshold); err != nil {
		return cfg, err
	}
	if cfg.StoreParallelism, err = envInt("MEASSTORE_S3_THREADS", cfg.StoreParallelism); err != nil {
		return cfg, err
	}
	if v := os.Getenv("MEASSTORE_DB_SCHEMA"); v != "" {
		cfg.DBSchema = v
	}
	if v := os.Getenv("MEASSTORE_DB_WELLDATA_TABLE"); v != "" {
		cfg.WelldataTable = v
	}
	if cfg.QueueCapacity, err = envInt("MEASSTORE_CONSUMER_QUEUE_SIZE", cfg.QueueCapacity); err != nil {
		return cfg, err
	}
	if cfg.QueueWorkers, err = envInt("MEASSTORE_CONSUMER_PROCESSOR_SIZE", cfg.QueueWorkers); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
