package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"

	"github.com/openanalytics/measstore/blobstore"
)

// Options configures the MinIO store. The semantics match the S3 store:
// bounded whole-upload retrying with a fixed delay, and temp-file staging
// for large payloads.
type Options struct {
	Bucket            string
	UploadMaxTries    int
	UploadRetryDelay  time.Duration
	TempFileThreshold int
}

// DefaultOptions returns the default store settings.
func DefaultOptions(bucket string) Options {
	return Options{
		Bucket:            bucket,
		UploadMaxTries:    5,
		UploadRetryDelay:  time.Second,
		TempFileThreshold: 10000,
	}
}

// Store implements blobstore.Store for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	opts   Options
	logger *slog.Logger
}

// Compile time check to ensure Store satisfies the blobstore.Store interface.
var _ blobstore.Store = (*Store)(nil)

// New creates a new MinIO-backed store. A nil logger falls back to slog.Default.
func New(client *minio.Client, opts Options, logger *slog.Logger) *Store {
	if opts.UploadMaxTries <= 0 {
		opts.UploadMaxTries = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, opts: opts, logger: logger}
}

// EnsureBucket creates the configured bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.opts.Bucket)
	if err != nil || exists {
		return err
	}
	return s.client.MakeBucket(ctx, s.opts.Bucket, minio.MakeBucketOptions{})
}

// Exists reports whether an object exists.
func (s *Store) Exists(ctx context.Context, measID int64, key string) (bool, error) {
	_, err := s.Size(ctx, measID, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Size returns the size of an object in bytes.
func (s *Store) Size(ctx context.Context, measID int64, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.opts.Bucket, blobstore.MakeKey(measID, key), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return 0, blobstore.ErrNotFound
		}
		return 0, err
	}
	return info.Size, nil
}

// Get returns the full contents of an object.
func (s *Store) Get(ctx context.Context, measID int64, key string) ([]byte, error) {
	return s.GetRange(ctx, measID, key, 0, -1)
}

// GetRange returns length bytes starting at offset.
// A length <= 0 returns the whole object.
func (s *Store) GetRange(ctx context.Context, measID int64, key string, offset int64, length int) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if length > 0 {
		if err := opts.SetRange(offset, offset+int64(length)-1); err != nil {
			return nil, err
		}
	}

	obj, err := s.client.GetObject(ctx, s.opts.Bucket, blobstore.MakeKey(measID, key), opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put writes an object, retrying up to UploadMaxTries times. Payloads above
// TempFileThreshold are staged to a temporary file so the client can split
// them into multipart uploads without buffering everything in memory.
func (s *Store) Put(ctx context.Context, measID int64, key string, data []byte) error {
	physKey := blobstore.MakeKey(measID, key)

	var tempFile string
	if len(data) > s.opts.TempFileThreshold {
		f, err := os.CreateTemp("", "meas-data")
		if err != nil {
			return err
		}
		tempFile = f.Name()
		defer func() { _ = os.Remove(tempFile) }()

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	var lastErr error
	for try := 1; try <= s.opts.UploadMaxTries; try++ {
		if tempFile != "" {
			_, lastErr = s.client.FPutObject(ctx, s.opts.Bucket, physKey, tempFile, minio.PutObjectOptions{})
		} else {
			_, lastErr = s.client.PutObject(ctx, s.opts.Bucket, physKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
		}
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("upload attempt failed",
			"meas_id", measID, "key", key, "try", try, "error", lastErr)

		if s.opts.UploadRetryDelay > 0 && try < s.opts.UploadMaxTries {
			select {
			case <-time.After(s.opts.UploadRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return blobstore.NewUploadError(measID, key, s.opts.UploadMaxTries, lastErr)
}

// List returns the logical keys of all objects under the given logical prefix.
// The client follows listing pagination internally.
func (s *Store) List(ctx context.Context, measID int64, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.opts.Bucket, minio.ListObjectsOptions{
		Prefix:    blobstore.MakeKey(measID, prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, blobstore.ParseKey(obj.Key))
	}
	return keys, nil
}

// DeleteBatch deletes the given logical keys, one concurrent RemoveObjects
// stream per group of at most blobstore.DeleteBatchLimit keys.
func (s *Store) DeleteBatch(ctx context.Context, measID int64, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, group := range blobstore.SplitKeys(keys, blobstore.DeleteBatchLimit) {
		g.Go(func() error {
			objects := make(chan minio.ObjectInfo, len(group))
			for _, key := range group {
				objects <- minio.ObjectInfo{Key: blobstore.MakeKey(measID, key)}
			}
			close(objects)

			for res := range s.client.RemoveObjects(ctx, s.opts.Bucket, objects, minio.RemoveObjectsOptions{}) {
				if res.Err != nil && !isNotFound(res.Err) {
					return res.Err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}
