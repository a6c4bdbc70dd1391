package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/openanalytics/measstore/blobstore"
)

// Client is the subset of the S3 API used by Store. It is satisfied by
// *s3.Client and can be faked in unit tests.
type Client interface {
	manager.UploadAPIClient

	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures the S3 store.
type Options struct {
	// Bucket is the bucket holding all measurement objects.
	Bucket string

	// UploadMaxTries is the number of upload attempts before giving up.
	// Default: 5
	UploadMaxTries int

	// UploadRetryDelay is the fixed delay between upload attempts.
	// Default: 1s
	UploadRetryDelay time.Duration

	// TempFileThreshold is the payload size in bytes above which uploads are
	// staged to a temporary file, bounding memory use and enabling parallel
	// multipart uploads. Default: 10000
	TempFileThreshold int

	// Parallelism caps the number of concurrent requests issued by this
	// store across all callers. Default: 100
	Parallelism int64
}

// DefaultOptions returns the default store settings.
func DefaultOptions(bucket string) Options {
	return Options{
		Bucket:            bucket,
		UploadMaxTries:    5,
		UploadRetryDelay:  time.Second,
		TempFileThreshold: 10000,
		Parallelism:       100,
	}
}

// Store implements blobstore.Store backed by S3.
type Store struct {
	client   Client
	uploader *manager.Uploader
	opts     Options
	sem      *semaphore.Weighted
	logger   *slog.Logger
}

// Compile time check to ensure Store satisfies the blobstore.Store interface.
var _ blobstore.Store = (*Store)(nil)

// New creates a new S3-backed store. A nil logger falls back to slog.Default.
func New(client Client, opts Options, logger *slog.Logger) *Store {
	if opts.UploadMaxTries <= 0 {
		opts.UploadMaxTries = 5
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		opts:     opts,
		sem:      semaphore.NewWeighted(opts.Parallelism),
		logger:   logger,
	}
}

// NewFromEnv creates a store with a client built from the ambient AWS
// configuration (environment, shared config files, instance role).
func NewFromEnv(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return New(s3.NewFromConfig(cfg), opts, logger), nil
}

// EnsureBucket creates the configured bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	if !errors.As(err, &nf) {
		return err
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.opts.Bucket)})
	return err
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.sem.Release(1) }, nil
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
	release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(blobstore.MakeKey(measID, key)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, blobstore.ErrNotFound
		}
		return 0, err
	}
	return aws.ToInt64(head.ContentLength), nil
}

// Get returns the full contents of an object.
func (s *Store) Get(ctx context.Context, measID int64, key string) ([]byte, error) {
	return s.GetRange(ctx, measID, key, 0, -1)
}

// GetRange returns length bytes starting at offset.
// A length <= 0 returns the whole object.
func (s *Store) GetRange(ctx context.Context, measID int64, key string, offset int64, length int) ([]byte, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(blobstore.MakeKey(measID, key)),
	}
	if length > 0 {
		// Server-side ranges are inclusive on both ends.
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+int64(length)-1))
	}

	resp, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return io.ReadAll(resp.Body)
}

// List returns the logical keys of all objects under the given logical prefix,
// following continuation tokens until the listing is complete.
func (s *Store) List(ctx context.Context, measID int64, prefix string) ([]string, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(blobstore.MakeKey(measID, prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, blobstore.ParseKey(aws.ToString(obj.Key)))
		}
	}
	return keys, nil
}

// DeleteBatch deletes the given logical keys, issuing one concurrent
// DeleteObjects request per group of at most blobstore.DeleteBatchLimit keys.
func (s *Store) DeleteBatch(ctx context.Context, measID int64, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, group := range blobstore.SplitKeys(keys, blobstore.DeleteBatchLimit) {
		g.Go(func() error {
			release, err := s.acquire(ctx)
			if err != nil {
				return err
			}
			defer release()

			objects := make([]types.ObjectIdentifier, len(group))
			for i, key := range group {
				objects[i] = types.ObjectIdentifier{Key: aws.String(blobstore.MakeKey(measID, key))}
			}
			_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.opts.Bucket),
				Delete: &types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			return err
		})
	}
	return g.Wait()
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}
