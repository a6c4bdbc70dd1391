package s3

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openanalytics/measstore/blobstore"
)

// Put writes an object, retrying up to UploadMaxTries times with a fixed
// delay between attempts. Payloads above TempFileThreshold are staged to a
// temporary file first: the uploader can then split the file into parallel
// multipart uploads without holding the whole payload in memory twice.
func (s *Store) Put(ctx context.Context, measID int64, key string, data []byte) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

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

	physKey := blobstore.MakeKey(measID, key)

	var lastErr error
	for try := 1; try <= s.opts.UploadMaxTries; try++ {
		lastErr = s.upload(ctx, physKey, data, tempFile)
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

// upload performs a single upload attempt, from the staged temp file if one
// was created and from memory otherwise.
func (s *Store) upload(ctx context.Context, physKey string, data []byte, tempFile string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(physKey),
	}

	if tempFile != "" {
		f, err := os.Open(tempFile)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		input.Body = f
	} else {
		input.Body = bytes.NewReader(data)
		input.ContentLength = aws.Int64(int64(len(data)))
	}

	_, err := s.uploader.Upload(ctx, input)
	return err
}
