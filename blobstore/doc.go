// Package blobstore defines the object store abstraction used for bulk
// measurement data, along with the physical key scheme that spreads
// measurements across store partitions.
//
// Two remote backends are provided as subpackages:
//
//   - s3: AWS S3 via aws-sdk-go-v2, with managed multipart uploads
//   - minio: MinIO via minio-go
//
// MemoryStore implements the same contract in memory for tests.
package blobstore
