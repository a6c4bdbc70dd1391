// Package minio implements the measurement object store on MinIO or any
// S3-compatible endpoint, as a drop-in alternative to the s3 package for
// on-premise deployments.
package minio
