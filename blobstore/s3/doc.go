// Package s3 implements the measurement object store on AWS S3.
//
// Uploads above a configurable size threshold are staged to a temporary file
// and handed to the s3 transfer manager, which performs parallel multipart
// uploads. On top of the SDK's own retrying, Put retries whole uploads a
// bounded number of times with a fixed delay; request-timeout style failures
// are not retried by the transfer manager itself.
package s3
