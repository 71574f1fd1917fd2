// Package artifacts owns the on-disk layout of a job directory, decides which
// files may be served over HTTP, and optionally publishes finished artifacts
// to S3-compatible object storage.
package artifacts
