// Package blobstore provides the remote storage used to mirror index snapshots.
//
// A BlobStore holds whole, immutable objects addressed by name. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local (or network-mounted) filesystem
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 with multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
