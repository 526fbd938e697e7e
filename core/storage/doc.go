// Package storage provides the object storage client used to export merged tables.
//
// It wraps the MinIO Go client, which talks to both AWS S3 and self-hosted MinIO.
//
// # Client Interface
//
// The Client interface exposes only what an export needs:
//   - BucketExists: verifies access to the target bucket.
//   - ListObjects: lists what is already exported under a prefix.
//   - PutObject: uploads one entry.
//
// A testify mock lives in core/storage/mocks.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
package storage
