// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "runs/2024-06-01/")
//
// # Features
//
//   - Range reads for partial fetches
//   - Managed (multipart) uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix to keep runs apart
package s3
