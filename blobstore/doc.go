// Package blobstore abstracts the storage that receives the unification
// archive (unified definitions, remap tables, clock offsets).
//
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and single-process tools
//   - LocalStore: local filesystem, reads are memory-mapped
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - minio.Store: MinIO and other S3-compatible storage
package blobstore
