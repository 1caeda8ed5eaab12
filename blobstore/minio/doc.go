// Package minio stores measurement archives in MinIO or any other S3-compatible
// server through minio-go.
//
// Blob names are joined under the store prefix, so several runs can share a
// bucket:
//
//	client, _ := minio.New(endpoint, &minio.Options{Creds: creds})
//	store := minioblob.NewStore(client, "perf-archives", "job-1234")
//	w := archive.NewWriter(store)
package minio
