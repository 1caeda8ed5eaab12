// Package mmap provides memory mappings for arena pages and read-only file access.
//
// # Anonymous Mappings
//
// MapAnon creates read-write anonymous mappings outside the Go heap. The definition
// arena uses them as page backing when anonymous pages are enabled, so that large
// definition sets do not add to garbage collector pressure. Only pointer-free data
// may be stored in anonymous mappings.
//
// # File Mappings
//
// Open maps a file read-only. The local blob store uses it to read archived
// definition snapshots without copying them through kernel buffers.
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent; callers must ensure
// no goroutine touches Bytes() after Close returns.
package mmap
