// Package archive hands the result of a measurement run to writer collaborators.
//
// After unification the coordinator stores, in a blobstore.Store:
//
//	definitions.<codec>    unified definitions in unification batch form
//	remap/<rank>.<codec>   the remap table of every rank
//	clock/<rank>.<codec>   the clock offset samples of every rank
//	used/<rank>.<codec>    per kind, a roaring bitmap of the global IDs a rank uses
//	MANIFEST.<codec>       run summary, written last
//
// Every blob is a checksummed, optionally compressed envelope. The manifest is
// the commit point: an archive without one is incomplete and Open rejects it.
// A rewrite deletes the old manifest before storing any blob.
package archive
