// Package fs abstracts the file system operations of the local archive store
// so that tests can inject faults.
//
//   - [LocalFS]: production implementation on the os package
//   - [FaultyFS]: wrapper failing writes, syncs, closes or renames on demand
//
// Tests inject [FaultyFS] to check that a failed write never leaves a partial
// blob under its final name:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("remap/", fs.Fault{FailOnSync: true})
package fs
