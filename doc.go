// Package perfdefs manages the definitions of a parallel performance
// measurement: the strings, source files, regions, locations, metrics and
// other records that trace and profile events refer to by handle.
//
// Every process of a run owns a Measurement. Definitions are interned into a
// page arena, so defining the same record twice returns the same handle. At
// the end of the run the processes synchronize their clocks, and the
// coordinator (rank 0) unifies all local definitions into one global set and
// sends every process a remap table from local to unified definitions.
//
// # Quick Start
//
//	m, err := perfdefs.New(perfdefs.WithCommunicator(comm))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	if err := m.Begin(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	name, _ := m.DefineString("main")
//	file, _ := m.DefineString("main.c")
//	sf, _ := m.DefineSourceFile(definitions.SourceFile{Name: file})
//	region, _ := m.DefineRegion(definitions.Region{Name: name, File: sf, BeginLine: 10, EndLine: 20})
//
//	res, err := m.Finalize(ctx)
//	// res.Remap maps local sequence numbers to global IDs.
//
// # Errors
//
// Running out of arena memory and failures of clock synchronization,
// unification or the archive are fatal: a diagnostic is written and the
// abort handler runs, which exits the process unless replaced with
// WithAbortHandler. Invalid handles passed to a Define method are returned
// as ordinary errors.
//
// # Archive
//
// With Config.ArchiveDir or WithArchiveStore the coordinator writes the
// unified definitions, the remap tables and the clock offsets of all
// processes into a blobstore.Store; see package archive.
package perfdefs
