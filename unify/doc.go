// Package unify merges the local definition managers of all ranks into one
// unified manager and gives every rank its remap table.
//
// Every rank exports its definitions as a Batch: one slice per kind in
// sequence order, with references expressed as sequence numbers (Ref) instead
// of handles. The coordinator (rank 0) merges the batches in rank order into the
// unified manager with the regular Define calls, kind by kind in dependency
// order, and records the unified handle and unified sequence number of every
// local definition in that rank's RemapTable. Tables are sent back to their
// ranks, which store the unified handles into their local records.
//
//	res, err := unify.Run(ctx, comm, local)
//	if err != nil {
//		// fatal: the run has no consistent global definitions
//	}
//	id, _ := res.Remap.GlobalID(definitions.KindRegion, seq)
package unify
