// Package definitions implements the definition manager: hash-consed storage of
// everything a measurement refers to (strings, source files, regions, parameters,
// properties, system-tree nodes, location groups, locations, metrics and call
// paths).
//
// # Records and Handles
//
// Each definition is a fixed-layout, pointer-free record in an arena page and is
// addressed by a Handle. A record carries an intrusive list link preserving
// creation order, a hash-chain link, its hash value, its per-kind sequence number
// and, after unification, the handle of its unified counterpart.
//
// # Interning
//
// Define* calls build a tentative record, look for an equal record in the kind's
// hash table and either roll the tentative record back and return the existing
// handle, or append it to the kind's list. Properties merge their value into the
// existing record instead (ALL: logical AND, ANY: logical OR).
//
// # Concurrency
//
// Every kind has its own lock and its own arena page manager. Define holds the
// kind's lock from allocation to commit or rollback. Reads of immutable fields
// need no lock.
//
//	m, _ := definitions.New(definitions.Local)
//	name, _ := m.DefineString("main")
//	fileName, _ := m.DefineString("main.c")
//	file, _ := m.DefineSourceFile(definitions.SourceFile{Name: fileName})
//	region, _ := m.DefineRegion(definitions.Region{Name: name, CanonicalName: name, File: file})
package definitions
