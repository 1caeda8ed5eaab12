// Package arena provides the page-based memory manager behind definition managers.
//
// # Movable Handles
//
// Allocations are addressed by a Handle, a 32-bit (page, offset) pair, never by a
// raw pointer. The page table may grow while handles are outstanding; a handle
// stays valid for the lifetime of the arena. Handle 0 is Invalid.
//
// # Page Managers
//
// The Arena owns the pages and the page table. Allocation happens through a
// PageManager, a bump cursor that draws pages from the arena on demand. A page
// manager is not safe for concurrent use; definition managers keep one page
// manager per definition kind and guard it with that kind's lock, which is what
// makes Rollback of the most recent allocation well defined.
//
// # Concurrency Model
//
// Page acquisition (Arena.newPage) and Deref are safe for concurrent use.
// Free must not run concurrently with anything else.
//
// # Backing Memory
//
// Pages come from a PageSource: HeapPages (aligned Go byte slices) or AnonPages
// (anonymous mmap, outside the garbage collector). Records stored in pages must
// not contain Go pointers.
package arena
