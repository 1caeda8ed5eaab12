// Package mem provides heap page allocation for the definition arena.
//
// # Aligned Pages
//
// Pages are plain Go byte slices whose first byte is aligned to a caller-chosen
// power of two, so fixed-layout definition records can be viewed in place.
package mem
