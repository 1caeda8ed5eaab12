// Package conv provides checked integer conversions for sizes, counts and
// wire-format lengths.
package conv
