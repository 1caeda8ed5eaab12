// Package codec centralizes the encoding of unification batches, remap tables
// and archive blobs.
//
// The codec is fixed for one run: every rank must use the same one, and archive
// blob names carry the codec name so a reader can select it.
package codec

import (
	"fmt"
	"sort"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = CBOR{}

var builtin = map[string]Codec{}

func register(c Codec) {
	builtin[c.Name()] = c
}

func init() {
	register(JSON{})
	register(GoJSON{})
	register(CBOR{})
}

// ByName returns the built-in codec registered under name.
func ByName(name string) (Codec, bool) {
	c, ok := builtin[name]
	return c, ok
}

// Names lists the built-in codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MustMarshal encodes v with c, or Default if c is nil, and panics on error.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec: %s marshal: %v", c.Name(), err))
	}
	return b
}
