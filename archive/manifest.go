package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/perfdefs/clocksync"
)

const (
	// ManifestPrefix is the name prefix of the manifest blob.
	ManifestPrefix = "MANIFEST"
	// CurrentVersion is the version of the archive layout.
	CurrentVersion = 1
)

// Manifest describes a complete archive.
type Manifest struct {
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	Ranks       int             `json:"ranks"`
	Codec       string          `json:"codec"`
	Compression string          `json:"compression"`
	ClockMode   string          `json:"clock_mode"`
	Epoch       clocksync.Epoch `json:"epoch"`
	// Definitions counts the unified definitions per kind name.
	Definitions map[string]int `json:"definitions"`
	Blobs       []BlobInfo     `json:"blobs"`
}

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Blob returns the entry for name.
func (m *Manifest) Blob(name string) (BlobInfo, bool) {
	for _, b := range m.Blobs {
		if b.Name == name {
			return b, true
		}
	}
	return BlobInfo{}, false
}

// TotalSize returns the summed size of all blobs but the manifest.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, b := range m.Blobs {
		n += b.Size
	}
	return n
}

// DefinitionsName returns the name of the unified definitions blob.
func DefinitionsName(codec string) string {
	return "definitions." + codec
}

// RemapName returns the name of the remap table blob of rank.
func RemapName(rank int, codec string) string {
	return fmt.Sprintf("remap/%d.%s", rank, codec)
}

// ClockName returns the name of the clock offsets blob of rank.
func ClockName(rank int, codec string) string {
	return fmt.Sprintf("clock/%d.%s", rank, codec)
}

// UsedName returns the name of the blob holding the global IDs rank refers to.
func UsedName(rank int, codec string) string {
	return fmt.Sprintf("used/%d.%s", rank, codec)
}

// ManifestName returns the name of the manifest blob.
func ManifestName(codec string) string {
	return ManifestPrefix + "." + codec
}

// codecOf extracts the codec name from a manifest blob name.
func codecOf(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, ManifestPrefix+".")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
