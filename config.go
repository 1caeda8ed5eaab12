package perfdefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	ini "github.com/lars-t-hansen/ini"

	"github.com/hupe1980/perfdefs/clocksync"
	"github.com/hupe1980/perfdefs/codec"
	"github.com/hupe1980/perfdefs/internal/arena"
	"github.com/hupe1980/perfdefs/internal/compress"
)

// Config holds the measurement settings.
type Config struct {
	// TotalMemory bounds the definition arenas of a process. On the
	// coordinator the local and the unified arena share it.
	TotalMemory int64
	// PageSize is the arena page size.
	PageSize int
	// AnonymousPages backs arena pages with anonymous memory mappings
	// instead of the Go heap.
	AnonymousPages bool

	// Codec names the wire and archive codec: "cbor", "json" or "go-json".
	Codec string
	// Compression names the wire and archive compression: "none", "lz4" or "zstd".
	Compression string
	// TransferLimitBytesPerSec throttles unification sends. 0 is unlimited.
	TransferLimitBytesPerSec int64
	// PingPongs is the number of clock synchronization round trips per worker.
	PingPongs int

	// ArchiveDir enables the archive in a local directory. Empty disables it
	// unless a store is passed with WithArchiveStore.
	ArchiveDir string
	// ArchivePrefix is a subdirectory of ArchiveDir for this run.
	ArchivePrefix string
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		TotalMemory: arena.DefaultTotalMemory,
		PageSize:    arena.DefaultPageSize,
		Codec:       codec.Default.Name(),
		Compression: compress.None.String(),
		PingPongs:   clocksync.DefaultPingPongs,
	}
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size %d must be positive", c.PageSize))
	}
	if c.TotalMemory < int64(c.PageSize) {
		errs = append(errs, fmt.Errorf("total memory %d smaller than page size %d", c.TotalMemory, c.PageSize))
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		errs = append(errs, fmt.Errorf("unknown codec %q (want one of %s)", c.Codec, strings.Join(codec.Names(), ", ")))
	}
	if _, err := compress.ParseType(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.TransferLimitBytesPerSec < 0 {
		errs = append(errs, fmt.Errorf("transfer limit %d must not be negative", c.TransferLimitBytesPerSec))
	}
	if c.PingPongs <= 0 {
		errs = append(errs, fmt.Errorf("ping-pongs %d must be positive", c.PingPongs))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("perfdefs: invalid config: %w", err)
	}
	return nil
}

// LoadConfig reads settings from an ini file on top of DefaultConfig.
// Environment variables in values are expanded.
//
//	[memory]
//	total-memory=16000KiB
//	page-size=8KiB
//	anonymous-pages=true
//
//	[unification]
//	codec=cbor
//	compression=zstd
//	transfer-limit=64MiB
//	ping-pongs=10
//
//	[archive]
//	dir=$SCRATCH/traces
//	prefix=run-42
func LoadConfig(r io.Reader) (Config, error) {
	p := ini.NewParser()

	memory := p.AddSection("memory")
	totalMemory := memory.AddString("total-memory")
	pageSize := memory.AddString("page-size")
	anonPages := memory.AddString("anonymous-pages")

	unification := p.AddSection("unification")
	codecName := unification.AddString("codec")
	compression := unification.AddString("compression")
	transferLimit := unification.AddString("transfer-limit")
	pingPongs := unification.AddString("ping-pongs")

	archive := p.AddSection("archive")
	archiveDir := archive.AddString("dir")
	archivePrefix := archive.AddString("prefix")

	store, err := p.Parse(r)
	if err != nil {
		return Config{}, fmt.Errorf("perfdefs: parse config: %w", err)
	}

	cfg := DefaultConfig()
	value := func(f *ini.Field) (string, bool) {
		if !f.Present(store) {
			return "", false
		}
		return strings.TrimSpace(os.ExpandEnv(f.StringVal(store))), true
	}

	var errs []error
	bytesField := func(name string, f *ini.Field, dst *int64) {
		if v, ok := value(f); ok {
			n, err := humanize.ParseBytes(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = int64(n) //nolint:gosec // configuration sizes are far below 2^63
		}
	}

	bytesField("total-memory", totalMemory, &cfg.TotalMemory)
	var ps int64
	bytesField("page-size", pageSize, &ps)
	if ps > 0 {
		cfg.PageSize = int(ps)
	}
	if v, ok := value(anonPages); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("anonymous-pages: %w", err))
		}
		cfg.AnonymousPages = b
	}
	if v, ok := value(codecName); ok {
		cfg.Codec = v
	}
	if v, ok := value(compression); ok {
		cfg.Compression = v
	}
	bytesField("transfer-limit", transferLimit, &cfg.TransferLimitBytesPerSec)
	if v, ok := value(pingPongs); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ping-pongs: %w", err))
		}
		cfg.PingPongs = n
	}
	if v, ok := value(archiveDir); ok {
		cfg.ArchiveDir = v
	}
	if v, ok := value(archivePrefix); ok {
		cfg.ArchivePrefix = v
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("perfdefs: invalid config: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile reads settings from the ini file at path.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return LoadConfig(f)
}
