package definitions

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hupe1980/perfdefs/internal/arena"
)

// Role distinguishes the per-process manager from the run-wide unified one.
type Role uint8

const (
	// Local is the manager each process defines into during measurement.
	Local Role = iota
	// Unified holds the merged definitions of all processes.
	Unified
)

func (r Role) String() string {
	if r == Unified {
		return "unified"
	}
	return "local"
}

// Observer is notified after every Define call.
type Observer interface {
	RecordDefine(kind Kind, created bool)
}

type kindState struct {
	mu      sync.Mutex
	pm      *arena.PageManager
	head    Handle
	tail    Handle
	buckets []Handle
	mask    uint64
	count   uint32
}

// Manager owns the definitions of one process (Local) or of the whole run (Unified).
type Manager struct {
	role      Role
	arena     *arena.Arena
	ownsArena bool
	kinds     [numKinds]kindState
	logger    *slog.Logger
	observer  Observer

	freeOnce sync.Once
	freeErr  error
}

type options struct {
	arena      *arena.Arena
	arenaOpts  []arena.Option
	logger     *slog.Logger
	observer   Observer
	tableScale uint
}

// Option configures a Manager.
type Option func(*options)

// WithArena makes the manager allocate from a caller-owned arena. Free does not
// release it.
func WithArena(a *arena.Arena) Option {
	return func(o *options) {
		o.arena = a
	}
}

// WithArenaOptions configures the arena the manager creates for itself.
func WithArenaOptions(opts ...arena.Option) Option {
	return func(o *options) {
		o.arenaOpts = append(o.arenaOpts, opts...)
	}
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver sets the define observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithHashTableScale grows every kind's bucket array by 2^scale.
// The unified manager of a large run benefits from bigger tables.
func WithHashTableScale(scale uint) Option {
	return func(o *options) {
		o.tableScale = scale
	}
}

// New creates an empty manager.
func New(role Role, optFns ...Option) (*Manager, error) {
	o := options{}
	for _, fn := range optFns {
		fn(&o)
	}

	m := &Manager{
		role:     role,
		arena:    o.arena,
		logger:   o.logger,
		observer: o.observer,
	}

	if m.arena == nil {
		a, err := arena.New(o.arenaOpts...)
		if err != nil {
			return nil, err
		}
		m.arena = a
		m.ownsArena = true
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for _, k := range Kinds {
		ks := &m.kinds[k]
		size := uint64(1) << (k.hashTableBits() + o.tableScale)
		ks.pm = m.arena.NewPageManager()
		ks.buckets = make([]Handle, size)
		ks.mask = size - 1
	}

	return m, nil
}

// Role returns the manager's role.
func (m *Manager) Role() Role {
	return m.role
}

// Arena returns the arena backing the manager.
func (m *Manager) Arena() *arena.Arena {
	return m.arena
}

// Stats returns the arena statistics.
func (m *Manager) Stats() arena.Stats {
	return m.arena.Stats()
}

// Count returns the number of definitions of kind k.
func (m *Manager) Count(k Kind) int {
	if !k.Valid() {
		return 0
	}
	ks := &m.kinds[k]
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return int(ks.count)
}

// Counts returns the number of definitions per kind.
func (m *Manager) Counts() map[Kind]int {
	out := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = m.Count(k)
	}
	return out
}

// Free releases the manager's arena if it owns it. Handles become invalid.
func (m *Manager) Free() error {
	m.freeOnce.Do(func() {
		if m.ownsArena {
			m.freeErr = m.arena.Free()
		}
		m.logger.Debug("definition manager freed", "role", m.role.String())
	})
	return m.freeErr
}

func (m *Manager) deref(h Handle) ([]byte, error) {
	b, err := m.arena.Deref(h)
	if err != nil {
		if errors.Is(err, arena.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("%w: %#x", ErrInvalidHandle, uint32(h))
	}
	if !fits(b) {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidHandle, uint32(h))
	}
	return b, nil
}

// lookup dereferences h and checks its kind.
func (m *Manager) lookup(h Handle, want Kind) ([]byte, error) {
	b, err := m.deref(h)
	if err != nil {
		return nil, err
	}
	if got := headerOf(b).kind; got != want {
		return nil, &KindMismatchError{Handle: h, Want: want, Got: got}
	}
	return b, nil
}

// ref validates a reference attribute and returns the hash value it contributes.
// Optional references may be Invalid.
func (m *Manager) ref(h Handle, want Kind, optional bool) (uint64, error) {
	if h == Invalid && optional {
		return 0, nil
	}
	b, err := m.lookup(h, want)
	if err != nil {
		return 0, err
	}
	return headerOf(b).hash, nil
}

// Kind returns the kind of the definition h references.
func (m *Manager) Kind(h Handle) (Kind, error) {
	b, err := m.deref(h)
	if err != nil {
		return 0, err
	}
	return headerOf(b).kind, nil
}

// SequenceNumber returns the creation index of h within its kind.
func (m *Manager) SequenceNumber(h Handle) (uint32, error) {
	b, err := m.deref(h)
	if err != nil {
		return 0, err
	}
	return headerOf(b).seq, nil
}

// HashValue returns the stored hash of h.
func (m *Manager) HashValue(h Handle) (uint64, error) {
	b, err := m.deref(h)
	if err != nil {
		return 0, err
	}
	return headerOf(b).hash, nil
}

// Unified returns the unified counterpart of h, Invalid before unification.
func (m *Manager) Unified(h Handle) (Handle, error) {
	b, err := m.deref(h)
	if err != nil {
		return Invalid, err
	}
	return headerOf(b).unified, nil
}

// SetUnified records the unified counterpart of h.
func (m *Manager) SetUnified(h, unified Handle) error {
	b, err := m.deref(h)
	if err != nil {
		return err
	}
	headerOf(b).unified = unified
	return nil
}

// ApplyRemap stores unified[seq] into the record of kind k with sequence number
// seq. The table must cover every record of the kind.
func (m *Manager) ApplyRemap(k Kind, unified []Handle) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	if n := m.Count(k); len(unified) != n {
		return fmt.Errorf("definitions: remap for %s has %d entries, manager has %d", k, len(unified), n)
	}
	return m.ForEach(k, func(h Handle) error {
		b, err := m.deref(h)
		if err != nil {
			return err
		}
		hd := headerOf(b)
		hd.unified = unified[hd.seq]
		return nil
	})
}

// ForEach calls fn for every definition of kind k in creation order. Definitions
// created while iterating are not visited. fn may call Define.
func (m *Manager) ForEach(k Kind, fn func(Handle) error) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	ks := &m.kinds[k]
	ks.mu.Lock()
	h, n := ks.head, ks.count
	ks.mu.Unlock()

	for i := uint32(0); i < n; i++ {
		b, err := m.deref(h)
		if err != nil {
			return err
		}
		// The last record's link may be written by a concurrent Define.
		next := Invalid
		if i+1 < n {
			next = headerOf(b).next
		}
		if err := fn(h); err != nil {
			return err
		}
		h = next
	}
	return nil
}

// Handles returns the handles of kind k in creation order.
func (m *Manager) Handles(k Kind) ([]Handle, error) {
	out := make([]Handle, 0, m.Count(k))
	err := m.ForEach(k, func(h Handle) error {
		out = append(out, h)
		return nil
	})
	return out, err
}

// define is the interning routine shared by all kinds. It allocates a tentative
// record of size bytes, lets fill populate it, and either commits it or rolls it
// back in favour of an equal existing record. merge, if set, folds the candidate
// into the existing record before the rollback.
func define[T record](
	m *Manager,
	k Kind,
	size int,
	hash uint64,
	fill func(r *T, b []byte),
	equal func(existing, candidate *T) bool,
	merge func(existing, candidate *T),
) (Handle, error) {
	ks := &m.kinds[k]
	ks.mu.Lock()

	h, b, err := ks.pm.Allocate(size)
	if err != nil {
		ks.mu.Unlock()
		return Invalid, fmt.Errorf("%w: %s: %w", ErrOutOfMemory, k, err)
	}
	cand := view[T](b)
	fill(cand, b)
	ch := hdr(cand)
	ch.kind = k
	ch.hash = hash
	ch.unified = Invalid

	bucket := hash & ks.mask
	for cur := ks.buckets[bucket]; cur != Invalid; {
		eb := m.arena.MustDeref(cur)
		eh := headerOf(eb)
		if eh.hash == hash {
			existing := view[T](eb)
			if equal(existing, cand) {
				if merge != nil {
					merge(existing, cand)
				}
				ks.pm.Rollback(h)
				ks.mu.Unlock()
				m.notify(k, false)
				return cur, nil
			}
		}
		cur = eh.hashNext
	}

	ch.seq = ks.count
	ks.count++
	ch.hashNext = ks.buckets[bucket]
	ks.buckets[bucket] = h
	if ks.tail == Invalid {
		ks.head = h
	} else {
		headerOf(m.arena.MustDeref(ks.tail)).next = h
	}
	ks.tail = h
	ks.mu.Unlock()

	m.notify(k, true)
	return h, nil
}

func (m *Manager) notify(k Kind, created bool) {
	if m.observer != nil {
		m.observer.RecordDefine(k, created)
	}
}
