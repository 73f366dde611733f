package zone

// Config policy for a zone, fixed at creation.
type Config struct {
	// Percpu zones hand out one slot per cpu for every element,
	// use PercpuSlot() to address a cpu's slot.
	Percpu bool
	// Permanent zones never free their elements.
	Permanent bool
	// Collectable zones give their empty chunks back to page backer
	// on garbage collection.
	Collectable bool
	// Exhaustible zones never wait for a concurrent grow to finish
	// and never enable caching automatically.
	Exhaustible bool
	// Expandable zones grow on demand. Otherwise zone is limited to
	// InitialElems.
	Expandable bool
	// Destructible zones can be destroyed once all elements are freed.
	Destructible bool
	// Caching enable per-cpu caching at creation.
	Caching bool
	// NoCaching never enable per-cpu caching.
	NoCaching bool
	// Sequestered zones keep the virtual address range of reclaimed
	// chunks, so that no other zone can reuse those addresses.
	Sequestered bool
	// ForeignAllowed zones accept memory from outside the zone map,
	// refer Zone.Cram().
	ForeignAllowed bool
	// ReadOnly zones, implies Sequestered and NoCaching.
	ReadOnly bool

	// ReserveElems number of free elements garbage collection shall
	// never reclaim.
	ReserveElems int64
	// MaxElems maximum number of elements, rounded up to chunks.
	// Zero is unlimited. Enforced only for Exhaustible zones, other
	// expandable zones lift the limit once reached.
	MaxElems int64
	// InitialElems number of elements to populate at creation.
	InitialElems int64
	// ChunkPages override number of pages per chunk.
	ChunkPages int64
}

// DefaultConfig for a general purpose zone, expandable and collectable.
func DefaultConfig() Config {
	return Config{Collectable: true, Expandable: true}
}

// Zflags for allocation.
type Zflags uint32

const (
	// Zzero zero fill element.
	Zzero Zflags = 1 << iota
	// Znowait never wait for a concurrent grow, return
	// ErrZoneExpanding instead.
	Znowait
	// Znofail panic instead of returning an error.
	Znofail
)

// GCLevel for garbage collection.
type GCLevel int

const (
	// Trim zones to their working set.
	Trim GCLevel = iota + 1
	// Drain zones to their reserve.
	Drain
	// Jetsam ask to kill a consumer of the largest zone, then trim
	// or drain. Available only through Notifier.
	Jetsam
)

func (level GCLevel) String() string {
	switch level {
	case Trim:
		return "trim"
	case Drain:
		return "drain"
	case Jetsam:
		return "jetsam"
	}
	return "unknown"
}
