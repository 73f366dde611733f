// Package api define types and interfaces shared between the zone
// allocator and its collaborators: the page-backing layer below it and
// the size-class dispatch above it.
package api

import "unsafe"

// ZoneID identifies a zone in the registry. Ids are stable indices and
// never reused.
type ZoneID uint32

// Range of pages in the zone map, `Page` is the page number relative
// to the map's base address.
type Range struct {
	Page   int64
	Npages int64
}

// End return the page number one past the last page in range.
func (r Range) End() int64 {
	return r.Page + r.Npages
}

// PageBacker is the virtual memory layer consumed by zones. A backer
// manages a contiguous map of virtual address space, hands out page
// ranges from it and commits or decommits physical backing for them.
type PageBacker interface {
	// Pagesize in bytes, a power of 2.
	Pagesize() int64

	// Base address of the map. Element pointers are derived from it
	// by pointer arithmetic, never through uintptr round trips.
	Base() unsafe.Pointer

	// Npages is the capacity of the map in pages.
	Npages() int64

	// Used return number of pages reserved out of the map.
	Used() int64

	// Allocate reserve `npages` of contiguous virtual address space,
	// without backing it. Return ErrorNoSpace like error when the map
	// is exhausted.
	Allocate(npages int64) (Range, error)

	// Release address range back to the map, range must not be
	// committed.
	Release(r Range)

	// Commit physical pages for the range, after a successful commit
	// the range is readable and writable.
	Commit(r Range) error

	// Decommit physical pages for the range, content is lost and any
	// access to the range is illegal until the next Commit.
	Decommit(r Range)

	// Close the map and unmap everything.
	Close() error
}

// SizeClassMapper route byte-array allocations to zones.
type SizeClassMapper interface {
	// ZoneFor return the zone serving allocations of `size` bytes.
	ZoneFor(size int64) (ZoneID, bool)
}

// Mallocer interface for byte-array allocation over size-classed
// zones.
type Mallocer interface {
	// Slabs allocatable slab of sizes.
	Slabs() (sizes []int64)

	// Alloc allocate a chunk of `n` bytes. Allocated memory is always
	// 64-bit aligned.
	Alloc(n int64) (unsafe.Pointer, error)

	// Slabsize return the size of the chunk's slab size.
	Slabsize(ptr unsafe.Pointer) int64

	// Free chunk.
	Free(ptr unsafe.Pointer)

	// Info of memory accounting.
	Info() (capacity, heap, alloc, overhead int64)

	// Utilization map of slab-size and its utilization
	Utilization() ([]int, []float64)
}
