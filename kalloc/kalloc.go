package kalloc

import "fmt"
import "unsafe"

import "github.com/bnclabs/gozone/api"
import "github.com/bnclabs/gozone/zone"
import s "github.com/bnclabs/gosettings"

// Kalloc dispatch byte-array allocations to size class zones.
type Kalloc struct {
	reg     *zone.Registry
	sizes   []int64
	zones   []*zone.Zone
	classes map[api.ZoneID]int // zone-id -> index into sizes

	// settings
	minblock int64
	maxblock int64
	caching  bool
}

// New create size class zones in registry `reg`, refer
// Defaultsettings() for `setts`.
func New(reg *zone.Registry, setts s.Settings) *Kalloc {
	k := &Kalloc{
		reg:      reg,
		minblock: setts.Int64("minblock"),
		maxblock: setts.Int64("maxblock"),
		caching:  setts.Bool("caching"),
	}
	k.sizes = Blocksizes(k.minblock, k.maxblock)
	k.zones = make([]*zone.Zone, 0, len(k.sizes))
	k.classes = make(map[api.ZoneID]int, len(k.sizes))

	config := zone.DefaultConfig()
	config.Caching = k.caching
	config.Expandable = setts.Bool("expandable")
	config.Collectable = setts.Bool("collectable")
	if !config.Expandable {
		panicerr("kalloc size classes must be expandable")
	}
	for i, size := range k.sizes {
		id := reg.Create(zonename(size), size, config)
		k.zones = append(k.zones, reg.Require(id))
		k.classes[id] = i
	}
	fmsg := "kalloc: %v size classes between %v and %v\n"
	infof(fmsg, len(k.sizes), k.minblock, k.maxblock)
	return k
}

func zonename(size int64) string {
	return fmt.Sprintf("kalloc.%v", size)
}

// Registry of size class zones.
func (k *Kalloc) Registry() *zone.Registry {
	return k.reg
}

// ZoneFor implement api.SizeClassMapper.
func (k *Kalloc) ZoneFor(size int64) (api.ZoneID, bool) {
	if size <= 0 || size > k.maxblock {
		return 0, false
	}
	return k.zones[k.class(size)].ID(), true
}

func (k *Kalloc) class(size int64) int {
	slab := SuitableSize(k.sizes, size)
	for i, sz := range k.sizes {
		if sz == slab {
			return i
		}
	}
	panicerr("kalloc: no class for slab %v", slab)
	return -1
}

//---- api.Mallocer

// Slabs implement api.Mallocer.
func (k *Kalloc) Slabs() []int64 {
	return append([]int64(nil), k.sizes...)
}

// Alloc implement api.Mallocer, `n` must be between 1 and maxblock.
func (k *Kalloc) Alloc(n int64) (unsafe.Pointer, error) {
	if n <= 0 {
		panicerr("kalloc: invalid size %v", n)
	} else if n > k.maxblock {
		panicerr("kalloc: size %v exceeds maxblock %v", n, k.maxblock)
	}
	return k.zones[k.class(n)].Alloc(0)
}

// Slabsize implement api.Mallocer.
func (k *Kalloc) Slabsize(ptr unsafe.Pointer) int64 {
	return k.owner(ptr).Elemsize()
}

// Free implement api.Mallocer.
func (k *Kalloc) Free(ptr unsafe.Pointer) {
	k.owner(ptr).Free(ptr)
}

func (k *Kalloc) owner(ptr unsafe.Pointer) *zone.Zone {
	z, ok := k.reg.ZoneOf(ptr)
	if !ok {
		panicerr("kalloc: %p not allocated by any zone", ptr)
	} else if _, ok := k.classes[z.ID()]; !ok {
		panicerr("kalloc: %p belongs to zone %q", ptr, z.Name())
	}
	return z
}

// Info implement api.Mallocer. Capacity is the size of zone map,
// heap is memory wired by size class zones, alloc is the slab memory
// handed out including elements cached in magazines, and overhead
// is the unusable tail of chunks.
func (k *Kalloc) Info() (capacity, heap, alloc, overhead int64) {
	rstats := k.reg.Stats()
	capacity = rstats["zonemap.pages"].(int64) * rstats["zonemap.pagesz"].(int64)
	for i, z := range k.zones {
		stats := z.Stats()
		wired := stats["wired.bytes"].(int64)
		heap += wired
		alloc += stats["n_allocated"].(int64) * k.sizes[i]
		overhead += wired - stats["n_elemsavail"].(int64)*k.sizes[i]
	}
	return
}

// Utilization implement api.Mallocer, return slab sizes and the
// percentage of their zone's elements in use.
func (k *Kalloc) Utilization() ([]int, []float64) {
	ss, zs := make([]int, 0, len(k.sizes)), make([]float64, 0, len(k.sizes))
	for i, z := range k.zones {
		stats := z.Stats()
		avail, inuse := stats["n_elemsavail"].(int64), stats["n_inuse"].(int64)
		utilz := float64(0)
		if avail > 0 {
			utilz = (float64(inuse) / float64(avail)) * 100
		}
		ss, zs = append(ss, int(k.sizes[i])), append(zs, utilz)
	}
	return ss, zs
}
