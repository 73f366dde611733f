package zone

import "fmt"
import "sync"
import "unsafe"
import "math/rand/v2"
import "sync/atomic"

import "github.com/bnclabs/gozone/api"
import "github.com/bnclabs/gozone/lib"

// Zone pool of fixed size elements.
type Zone struct {
	id         api.ZoneID
	name       string
	config     Config
	reg        *Registry
	backer     api.PageBacker
	elemsize   int64
	stride     int64 // bytes per element, elemsize * cpus for percpu zones
	pagesize   int64
	chunkpages int64
	chunkelems int64
	magsize    int64

	destroyed     atomic.Bool
	caching       atomic.Bool
	caches        []cpucache
	cachedcnt     atomic.Int64
	contentioncur atomic.Int64
	allocfails    atomic.Int64

	mu        sync.Mutex
	cond      *sync.Cond
	expanding bool
	filled    bool
	queues    [nqueues]qhead
	depot     depot
	magpool   []*magazine

	// counters, protected by mu.
	elemsavail    int64
	elemsfree     int64
	elemsfreemin  int64
	elemsfreemax  int64
	elemsfreewss  int64
	elemsrsv      int64
	wiredcur      int64
	wiredmax      int64
	wiredhwm      int64
	vacur         int64
	contentionwma int64
	ngrows        int64
	nreclaims     int64
	ndepotfolds   int64
	ngcs          int64
}

func newzone(
	reg *Registry, id api.ZoneID, name string, elemsize int64,
	config Config) *Zone {

	if elemsize <= 0 {
		panicerr("zone %q: invalid element size %v", name, elemsize)
	} else if !config.Expandable && config.InitialElems <= 0 {
		panicerr("zone %q: non expandable zone needs initial elements", name)
	} else if !config.Expandable && config.Collectable {
		panicerr("zone %q: non expandable zone cannot be collectable", name)
	}
	if config.ReadOnly {
		config.Sequestered, config.NoCaching = true, true
	}
	if config.Permanent {
		config.NoCaching, config.Collectable = true, false
	}

	ncpus := int64(reg.ncpus)
	z := &Zone{
		id:       id,
		name:     name,
		config:   config,
		reg:      reg,
		backer:   reg.backer,
		elemsize: elemsize,
		stride:   elemsize,
		pagesize: reg.pagesize,
		magsize:  reg.magsize,
		caches:   make([]cpucache, ncpus),
		elemsrsv: config.ReserveElems,
	}
	if config.Percpu {
		z.stride = elemsize * ncpus
	}
	z.cond = sync.NewCond(&z.mu)
	z.depot.max = int(reg.depotmax)
	z.chunkpages, z.chunkelems = chunksize(z.stride, z.pagesize, config.ChunkPages, reg.chunkmaxpages)
	if z.chunkelems <= 0 {
		panicerr("zone %q: element size %v larger than chunk", name, z.stride)
	}
	for q := queueid(0); q < nqueues; q++ {
		z.queues[q].next, z.queues[q].prev = pvaqueue(q), pvaqueue(q)
	}
	if config.MaxElems > 0 {
		z.wiredmax = lib.Ceil(config.MaxElems, z.chunkelems) * z.chunkpages
	}
	return z
}

// chunksize pick number of pages per chunk with least wasted bytes,
// unless overridden.
func chunksize(stride, pagesize, override, maxpages int64) (npages, nelems int64) {
	limit := func(n int64) int64 { return min(n, maxchunkelems) }
	if override > 0 {
		return override, limit((override * pagesize) / stride)
	}
	minpages := lib.Ceil(stride, pagesize)
	npages, waste := minpages, int64(-1)
	for n := minpages; n <= max(maxpages, minpages); n++ {
		size := n * pagesize
		w := size - limit(size/stride)*stride
		if waste < 0 || w*npages < waste*n { // compare waste ratio
			npages, waste = n, w
		}
	}
	return npages, limit((npages * pagesize) / stride)
}

const maxchunkelems = int64(1<<16 - 1)

// fill zone with initial elements, called before zone is published.
func (z *Zone) fill() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	for z.elemsavail < z.config.InitialElems {
		if err := z.grow(); err != nil {
			return err
		}
	}
	z.elemsfreemin, z.elemsfreemax = z.elemsfree, z.elemsfree
	z.filled = true
	return nil
}

// ID of zone, stable for the life of registry.
func (z *Zone) ID() api.ZoneID {
	return z.id
}

// Name of zone.
func (z *Zone) Name() string {
	return z.name
}

// Elemsize of elements handed out by zone, for percpu zones this is
// the size of a cpu's slot.
func (z *Zone) Elemsize() int64 {
	return z.elemsize
}

// Config of zone.
func (z *Zone) Config() Config {
	return z.config
}

// Caching return whether per-cpu caching is enabled.
func (z *Zone) Caching() bool {
	return z.caching.Load()
}

// Alloc an element from a randomly picked cpu slot, refer AllocCPU.
func (z *Zone) Alloc(flags Zflags) (unsafe.Pointer, error) {
	return z.AllocCPU(z.randcpu(), flags)
}

// AllocCPU an element using cache slot of `cpu`. Return
// ErrOutOfMemory if zone cannot grow, ErrZoneExpanding if zone is
// growing and caller cannot wait. With Znofail both errors panic.
func (z *Zone) AllocCPU(cpu int, flags Zflags) (unsafe.Pointer, error) {
	z.checkactive()
	c := z.slot(cpu)
	c.allocs.Add(1)

	var ptr unsafe.Pointer
	if z.caching.Load() && c.pin() {
		ptr = z.allocfast(c)
		c.unpin()
	}
	if ptr == nil {
		var err error
		if ptr, err = z.allocslow(flags); err != nil {
			c.allocs.Add(-1)
			z.allocfails.Add(1)
			if flags&Znofail != 0 {
				panicerr("zone %q: alloc: %v", z.name, err)
			}
			return nil, err
		}
	}

	if flags&Zzero != 0 {
		clear(unsafe.Slice((*byte)(ptr), z.stride))
	}
	return ptr, nil
}

// allocslow carve an element from chunks, growing the zone if needed.
// Before failing, elements held by depot and by idle cache slots are
// folded back and carving is retried.
func (z *Zone) allocslow(flags Zflags) (unsafe.Pointer, error) {
	pulled := false
	z.lock()
	for {
		if ptr := z.carve(); ptr != nil {
			z.mu.Unlock()
			return ptr, nil
		}
		if z.expanding {
			if z.config.Exhaustible || flags&Znowait != 0 {
				z.mu.Unlock()
				return nil, ErrZoneExpanding
			}
			z.cond.Wait()
			continue
		}
		err := z.grow()
		if err == nil {
			continue
		} else if z.depot.length() > 0 {
			for mag := z.depot.withdraw(); mag != nil; mag = z.depot.withdraw() {
				z.foldmagazine(mag)
				z.putmag(mag)
			}
			continue
		} else if !pulled && z.caching.Load() {
			pulled = true
			z.mu.Unlock()
			z.pullback()
			z.mu.Lock()
			continue
		}
		z.mu.Unlock()
		return nil, err
	}
}

// Free element to a randomly picked cpu slot, refer FreeCPU.
func (z *Zone) Free(ptr unsafe.Pointer) {
	z.FreeCPU(z.randcpu(), ptr)
}

// FreeCPU element using cache slot of `cpu`. Freeing nil, an element
// of another zone, an address that was never allocated, or an already
// freed element panics.
func (z *Zone) FreeCPU(cpu int, ptr unsafe.Pointer) {
	z.checkactive()
	if z.config.Permanent {
		panicerr("zone %q: free on permanent zone", z.name)
	}
	ch, idx := z.resolve(uintptr(ptr))
	c := z.slot(cpu)
	c.frees.Add(1)

	if z.caching.Load() && c.pin() {
		if !ch.markcached(idx) {
			c.unpin()
			panicerr("zone %q: double free of %p", z.name, ptr)
		}
		z.cachedcnt.Add(1)
		z.freefast(c, ptr)
		c.unpin()
		return
	}

	z.lock()
	if !ch.markfree(idx, false /*fromcache*/) {
		z.mu.Unlock()
		panicerr("zone %q: double free of %p", z.name, ptr)
	}
	z.putback(ch, idx)
	z.mu.Unlock()
}

// PercpuSlot return the address of `cpu`'s slot for element ptr
// allocated from a percpu zone.
func (z *Zone) PercpuSlot(ptr unsafe.Pointer, cpu int) unsafe.Pointer {
	if !z.config.Percpu {
		panicerr("zone %q: not a percpu zone", z.name)
	} else if cpu < 0 || cpu >= len(z.caches) {
		panicerr("zone %q: invalid cpu %v", z.name, cpu)
	}
	return unsafe.Add(ptr, int64(cpu)*z.elemsize)
}

// Cram foreign memory, not from zone map, into zone. Memory must be
// page aligned and a multiple of chunk size, and must stay valid for
// the life of the zone. Crammed chunks are never reclaimed.
func (z *Zone) Cram(mem unsafe.Pointer, size int64) {
	z.checkactive()
	base := uintptr(mem)
	chunksize := z.chunkpages * z.pagesize
	if !z.config.ForeignAllowed {
		panicerr("zone %q: foreign memory not allowed", z.name)
	} else if base%uintptr(z.pagesize) != 0 {
		panicerr("zone %q: foreign memory %#x not page aligned", z.name, base)
	} else if size <= 0 || size%chunksize != 0 {
		panicerr("zone %q: foreign memory size %v not multiple of %v", z.name, size, chunksize)
	} else if z.reg.inzonemap(base) {
		panicerr("zone %q: memory %#x is from zone map", z.name, base)
	}

	for off := int64(0); off < size; off += chunksize {
		z.cramchunk(unsafe.Add(mem, off))
	}
	infof("zone %q: crammed %v bytes of foreign memory", z.name, size)
}

func (z *Zone) cramchunk(base unsafe.Pointer) {
	z.mu.Lock()
	defer z.mu.Unlock()
	page := z.reg.addforeign(uintptr(base), z.chunkpages, func(page int64) *chunk {
		ch := newchunk(z, base, page, z.chunkpages)
		ch.foreign = true
		return ch
	})
	z.publish(z.reg.chunkat(page))
}

// resolve address to its chunk and element index, panics on foreign,
// misaligned or wrong zone addresses.
func (z *Zone) resolve(addr uintptr) (*chunk, int64) {
	ch, idx, err := z.lookupelem(addr)
	if err != nil {
		panic(err)
	}
	return ch, idx
}

func (z *Zone) lookupelem(addr uintptr) (*chunk, int64, error) {
	if addr == 0 {
		return nil, 0, fmt.Errorf("zone %q: nil element", z.name)
	}
	ch := z.reg.lookup(addr)
	if ch == nil {
		return nil, 0, fmt.Errorf("zone %q: foreign address %#x", z.name, addr)
	} else if ch.zoneid != z.id {
		other := z.reg.zonename(ch.zoneid)
		fmsg := "zone %q: address %#x belongs to zone %q"
		return nil, 0, fmt.Errorf(fmsg, z.name, addr, other)
	} else if ch.reclaimed.Load() {
		fmsg := "zone %q: address %#x in reclaimed chunk"
		return nil, 0, fmt.Errorf(fmsg, z.name, addr)
	}
	off := int64(addr - uintptr(ch.base))
	if off%z.stride != 0 || off/z.stride >= z.chunkelems {
		fmsg := "zone %q: address %#x not an element boundary"
		return nil, 0, fmt.Errorf(fmsg, z.name, addr)
	}
	return ch, off / z.stride, nil
}

// lock zone, book-keeping contention if lock is held by another.
func (z *Zone) lock() {
	if !z.mu.TryLock() {
		z.contentioncur.Add(1)
		z.mu.Lock()
	}
}

func (z *Zone) slot(cpu int) *cpucache {
	if cpu < 0 || cpu >= len(z.caches) {
		panicerr("zone %q: invalid cpu %v", z.name, cpu)
	}
	return &z.caches[cpu]
}

func (z *Zone) randcpu() int {
	return rand.IntN(len(z.caches))
}

func (z *Zone) checkactive() {
	if z.destroyed.Load() {
		panicerr("zone %q: destroyed", z.name)
	}
}

func (z *Zone) String() string {
	return fmt.Sprintf("zone{%v:%q elemsize:%v}", z.id, z.name, z.elemsize)
}
