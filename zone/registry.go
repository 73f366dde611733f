package zone

import "fmt"
import "sync"
import "sort"
import "unsafe"
import "sync/atomic"

import "github.com/bnclabs/gozone/api"
import "github.com/bnclabs/gozone/vm"
import s "github.com/bnclabs/gosettings"

// Registry of zones sharing a zone map. Zones are appended, never
// removed, and their ids are never reused.
type Registry struct {
	backer   api.PageBacker
	pagesize int64
	base     uintptr
	npages   int64
	table    *metatable
	foreign  foreignmap
	setts    s.Settings

	// settings
	maxzones      int64
	ncpus         int64
	magsize       int64
	depotmax      int64
	chunkmaxpages int64
	wssperiod     int64
	autothreshold int64
	batchsize     int64
	autogcratio   int64
	autogcthresh  int64
	minfree       int64
	lowwm         int64

	mu     sync.Mutex // serialize Create and Destroy
	zones  []atomic.Pointer[Zone]
	nzones atomic.Int64
	names  sync.Map // name -> *Zone

	gcmu      sync.Mutex // serialize garbage collection
	notifier  atomic.Pointer[Notifier]
	collector *collector
	gcstats   gcstats
}

// NewRegistry of zones over page backer, refer Defaultsettings() for
// recognised settings.
func NewRegistry(backer api.PageBacker, setts s.Settings) *Registry {
	setts = Defaultsettings().Mixin(setts)
	reg := &Registry{
		backer:   backer,
		pagesize: backer.Pagesize(),
		base:     uintptr(backer.Base()),
		npages:   backer.Npages(),
		setts:    setts,
	}
	reg.readsettings(setts)
	reg.table = newmetatable(reg.npages)
	reg.foreign.init(reg.npages, reg.pagesize)
	reg.zones = make([]atomic.Pointer[Zone], reg.maxzones)
	reg.gcstats.init()
	infof("zone: registry with %v pages of %v bytes", reg.npages, reg.pagesize)
	return reg
}

func (reg *Registry) readsettings(setts s.Settings) {
	reg.maxzones = setts.Int64("zones.max")
	reg.ncpus = setts.Int64("cpus")
	reg.magsize = setts.Int64("magazine.size")
	reg.depotmax = setts.Int64("depot.max")
	reg.chunkmaxpages = setts.Int64("chunk.maxpages")
	reg.wssperiod = setts.Int64("wss.period")
	reg.autothreshold = setts.Int64("cache.autothreshold")
	reg.batchsize = setts.Int64("gc.batchsize")
	reg.autogcratio = setts.Int64("autogc.ratio")
	reg.autogcthresh = setts.Int64("autogc.threshold")
	reg.minfree = setts.Int64("lowmem.minfree")
	reg.lowwm = setts.Int64("lowmem.lowwm")

	switch {
	case reg.maxzones <= 0:
		panicerr("invalid zones.max %v", reg.maxzones)
	case reg.ncpus <= 0:
		panicerr("invalid cpus %v", reg.ncpus)
	case reg.magsize <= 0:
		panicerr("invalid magazine.size %v", reg.magsize)
	case reg.depotmax < 0:
		panicerr("invalid depot.max %v", reg.depotmax)
	case reg.chunkmaxpages <= 0:
		panicerr("invalid chunk.maxpages %v", reg.chunkmaxpages)
	case reg.wssperiod <= 0:
		panicerr("invalid wss.period %v", reg.wssperiod)
	case reg.batchsize <= 0:
		panicerr("invalid gc.batchsize %v", reg.batchsize)
	}
}

var globalreg struct {
	once sync.Once
	reg  *Registry
}

// Global registry, created on first call with Defaultsettings() over
// the default page backer.
func Global() *Registry {
	globalreg.once.Do(func() {
		setts := Defaultsettings()
		vmsetts := s.Settings{"zonemap.size": setts.Int64("zonemap.size")}
		backer, err := vm.New(vmsetts)
		if err != nil {
			panicerr("zone: global backer: %v", err)
		}
		globalreg.reg = NewRegistry(backer, setts)
	})
	return globalreg.reg
}

// Create a zone of `elemsize` byte elements. Running out of zone ids,
// or a duplicate name, or an invalid config panics.
func (reg *Registry) Create(name string, elemsize int64, config Config) api.ZoneID {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.names.Load(name); ok {
		panicerr("zone %q: already exists", name)
	}
	n := reg.nzones.Load()
	if n >= reg.maxzones {
		panicerr("zone %q: registry exhausted, %v zones", name, reg.maxzones)
	}

	id := api.ZoneID(n)
	z := newzone(reg, id, name, elemsize, config)
	if err := z.fill(); err != nil {
		panicerr("zone %q: initial %v elements: %v", name, config.InitialElems, err)
	}
	if config.Caching {
		z.enablecaching()
	}
	reg.zones[n].Store(z)
	reg.names.Store(name, z)
	reg.nzones.Store(n + 1)

	fmsg := "zone %q: created id:%v elemsize:%v chunk:%vx%v"
	infof(fmsg, name, id, elemsize, z.chunkpages, z.chunkelems)
	return id
}

// Require zone by id, panics on invalid or destroyed zone.
func (reg *Registry) Require(id api.ZoneID) *Zone {
	if int64(id) >= reg.nzones.Load() {
		panicerr("zone id %v out of range", id)
	}
	z := reg.zones[id].Load()
	if z == nil || z.destroyed.Load() {
		panicerr("zone id %v not active", id)
	}
	return z
}

// Lookup zone by name.
func (reg *Registry) Lookup(name string) (*Zone, bool) {
	if val, ok := reg.names.Load(name); ok {
		return val.(*Zone), true
	}
	return nil, false
}

// Zones return all active zones, ordered by id.
func (reg *Registry) Zones() []*Zone {
	n := reg.nzones.Load()
	zones := make([]*Zone, 0, n)
	for i := int64(0); i < n; i++ {
		if z := reg.zones[i].Load(); z != nil && !z.destroyed.Load() {
			zones = append(zones, z)
		}
	}
	return zones
}

// Destroy zone, all its chunks are given back to page backer and its
// id is retired. Only destructible zones, without reserve and foreign
// memory, and with no allocated elements can be destroyed.
func (reg *Registry) Destroy(id api.ZoneID) {
	z := reg.Require(id)
	switch {
	case !z.config.Destructible:
		panicerr("zone %q: not destructible", z.name)
	case z.config.ForeignAllowed:
		panicerr("zone %q: destroying zone with foreign memory", z.name)
	case z.elemsrsv > 0:
		panicerr("zone %q: destroying zone with reserve", z.name)
	}

	reg.gcmu.Lock()
	defer reg.gcmu.Unlock()
	reg.mu.Lock()
	defer reg.mu.Unlock()

	z.pullback()
	z.mu.Lock()
	for mag := z.depot.withdraw(); mag != nil; mag = z.depot.withdraw() {
		z.foldmagazine(mag)
		z.putmag(mag)
	}
	if allocated := z.elemsavail - z.elemsfree; allocated > 0 {
		z.mu.Unlock()
		panicerr("zone %q: destroying zone with %v allocated elements", z.name, allocated)
	}
	z.destroyed.Store(true)
	for ch := z.qfirst(qempty); ch != nil; ch = z.qfirst(qempty) {
		z.reclaimchunk(ch)
	}
	for ch := z.qfirst(qva); ch != nil; ch = z.qfirst(qva) {
		z.dequeue(ch)
		z.vacur -= ch.npages
		reg.table.set(ch.page, ch.npages, nil)
		reg.backer.Release(api.Range{Page: ch.page, Npages: ch.npages})
	}
	z.mu.Unlock()

	reg.names.Delete(z.name)
	infof("zone %q: destroyed", z.name)
}

// Backer return the page backer of this registry.
func (reg *Registry) Backer() api.PageBacker {
	return reg.backer
}

// Settings return registry settings.
func (reg *Registry) Settings() s.Settings {
	return reg.setts
}

// ZoneFor picks the smallest zone whose element size can hold `size`
// bytes, among non percpu zones. For production use kalloc's
// size-class mapper.
func (reg *Registry) ZoneFor(size int64) (api.ZoneID, bool) {
	zones := reg.Zones()
	sort.SliceStable(zones, func(i, j int) bool {
		return zones[i].elemsize < zones[j].elemsize
	})
	for _, z := range zones {
		if !z.config.Percpu && z.elemsize >= size {
			return z.id, true
		}
	}
	return 0, false
}

// ZoneOf return the zone owning element `ptr`, false if ptr does not
// belong to any live chunk.
func (reg *Registry) ZoneOf(ptr unsafe.Pointer) (*Zone, bool) {
	ch := reg.lookup(uintptr(ptr))
	if ch == nil || ch.reclaimed.Load() {
		return nil, false
	}
	z := reg.zones[ch.zoneid].Load()
	return z, z != nil
}

func (reg *Registry) zonename(id api.ZoneID) string {
	if int64(id) < reg.nzones.Load() {
		if z := reg.zones[id].Load(); z != nil {
			return z.name
		}
	}
	return fmt.Sprintf("zone(%v)", id)
}

//---- page metadata lookup

func (reg *Registry) inzonemap(addr uintptr) bool {
	return addr >= reg.base && addr < reg.base+uintptr(reg.npages*reg.pagesize)
}

// lookup chunk holding address, nil if address is not from any zone.
func (reg *Registry) lookup(addr uintptr) *chunk {
	if reg.inzonemap(addr) {
		return reg.table.get(int64(addr-reg.base) / reg.pagesize)
	}
	return reg.foreign.lookup(addr)
}

// chunkat return chunk by its first page number.
func (reg *Registry) chunkat(page int64) *chunk {
	if page < reg.npages {
		return reg.table.get(page)
	}
	return reg.foreign.chunkat(page)
}

func (reg *Registry) addforeign(
	base uintptr, npages int64, mk func(page int64) *chunk) int64 {

	return reg.foreign.add(base, npages, mk)
}

// foreignmap of chunks crammed from memory outside zone map. Foreign
// chunks are numbered in a page space past the zone map.
type foreignmap struct {
	mu       sync.RWMutex
	pagesize int64
	nextpage int64
	count    atomic.Int64
	byaddr   map[uintptr]*chunk // page aligned address
	bypage   map[int64]*chunk
}

func (fm *foreignmap) init(npages, pagesize int64) {
	fm.pagesize, fm.nextpage = pagesize, npages
	fm.byaddr = make(map[uintptr]*chunk)
	fm.bypage = make(map[int64]*chunk)
}

func (fm *foreignmap) add(base uintptr, npages int64, mk func(int64) *chunk) int64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for i := int64(0); i < npages; i++ {
		if _, ok := fm.byaddr[base+uintptr(i*fm.pagesize)]; ok {
			panicerr("foreign memory %#x crammed twice", base)
		}
	}
	page := fm.nextpage
	fm.nextpage += npages
	ch := mk(page)
	for i := int64(0); i < npages; i++ {
		fm.byaddr[base+uintptr(i*fm.pagesize)] = ch
	}
	fm.bypage[page] = ch
	fm.count.Add(1)
	return page
}

func (fm *foreignmap) lookup(addr uintptr) *chunk {
	if fm.count.Load() == 0 {
		return nil
	}
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.byaddr[addr&^uintptr(fm.pagesize-1)]
}

func (fm *foreignmap) chunkat(page int64) *chunk {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.bypage[page]
}
