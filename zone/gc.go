package zone

import "sort"
import "sync"
import "time"
import "runtime"

import "github.com/bnclabs/gozone/lib"

// percentage of zone map wired beyond which zone map is considered
// nearing exhaustion.
const jetsamlimit = 95

// GC zones in registry. Trim reclaims empty chunks beyond a zone's
// working set, Drain reclaims empty chunks beyond a zone's reserve.
// Sequestered zones are collected first. Jetsam is available only
// through Notifier.Jetsam().
func (reg *Registry) GC(level GCLevel) {
	if level != Trim && level != Drain {
		panicerr("zone: gc level %v not allowed, use notifier", level)
	}
	reg.gcmu.Lock()
	defer reg.gcmu.Unlock()
	reg.gc(level)
}

// gc must be called with gcmu held, return number of pages reclaimed.
func (reg *Registry) gc(level GCLevel) (pages int64) {
	start := time.Now()
	zones := reg.Zones()
	sort.SliceStable(zones, func(i, j int) bool {
		return zones[i].config.Sequestered && !zones[j].config.Sequestered
	})
	for _, z := range zones {
		if z.collectable() {
			pages += z.reclaim(level)
		}
	}
	elapsed := time.Since(start)
	reg.gcstats.record(level, elapsed, pages)
	verbosef("zone: gc %v reclaimed %v pages in %v", level, pages, elapsed)
	return pages
}

func (z *Zone) collectable() bool {
	return z.config.Collectable && !z.config.Permanent && !z.destroyed.Load()
}

// reclaim cached elements and empty chunks from zone, return number
// of pages reclaimed.
func (z *Zone) reclaim(level GCLevel) (pages int64) {
	pulled := z.pullback()

	z.mu.Lock()
	defer z.mu.Unlock()

	// elements folded back from caches are not part of this
	// period's free activity.
	z.elemsfreemin = min(z.elemsfreemin+pulled, z.elemsfree)

	batch := int64(0)
	for mag := z.depot.withdraw(); mag != nil; mag = z.depot.withdraw() {
		n := z.foldmagazine(mag)
		z.putmag(mag)
		z.elemsfreemin = min(z.elemsfreemin+n, z.elemsfree)
		if batch += n; batch >= z.reg.batchsize {
			z.mu.Unlock()
			runtime.Gosched()
			z.mu.Lock()
			batch = 0
		}
	}

	goal := z.elemsrsv
	if level == Trim {
		goal = max(z.elemsrsv, z.elemsfreewss, z.elemsfree-z.elemsfreemin)
		goal += z.chunkelems / 2
	}
	for z.elemsfree-z.chunkelems >= goal {
		ch := z.reclaimable()
		if ch == nil {
			break
		}
		pages += ch.npages
		z.reclaimchunk(ch)
	}
	z.ngcs++
	if pages > 0 {
		debugf("zone %q: %v reclaimed %v pages, goal %v", z.name, level, pages, goal)
	}
	return pages
}

// Largest zone by wired pages, nil if registry has no zones.
func (reg *Registry) Largest() *Zone {
	var largest *Zone
	wired := int64(-1)
	for _, z := range reg.Zones() {
		z.mu.Lock()
		w := z.wiredcur
		z.mu.Unlock()
		if w > wired {
			largest, wired = z, w
		}
	}
	return largest
}

// wiredpages across all zones.
func (reg *Registry) wiredpages() (pages int64) {
	for _, z := range reg.Zones() {
		z.mu.Lock()
		pages += z.wiredcur
		z.mu.Unlock()
	}
	return pages
}

func (reg *Registry) nearingexhaustion() bool {
	return reg.wiredpages()*100 >= reg.npages*jetsamlimit
}

// Notifier of low memory, at most one per registry.
type Notifier struct {
	reg    *Registry
	killfn func(largest *Zone) bool
}

// ClaimNotifier for registry. `killfn` is called with the largest
// zone on Jetsam, and shall return true if it could release memory
// held by the zone's consumers. Return ErrNotifierClaimed if
// notifier is already claimed.
func (reg *Registry) ClaimNotifier(killfn func(largest *Zone) bool) (*Notifier, error) {
	n := &Notifier{reg: reg, killfn: killfn}
	if !reg.notifier.CompareAndSwap(nil, n) {
		return nil, ErrNotifierClaimed
	}
	infof("zone: low memory notifier claimed")
	return n, nil
}

// Jetsam garbage collection. If the consumer of largest zone could be
// killed zones are trimmed, and drained if zone map is still nearing
// exhaustion. Otherwise zones are drained and then trimmed.
func (n *Notifier) Jetsam() {
	reg := n.reg
	reg.gcmu.Lock()
	defer reg.gcmu.Unlock()

	start := time.Now()
	largest := reg.Largest()
	killed := largest != nil && n.killfn != nil && n.killfn(largest)
	if killed {
		reg.gc(Trim)
		if reg.nearingexhaustion() {
			reg.gc(Drain)
		}
	} else {
		reg.gc(Drain)
		reg.gc(Trim)
	}
	reg.gcstats.record(Jetsam, time.Since(start), 0)
	warnf("zone: jetsam largest:%v killed:%v", largest, killed)
}

// gcstats for garbage collection passes.
type gcstats struct {
	mu        sync.Mutex
	trims     int64
	drains    int64
	jetsams   int64
	latency   *lib.HistogramInt64 // microseconds
	reclaimed *lib.AverageInt64   // pages per pass
}

func (st *gcstats) init() {
	st.latency = lib.NewhistorgramInt64(0, 100000, 1000)
	st.reclaimed = &lib.AverageInt64{}
}

func (st *gcstats) record(level GCLevel, elapsed time.Duration, pages int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch level {
	case Trim:
		st.trims++
	case Drain:
		st.drains++
	case Jetsam:
		st.jetsams++
		return
	}
	st.latency.Add(elapsed.Microseconds())
	st.reclaimed.Add(pages)
}

func (st *gcstats) stats() map[string]interface{} {
	st.mu.Lock()
	defer st.mu.Unlock()
	return map[string]interface{}{
		"n_trims":     st.trims,
		"n_drains":    st.drains,
		"n_jetsams":   st.jetsams,
		"h_latency":   st.latency.Fullstats(),
		"a_reclaimed": st.reclaimed.Stats(),
	}
}
