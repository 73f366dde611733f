package zone

import "unsafe"
import "sync/atomic"

import "github.com/bnclabs/gozone/api"
import "github.com/bnclabs/gozone/lib"

// chunk metadata, one per chunk, shared by all its pages.
type chunk struct {
	zoneid  api.ZoneID
	base    unsafe.Pointer
	page    int64 // first page, in zone map or foreign page space
	npages  int64
	foreign bool

	// reclaimed is set while chunk's pages are given back to the
	// backer, read without zone lock when resolving addresses.
	reclaimed atomic.Bool

	// following fields are protected by zone's lock.
	prev, next pva
	queue      queueid
	allocated  int64
	freelist   []uint16 // LIFO of free element indexes

	// element state, one bit per element, for corruption checks.
	inuse  []atomic.Uint32
	cached []atomic.Uint32
}

func newchunk(z *Zone, base unsafe.Pointer, page, npages int64) *chunk {
	nwords := (z.chunkelems + 31) / 32
	ch := &chunk{
		zoneid:   z.id,
		base:     base,
		page:     page,
		npages:   npages,
		queue:    qempty,
		freelist: make([]uint16, 0, z.chunkelems),
		inuse:    make([]atomic.Uint32, nwords),
		cached:   make([]atomic.Uint32, nwords),
	}
	ch.resetfree(z.chunkelems)
	return ch
}

func (ch *chunk) resetfree(nelems int64) {
	ch.freelist = ch.freelist[:0]
	for idx := nelems - 1; idx >= 0; idx-- {
		ch.freelist = append(ch.freelist, uint16(idx))
	}
	ch.allocated = 0
}

func (ch *chunk) elemaddr(z *Zone, idx int64) unsafe.Pointer {
	return unsafe.Add(ch.base, idx*z.stride)
}

func bitof(idx int64) (int64, uint32) {
	return idx >> 5, uint32(1) << uint(idx&31)
}

// markalloc free element as in use, return false if element is not
// free.
func (ch *chunk) markalloc(idx int64) bool {
	w, bit := bitof(idx)
	if ch.cached[w].Load()&bit != 0 {
		return false
	}
	return ch.inuse[w].Or(bit)&bit == 0
}

// markcached in use element as cached, return false if element was
// not in use.
func (ch *chunk) markcached(idx int64) bool {
	w, bit := bitof(idx)
	if ch.inuse[w].And(^bit)&bit == 0 {
		return false
	}
	ch.cached[w].Or(bit)
	return true
}

// uncache cached element as in use, return false if element was not
// cached.
func (ch *chunk) uncache(idx int64) bool {
	w, bit := bitof(idx)
	if ch.cached[w].And(^bit)&bit == 0 {
		return false
	}
	return ch.inuse[w].Or(bit)&bit == 0
}

// markfree in use or cached element as free, return false if element
// was in neither state.
func (ch *chunk) markfree(idx int64, fromcache bool) bool {
	w, bit := bitof(idx)
	if fromcache {
		return ch.cached[w].And(^bit)&bit != 0
	}
	return ch.inuse[w].And(^bit)&bit != 0
}

func (ch *chunk) isfree(idx int64) bool {
	w, bit := bitof(idx)
	return (ch.inuse[w].Load()|ch.cached[w].Load())&bit == 0
}

func (ch *chunk) countbits() (inuse, cached int64) {
	for i := range ch.inuse {
		inuse += int64(lib.Bit32(ch.inuse[i].Load()).Ones())
		cached += int64(lib.Bit32(ch.cached[i].Load()).Ones())
	}
	return inuse, cached
}

//---- chunk queues, zone lock must be held.

func (z *Zone) chunkat(p pva) *chunk {
	ch := z.reg.chunkat(p.page())
	if ch == nil || ch.zoneid != z.id {
		panicerr("zone %q: corrupted queue link %v", z.name, p)
	}
	return ch
}

func (z *Zone) setnext(p, next pva) {
	if p.isqueue() {
		z.queues[p.queue()].next = next
		return
	}
	z.chunkat(p).next = next
}

func (z *Zone) setprev(p, prev pva) {
	if p.isqueue() {
		z.queues[p.queue()].prev = prev
		return
	}
	z.chunkat(p).prev = prev
}

func (z *Zone) enqueue(q queueid, ch *chunk) {
	if !ch.prev.isnull() || !ch.next.isnull() {
		panicerr("zone %q: chunk %v already queued in %v", z.name, ch.page, ch.queue)
	}
	self, head := pvapage(ch.page), pvaqueue(q)
	first := z.queues[q].next
	ch.next, ch.prev = first, head
	z.setprev(first, self)
	z.queues[q].next = self
	z.queues[q].count++
	ch.queue = q
}

func (z *Zone) dequeue(ch *chunk) {
	if ch.prev.isnull() || ch.next.isnull() {
		panicerr("zone %q: chunk %v not queued", z.name, ch.page)
	}
	z.setnext(ch.prev, ch.next)
	z.setprev(ch.next, ch.prev)
	ch.prev, ch.next = pvanull, pvanull
	z.queues[ch.queue].count--
}

func (z *Zone) requeue(ch *chunk, q queueid) {
	if ch.queue != q {
		z.dequeue(ch)
		z.enqueue(q, ch)
	}
}

func (z *Zone) qfirst(q queueid) *chunk {
	if p := z.queues[q].next; p.ispage() {
		return z.chunkat(p)
	}
	return nil
}

func (z *Zone) qforeach(q queueid, fn func(*chunk) bool) {
	for p := z.queues[q].next; p.ispage(); {
		ch := z.chunkat(p)
		next := ch.next
		if !fn(ch) {
			return
		}
		p = next
	}
}

// occupancy queue for a chunk, decided by its allocated count.
func (z *Zone) occupancy(ch *chunk) queueid {
	switch ch.allocated {
	case 0:
		return qempty
	case z.chunkelems:
		return qfull
	}
	return qpartial
}

//---- element carving, zone lock must be held.

// carve an element from chunks, partial chunks are preferred over
// empty chunks. Return nil if there are no free elements.
func (z *Zone) carve() unsafe.Pointer {
	ch := z.qfirst(qpartial)
	if ch == nil {
		if ch = z.qfirst(qempty); ch == nil {
			return nil
		}
	}
	n := len(ch.freelist)
	if n == 0 {
		panicerr("zone %q: chunk %v in %v has no free elements", z.name, ch.page, ch.queue)
	}
	idx := int64(ch.freelist[n-1])
	ch.freelist = ch.freelist[:n-1]
	if !ch.markalloc(idx) {
		panicerr("zone %q: element %v of chunk %v allocated twice", z.name, idx, ch.page)
	}
	ch.allocated++
	z.addfree(-1)
	z.requeue(ch, z.occupancy(ch))
	return ch.elemaddr(z, idx)
}

// putback an element into its chunk, element state must already be
// marked free.
func (z *Zone) putback(ch *chunk, idx int64) {
	if int64(len(ch.freelist)) >= z.chunkelems || ch.allocated <= 0 {
		panicerr("zone %q: chunk %v free count corrupted", z.name, ch.page)
	}
	ch.freelist = append(ch.freelist, uint16(idx))
	ch.allocated--
	z.addfree(1)
	z.requeue(ch, z.occupancy(ch))
}

func (z *Zone) addfree(delta int64) {
	z.elemsfree += delta
	if z.elemsfree < z.elemsfreemin {
		z.elemsfreemin = z.elemsfree
	}
	if z.elemsfree > z.elemsfreemax {
		z.elemsfreemax = z.elemsfree
	}
}

//---- grow and reclaim.

// grow zone by one chunk. Called with zone lock held, lock is dropped
// while pages are obtained from the backer.
func (z *Zone) grow() error {
	if z.wiredmax > 0 && z.wiredcur+z.chunkpages > z.wiredmax {
		if z.config.Exhaustible || !z.config.Expandable {
			verbosef("zone %q: reached max %v pages", z.name, z.wiredmax)
			return ErrOutOfMemory
		}
		// only exhaustible zones are held to their max.
		warnf("zone %q: exceeded max %v pages, lifting limit", z.name, z.wiredmax)
		z.wiredmax = 0
	}
	if z.filled && !z.config.Expandable {
		return ErrOutOfMemory
	}

	z.expanding = true

	var r api.Range
	var err error

	ch := z.qfirst(qva)
	if ch != nil {
		z.dequeue(ch)
		z.vacur -= ch.npages
		r = api.Range{Page: ch.page, Npages: ch.npages}
	}

	z.mu.Unlock()

	if ch == nil {
		r, err = z.backer.Allocate(z.chunkpages)
	}
	if err == nil {
		if err = z.backer.Commit(r); err != nil && ch == nil {
			z.backer.Release(r)
		}
	}

	z.mu.Lock()

	if err != nil {
		if ch != nil {
			z.enqueue(qva, ch)
			z.vacur += ch.npages
		}
		z.expanding = false
		z.cond.Broadcast()
		warnf("zone %q: grow by %v pages: %v", z.name, z.chunkpages, err)
		return ErrOutOfMemory
	}

	if ch == nil {
		base := unsafe.Add(z.backer.Base(), r.Page*z.pagesize)
		ch = newchunk(z, base, r.Page, r.Npages)
		z.reg.table.set(r.Page, r.Npages, ch)
	} else {
		ch.resetfree(z.chunkelems)
	}
	z.publish(ch)
	z.ngrows++

	z.expanding = false
	z.cond.Broadcast()
	return nil
}

// publish a chunk, with all its elements free, to the empty queue.
func (z *Zone) publish(ch *chunk) {
	ch.queue = qempty
	ch.reclaimed.Store(false)
	z.enqueue(qempty, ch)
	if !ch.foreign {
		z.wiredcur += ch.npages
		if z.wiredcur > z.wiredhwm {
			z.wiredhwm = z.wiredcur
		}
	}
	z.elemsavail += z.chunkelems
	z.addfree(z.chunkelems)
}

// reclaimable return the first chunk in empty queue that can be
// given back to the backer.
func (z *Zone) reclaimable() (ch *chunk) {
	z.qforeach(qempty, func(c *chunk) bool {
		if c.foreign {
			return true
		}
		ch = c
		return false
	})
	return ch
}

// reclaimchunk give an empty chunk back to page backer. Called with
// zone lock held, lock is dropped while pages are decommitted.
func (z *Zone) reclaimchunk(ch *chunk) {
	if ch.queue != qempty || ch.allocated != 0 || ch.foreign {
		panicerr("zone %q: reclaim non empty chunk %v", z.name, ch.page)
	}
	if int64(len(ch.freelist)) != z.chunkelems {
		panicerr("zone %q: chunk %v free count corrupted", z.name, ch.page)
	}

	z.dequeue(ch)
	z.elemsavail -= z.chunkelems
	z.elemsfree -= z.chunkelems
	z.elemsfreemin = max(z.elemsfreemin-z.chunkelems, 0)
	z.elemsfreemax = max(z.elemsfreemax-z.chunkelems, 0)
	z.wiredcur -= ch.npages
	z.nreclaims++

	sequester := z.config.Sequestered && !z.destroyed.Load()
	r := api.Range{Page: ch.page, Npages: ch.npages}
	ch.reclaimed.Store(true)
	if sequester {
		ch.queue = qva
	} else {
		z.reg.table.set(r.Page, r.Npages, nil)
	}

	z.mu.Unlock()

	z.backer.Decommit(r)
	if !sequester {
		z.backer.Release(r)
	}

	z.mu.Lock()

	if sequester {
		z.enqueue(qva, ch)
		z.vacur += ch.npages
	}
}
