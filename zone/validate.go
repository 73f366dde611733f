package zone

// Validate zone's counters and chunk queues, panics on violation.
// Zone must be quiescent.
func (z *Zone) Validate() {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.elemsfree < 0 || z.elemsfree > z.elemsavail {
		panicerr("zone %q: elemsfree %v out of [0,%v]", z.name, z.elemsfree, z.elemsavail)
	} else if z.elemsavail%z.chunkelems != 0 {
		panicerr("zone %q: elemsavail %v not multiple of %v", z.name, z.elemsavail, z.chunkelems)
	} else if z.wiredmax > 0 && z.wiredcur > z.wiredmax {
		panicerr("zone %q: wiredcur %v > wiredmax %v", z.name, z.wiredcur, z.wiredmax)
	} else if z.wiredcur > z.wiredhwm {
		panicerr("zone %q: wiredcur %v > wiredhwm %v", z.name, z.wiredcur, z.wiredhwm)
	} else if int64(z.depot.length()) > int64(z.depot.max) {
		panicerr("zone %q: depot %v > max %v", z.name, z.depot.length(), z.depot.max)
	}

	var avail, free, wired, va, inuse, cached int64
	for q := queueid(0); q < nqueues; q++ {
		count, prev := int64(0), pvaqueue(q)
		for p := z.queues[q].next; p.ispage(); {
			ch := z.chunkat(p)
			if ch.queue != q {
				panicerr("zone %q: chunk %v tagged %v in %v", z.name, ch.page, ch.queue, q)
			} else if ch.prev != prev {
				panicerr("zone %q: chunk %v prev %v, expected %v", z.name, ch.page, ch.prev, prev)
			}
			if q == qva {
				va += ch.npages
			} else {
				z.validatechunk(ch)
				if occ := z.occupancy(ch); occ != q {
					panicerr("zone %q: chunk %v in %v, expected %v", z.name, ch.page, q, occ)
				}
				avail += z.chunkelems
				free += int64(len(ch.freelist))
				if !ch.foreign {
					wired += ch.npages
				}
				n, m := ch.countbits()
				inuse, cached = inuse+n, cached+m
			}
			count++
			prev, p = p, ch.next
		}
		if z.queues[q].next.isnull() || z.queues[q].prev != prev {
			panicerr("zone %q: queue %v tail %v, expected %v", z.name, q, z.queues[q].prev, prev)
		} else if count != z.queues[q].count {
			panicerr("zone %q: queue %v count %v, expected %v", z.name, q, z.queues[q].count, count)
		}
	}

	switch {
	case avail != z.elemsavail:
		panicerr("zone %q: elemsavail %v, chunks hold %v", z.name, z.elemsavail, avail)
	case free != z.elemsfree:
		panicerr("zone %q: elemsfree %v, chunks hold %v", z.name, z.elemsfree, free)
	case wired != z.wiredcur:
		panicerr("zone %q: wiredcur %v, chunks hold %v", z.name, z.wiredcur, wired)
	case va != z.vacur:
		panicerr("zone %q: vacur %v, va queue holds %v", z.name, z.vacur, va)
	case cached != z.cachedcnt.Load():
		panicerr("zone %q: cached %v, chunks mark %v", z.name, z.cachedcnt.Load(), cached)
	case inuse+cached != avail-free:
		panicerr("zone %q: allocated %v, chunks mark %v", z.name, avail-free, inuse+cached)
	}
}

func (z *Zone) validatechunk(ch *chunk) {
	if got := z.reg.chunkat(ch.page); got != ch {
		panicerr("zone %q: chunk %v not in page table", z.name, ch.page)
	} else if ch.zoneid != z.id {
		panicerr("zone %q: chunk %v owned by %v", z.name, ch.page, ch.zoneid)
	}
	if ch.allocated+int64(len(ch.freelist)) != z.chunkelems {
		fmsg := "zone %q: chunk %v allocated %v + free %v != %v"
		panicerr(fmsg, z.name, ch.page, ch.allocated, len(ch.freelist), z.chunkelems)
	}
	seen := make(map[uint16]bool, len(ch.freelist))
	for _, idx := range ch.freelist {
		if seen[idx] {
			panicerr("zone %q: chunk %v element %v free twice", z.name, ch.page, idx)
		} else if !ch.isfree(int64(idx)) {
			panicerr("zone %q: chunk %v element %v free and in use", z.name, ch.page, idx)
		}
		seen[idx] = true
	}
}

// Validate all active zones in registry.
func (reg *Registry) Validate() {
	for _, z := range reg.Zones() {
		z.Validate()
	}
	if wired := reg.wiredpages(); wired > reg.npages {
		panicerr("zone: wired pages %v > zone map %v", wired, reg.npages)
	}
}
