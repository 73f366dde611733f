package zone

import "unsafe"
import "sync/atomic"

import "golang.org/x/sys/cpu"

// cpucache slot, one per cpu. A slot is owned by whoever pins it, for
// the duration of a cache operation.
type cpucache struct {
	_        cpu.CacheLinePad
	busy     atomic.Int32
	current  *magazine
	previous *magazine

	allocs atomic.Int64
	frees  atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
	_      cpu.CacheLinePad
}

// pin slot for exclusive use, return false if slot is pinned by
// someone else. Caller must unpin a pinned slot.
func (c *cpucache) pin() bool {
	return c.busy.CompareAndSwap(0, 1)
}

func (c *cpucache) unpin() {
	c.busy.Store(0)
}

// allocfast pop an element from pinned slot, refilling from depot if
// both magazines are empty. Return nil on cache miss.
func (z *Zone) allocfast(c *cpucache) unsafe.Pointer {
	if c.current.empty() {
		if c.previous.empty() {
			z.lock()
			mag := z.depot.withdraw()
			if mag != nil {
				z.putmag(c.current)
				c.current = mag
			}
			z.mu.Unlock()
			if mag == nil {
				c.misses.Add(1)
				return nil
			}
		} else {
			c.current, c.previous = c.previous, c.current
		}
	}

	addr := c.current.pop()
	ch, idx := z.resolve(uintptr(addr))
	if !ch.uncache(idx) {
		c.unpin()
		panicerr("zone %q: cached element %p corrupted", z.name, addr)
	}
	z.cachedcnt.Add(-1)
	c.hits.Add(1)
	return addr
}

// freefast push an element, already marked cached, into pinned slot.
// When both magazines are full previous magazine is deposited into
// depot.
func (z *Zone) freefast(c *cpucache, addr unsafe.Pointer) {
	if c.current.full() {
		if c.previous.full() {
			z.lock()
			full := c.previous
			c.previous = c.current
			c.current = z.getmag()
			z.deposit(full)
			z.mu.Unlock()
		} else {
			c.current, c.previous = c.previous, c.current
		}
	}
	c.current.push(addr)
}

// enablecaching for zone, cache slots get a pair of empty magazines.
func (z *Zone) enablecaching() {
	if z.caching.Load() || z.config.NoCaching {
		return
	}
	z.mu.Lock()
	if !z.caching.Load() {
		for i := range z.caches {
			z.caches[i].current = z.getmag()
			z.caches[i].previous = z.getmag()
		}
		z.caching.Store(true)
		infof("zone %q: caching enabled for %v cpus", z.name, len(z.caches))
	}
	z.mu.Unlock()
}

// pullback elements held by cache slots into chunks, busy slots are
// skipped. Zone lock must not be held. Return number of elements.
func (z *Zone) pullback() (n int64) {
	if !z.caching.Load() {
		return 0
	}
	for i := range z.caches {
		c := &z.caches[i]
		if !c.pin() {
			continue
		}
		z.mu.Lock()
		n += z.foldmagazine(c.current)
		n += z.foldmagazine(c.previous)
		z.mu.Unlock()
		c.unpin()
	}
	return n
}
