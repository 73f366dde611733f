package zone

import "unsafe"

// magazine of free element addresses, owned by exactly one of a cache
// slot, a depot, a zone's magazine pool or a gc transit list.
type magazine struct {
	count int
	elems []unsafe.Pointer
}

func newmagazine(size int64) *magazine {
	return &magazine{elems: make([]unsafe.Pointer, size)}
}

func (mag *magazine) full() bool {
	return mag.count == len(mag.elems)
}

func (mag *magazine) empty() bool {
	return mag.count == 0
}

func (mag *magazine) push(addr unsafe.Pointer) {
	mag.elems[mag.count] = addr
	mag.count++
}

func (mag *magazine) pop() unsafe.Pointer {
	mag.count--
	addr := mag.elems[mag.count]
	mag.elems[mag.count] = nil
	return addr
}

// getmag an empty magazine from pool, zone lock must be held.
func (z *Zone) getmag() *magazine {
	if n := len(z.magpool); n > 0 {
		mag := z.magpool[n-1]
		z.magpool = z.magpool[:n-1]
		return mag
	}
	return newmagazine(z.magsize)
}

// putmag an empty magazine back to pool, zone lock must be held.
func (z *Zone) putmag(mag *magazine) {
	if !mag.empty() {
		panicerr("zone %q: pooling non empty magazine", z.name)
	}
	z.magpool = append(z.magpool, mag)
}

// foldmagazine give back elements in magazine to their chunks, zone
// lock must be held. Return number of elements folded.
func (z *Zone) foldmagazine(mag *magazine) int64 {
	n := int64(mag.count)
	for !mag.empty() {
		addr := mag.pop()
		ch, idx := z.resolve(uintptr(addr))
		if !ch.markfree(idx, true /*fromcache*/) {
			panicerr("zone %q: element %p in magazine not cached", z.name, addr)
		}
		z.putback(ch, idx)
	}
	z.cachedcnt.Add(-n)
	return n
}
