package zone

import "sync"
import "sync/atomic"

const metaleafshift = 9
const metaleafsize = 1 << metaleafshift

type metaleaf [metaleafsize]atomic.Pointer[chunk]

// metatable map page numbers to chunk metadata, two level so that
// leaves are allocated only for parts of the zone map in use. Every
// page of a chunk maps to the same metadata. Lookups are lock free.
type metatable struct {
	mu     sync.Mutex
	npages int64
	leaves []atomic.Pointer[metaleaf]
}

func newmetatable(npages int64) *metatable {
	nleaves := (npages + metaleafsize - 1) / metaleafsize
	return &metatable{npages: npages, leaves: make([]atomic.Pointer[metaleaf], nleaves)}
}

func (mt *metatable) get(page int64) *chunk {
	if page < 0 || page >= mt.npages {
		return nil
	}
	leaf := mt.leaves[page>>metaleafshift].Load()
	if leaf == nil {
		return nil
	}
	return leaf[page&(metaleafsize-1)].Load()
}

// set metadata for npages starting from page, nil ch clears them.
func (mt *metatable) set(page, npages int64, ch *chunk) {
	if page < 0 || page+npages > mt.npages {
		panicerr("metatable pages %v+%v out of range %v", page, npages, mt.npages)
	}
	for p := page; p < page+npages; p++ {
		mt.leaf(p >> metaleafshift)[p&(metaleafsize-1)].Store(ch)
	}
}

func (mt *metatable) leaf(i int64) *metaleaf {
	if leaf := mt.leaves[i].Load(); leaf != nil {
		return leaf
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if leaf := mt.leaves[i].Load(); leaf != nil {
		return leaf
	}
	leaf := new(metaleaf)
	mt.leaves[i].Store(leaf)
	return leaf
}
