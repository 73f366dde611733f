package vm

import "fmt"
import "unsafe"
import "sync/atomic"

import "github.com/bnclabs/gozone/api"
import s "github.com/bnclabs/gosettings"

// Heap backer carves its zone map out of a golang byte-slice. The
// slice stays referenced by the backer, hence by every zone using it,
// until Close.
type Heap struct {
	pagesize int64
	npages   int64
	data     []byte // page aligned view of raw
	raw      []byte
	exts     *extents
	commits  *commitmap
	closed   int32
}

// NewHeap backer, recognises "zonemap.size", "pagesize" and
// "commit.limit" settings.
func NewHeap(setts s.Settings) *Heap {
	setts = Defaultsettings().Mixin(setts)
	pagesize := setts.Int64("pagesize")
	if pagesize <= 0 || (pagesize&(pagesize-1)) != 0 {
		panicerr("pagesize %v must be power of 2", pagesize)
	}
	npages := setts.Int64("zonemap.size") / pagesize
	if npages <= 0 {
		panicerr("zonemap.size %v less than a page", setts.Int64("zonemap.size"))
	}

	heap := &Heap{pagesize: pagesize, npages: npages}
	heap.raw = make([]byte, (npages+1)*pagesize)
	addr := int64(uintptr(unsafe.Pointer(&heap.raw[0])))
	off := (pagesize - (addr % pagesize)) % pagesize
	heap.data = heap.raw[off : off+(npages*pagesize)]
	heap.exts = newextents(npages)
	heap.commits = newcommitmap(npages, setts.Int64("commit.limit"))
	infof("vm: heap backer %v pages of %v bytes", npages, pagesize)
	return heap
}

// Pagesize implement api.PageBacker{} interface.
func (heap *Heap) Pagesize() int64 {
	return heap.pagesize
}

// Base implement api.PageBacker{} interface.
func (heap *Heap) Base() unsafe.Pointer {
	return unsafe.Pointer(&heap.data[0])
}

// Npages implement api.PageBacker{} interface.
func (heap *Heap) Npages() int64 {
	return heap.npages
}

// Used implement api.PageBacker{} interface.
func (heap *Heap) Used() int64 {
	return heap.exts.usedpages()
}

// Committed number of pages.
func (heap *Heap) Committed() int64 {
	return heap.commits.count()
}

// Allocate implement api.PageBacker{} interface.
func (heap *Heap) Allocate(npages int64) (api.Range, error) {
	heap.checkopen()
	return heap.exts.allocate(npages)
}

// Release implement api.PageBacker{} interface. Committed pages in
// the range must be decommitted first.
func (heap *Heap) Release(r api.Range) {
	heap.checkopen()
	heap.exts.release(r)
}

// Commit implement api.PageBacker{} interface.
func (heap *Heap) Commit(r api.Range) error {
	heap.checkopen()
	return heap.commits.commit(r)
}

// Decommit implement api.PageBacker{} interface, range is zero filled.
func (heap *Heap) Decommit(r api.Range) {
	heap.checkopen()
	heap.commits.decommit(r)
	from, till := r.Page*heap.pagesize, r.End()*heap.pagesize
	clear(heap.data[from:till])
}

// Close implement api.PageBacker{} interface.
func (heap *Heap) Close() error {
	if !atomic.CompareAndSwapInt32(&heap.closed, 0, 1) {
		return fmt.Errorf("vm: heap backer already closed")
	}
	heap.data, heap.raw = nil, nil
	debugf("vm: heap backer closed")
	return nil
}

func (heap *Heap) checkopen() {
	if atomic.LoadInt32(&heap.closed) != 0 {
		panicerr("vm: heap backer closed")
	}
}
