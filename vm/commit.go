package vm

import "sync"
import "math/bits"

import "github.com/bnclabs/gozone/api"

// commitmap book-keeps committed pages of a zone map, one bit per page.
type commitmap struct {
	mu        sync.Mutex
	bitmap    []uint64
	committed int64
	limit     int64
}

func newcommitmap(npages, limit int64) *commitmap {
	return &commitmap{bitmap: make([]uint64, (npages+63)/64), limit: limit}
}

func (cm *commitmap) commit(r api.Range) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.limit > 0 && cm.committed+r.Npages > cm.limit {
		return ErrorCommitLimit
	}
	for page := r.Page; page < r.End(); page++ {
		if cm.isset(page) {
			panicerr("page %v already committed", page)
		}
	}
	for page := r.Page; page < r.End(); page++ {
		cm.bitmap[page/64] |= 1 << uint(page%64)
	}
	cm.committed += r.Npages
	return nil
}

func (cm *commitmap) decommit(r api.Range) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for page := r.Page; page < r.End(); page++ {
		if !cm.isset(page) {
			panicerr("page %v not committed", page)
		}
		cm.bitmap[page/64] &^= 1 << uint(page%64)
	}
	cm.committed -= r.Npages
}

func (cm *commitmap) iscommitted(r api.Range) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for page := r.Page; page < r.End(); page++ {
		if !cm.isset(page) {
			return false
		}
	}
	return true
}

func (cm *commitmap) count() int64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.committed
}

// recount committed pages from the bitmap, used for validation.
func (cm *commitmap) recount() (n int64) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, word := range cm.bitmap {
		n += int64(bits.OnesCount64(word))
	}
	return n
}

func (cm *commitmap) isset(page int64) bool {
	return cm.bitmap[page/64]&(1<<uint(page%64)) != 0
}
