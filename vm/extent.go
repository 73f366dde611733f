package vm

import "fmt"
import "sort"
import "sync"

import "github.com/bnclabs/gozone/api"

// extents manage free page ranges of a zone map, first-fit from the
// lowest address, coalescing neighbours on release.
type extents struct {
	mu     sync.Mutex
	npages int64
	used   int64
	free   []api.Range // sorted by Page, never adjacent
}

func newextents(npages int64) *extents {
	exts := &extents{npages: npages}
	if npages > 0 {
		exts.free = append(exts.free, api.Range{Page: 0, Npages: npages})
	}
	return exts
}

func (exts *extents) allocate(npages int64) (api.Range, error) {
	if npages <= 0 {
		panicerr("allocate %v pages", npages)
	}

	exts.mu.Lock()
	defer exts.mu.Unlock()

	for i, ext := range exts.free {
		if ext.Npages < npages {
			continue
		}
		r := api.Range{Page: ext.Page, Npages: npages}
		if ext.Npages == npages {
			copy(exts.free[i:], exts.free[i+1:])
			exts.free = exts.free[:len(exts.free)-1]
		} else {
			exts.free[i] = api.Range{Page: ext.Page + npages, Npages: ext.Npages - npages}
		}
		exts.used += npages
		return r, nil
	}
	return api.Range{}, ErrorNoSpace
}

func (exts *extents) release(r api.Range) {
	if r.Npages <= 0 || r.Page < 0 || r.End() > exts.npages {
		panicerr("release invalid range %v", r)
	}

	exts.mu.Lock()
	defer exts.mu.Unlock()

	i := sort.Search(len(exts.free), func(i int) bool {
		return exts.free[i].Page >= r.Page
	})
	if i < len(exts.free) && r.End() > exts.free[i].Page {
		panicerr("release %v overlaps free range %v", r, exts.free[i])
	} else if i > 0 && exts.free[i-1].End() > r.Page {
		panicerr("release %v overlaps free range %v", r, exts.free[i-1])
	}

	mergeprev := i > 0 && exts.free[i-1].End() == r.Page
	mergenext := i < len(exts.free) && r.End() == exts.free[i].Page
	switch {
	case mergeprev && mergenext:
		exts.free[i-1].Npages += r.Npages + exts.free[i].Npages
		copy(exts.free[i:], exts.free[i+1:])
		exts.free = exts.free[:len(exts.free)-1]
	case mergeprev:
		exts.free[i-1].Npages += r.Npages
	case mergenext:
		exts.free[i] = api.Range{Page: r.Page, Npages: r.Npages + exts.free[i].Npages}
	default:
		exts.free = append(exts.free, api.Range{})
		copy(exts.free[i+1:], exts.free[i:])
		exts.free[i] = r
	}
	exts.used -= r.Npages
}

func (exts *extents) usedpages() int64 {
	exts.mu.Lock()
	defer exts.mu.Unlock()
	return exts.used
}

func (exts *extents) String() string {
	exts.mu.Lock()
	defer exts.mu.Unlock()
	return fmt.Sprintf("extents{used:%v free:%v}", exts.used, exts.free)
}
