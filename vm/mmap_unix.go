//go:build linux || darwin

package vm

import "fmt"
import "sync"
import "runtime"
import "unsafe"

import "golang.org/x/sys/unix"
import "github.com/bnclabs/gozone/api"
import s "github.com/bnclabs/gosettings"

// Mmap backer reserves its zone map as a single anonymous PROT_NONE
// mapping. Committing a range makes it read-write, decommitting a
// range drops its physical pages and protects it again.
type Mmap struct {
	mu       sync.Mutex
	pagesize int64
	npages   int64
	data     []byte
	exts     *extents
	commits  *commitmap
}

// NewMmap backer, recognises "zonemap.size" and "commit.limit"
// settings.
func NewMmap(setts s.Settings) (*Mmap, error) {
	setts = Defaultsettings().Mixin(setts)
	pagesize := int64(unix.Getpagesize())
	npages := setts.Int64("zonemap.size") / pagesize
	if npages <= 0 {
		panicerr("zonemap.size %v less than a page", setts.Int64("zonemap.size"))
	}

	size := int(npages * pagesize)
	flags := unix.MAP_ANON | unix.MAP_PRIVATE
	data, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, flags)
	if err != nil {
		errorf("vm: mmap %v bytes: %v", size, err)
		return nil, fmt.Errorf("vm: mmap %v bytes: %w", size, err)
	}
	m := &Mmap{
		pagesize: pagesize,
		npages:   npages,
		data:     data,
		exts:     newextents(npages),
		commits:  newcommitmap(npages, setts.Int64("commit.limit")),
	}
	infof("vm: mmap backer %v pages of %v bytes", npages, pagesize)
	return m, nil
}

// Pagesize implement api.PageBacker{} interface.
func (m *Mmap) Pagesize() int64 {
	return m.pagesize
}

// Base implement api.PageBacker{} interface.
func (m *Mmap) Base() unsafe.Pointer {
	return unsafe.Pointer(&m.data[0])
}

// Npages implement api.PageBacker{} interface.
func (m *Mmap) Npages() int64 {
	return m.npages
}

// Used implement api.PageBacker{} interface.
func (m *Mmap) Used() int64 {
	return m.exts.usedpages()
}

// Committed number of pages.
func (m *Mmap) Committed() int64 {
	return m.commits.count()
}

// Allocate implement api.PageBacker{} interface.
func (m *Mmap) Allocate(npages int64) (api.Range, error) {
	m.checkopen()
	return m.exts.allocate(npages)
}

// Release implement api.PageBacker{} interface.
func (m *Mmap) Release(r api.Range) {
	m.checkopen()
	m.exts.release(r)
}

// Commit implement api.PageBacker{} interface.
func (m *Mmap) Commit(r api.Range) error {
	m.checkopen()
	if err := m.commits.commit(r); err != nil {
		return err
	}
	prot := unix.PROT_READ | unix.PROT_WRITE
	if err := unix.Mprotect(m.slice(r), prot); err != nil {
		m.commits.decommit(r)
		errorf("vm: mprotect %v: %v", r, err)
		return fmt.Errorf("vm: commit %v: %w", r, err)
	}
	return nil
}

// Decommit implement api.PageBacker{} interface. Pages read as zero
// after the range is committed again.
func (m *Mmap) Decommit(r api.Range) {
	m.checkopen()
	m.commits.decommit(r)
	b := m.slice(r)
	if runtime.GOOS != "linux" { // MADV_DONTNEED does not zero fill
		clear(b)
	}
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		errorf("vm: madvise %v: %v", r, err)
		clear(b)
	}
	if err := unix.Mprotect(b, unix.PROT_NONE); err != nil {
		panicerr("vm: mprotect %v: %v", r, err)
	}
}

// Close implement api.PageBacker{} interface, unmaps the zone map.
func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return fmt.Errorf("vm: mmap backer already closed")
	}
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("vm: munmap: %w", err)
	}
	m.data = nil
	debugf("vm: mmap backer closed")
	return nil
}

func (m *Mmap) slice(r api.Range) []byte {
	return m.data[r.Page*m.pagesize : r.End()*m.pagesize]
}

func (m *Mmap) checkopen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		panicerr("vm: mmap backer closed")
	}
}
