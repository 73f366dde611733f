package vm

import "testing"
import "unsafe"

import "github.com/bnclabs/gozone/api"
import s "github.com/bnclabs/gosettings"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestHeapBacker(t *testing.T) {
	setts := s.Settings{"zonemap.size": int64(64 * 4096), "pagesize": int64(4096)}
	heap := NewHeap(setts)
	defer heap.Close()

	assert.Equal(t, int64(4096), heap.Pagesize())
	assert.Equal(t, int64(64), heap.Npages())
	assert.Equal(t, uintptr(0), uintptr(heap.Base())%4096)

	r, err := heap.Allocate(4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), heap.Used())
	require.NoError(t, heap.Commit(r))
	assert.Equal(t, int64(4), heap.Committed())
	assert.Panics(t, func() { heap.Commit(r) })

	addr := unsafe.Add(heap.Base(), r.Page*heap.Pagesize())
	mem := unsafe.Slice((*byte)(addr), 4*4096)
	for i := range mem {
		mem[i] = 0xab
	}
	heap.Decommit(r)
	assert.Equal(t, int64(0), heap.Committed())
	for i := range mem {
		if mem[i] != 0 {
			t.Fatalf("expected %v, got %v at %v", 0, mem[i], i)
		}
	}
	assert.Panics(t, func() { heap.Decommit(r) })

	heap.Release(r)
	assert.Equal(t, int64(0), heap.Used())
}

func TestHeapCommitLimit(t *testing.T) {
	setts := s.Settings{
		"zonemap.size": int64(16 * 4096),
		"pagesize":     int64(4096),
		"commit.limit": int64(4),
	}
	heap := NewHeap(setts)
	defer heap.Close()

	r1, err := heap.Allocate(3)
	require.NoError(t, err)
	r2, err := heap.Allocate(3)
	require.NoError(t, err)
	require.NoError(t, heap.Commit(r1))
	assert.Equal(t, ErrorCommitLimit, heap.Commit(r2))
	assert.Equal(t, int64(3), heap.commits.recount())
	heap.Decommit(r1)
	require.NoError(t, heap.Commit(r2))
}

func TestHeapClose(t *testing.T) {
	heap := NewHeap(s.Settings{"zonemap.size": int64(4 * 4096)})
	require.NoError(t, heap.Close())
	assert.Error(t, heap.Close())
	assert.Panics(t, func() { heap.Allocate(1) })
	assert.Panics(t, func() { heap.Release(api.Range{Page: 0, Npages: 1}) })
}

func TestNewBacker(t *testing.T) {
	backer, err := New(s.Settings{"backer": "heap", "zonemap.size": int64(1 << 20)})
	require.NoError(t, err)
	assert.IsType(t, &Heap{}, backer)
	require.NoError(t, backer.Close())

	_, err = New(s.Settings{"backer": "disk"})
	assert.Error(t, err)

	assert.Panics(t, func() {
		NewHeap(s.Settings{"pagesize": int64(1000), "zonemap.size": int64(1 << 20)})
	})
}

func TestSysmem(t *testing.T) {
	total, _, free := Sysmem()
	if total == 0 {
		t.Skip("system memory not available")
	}
	assert.LessOrEqual(t, free, total)
}
