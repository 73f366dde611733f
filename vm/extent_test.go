package vm

import "testing"

import "github.com/bnclabs/gozone/api"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestExtentsFirstFit(t *testing.T) {
	exts := newextents(16)

	r1, err := exts.allocate(4)
	require.NoError(t, err)
	r2, err := exts.allocate(4)
	require.NoError(t, err)
	r3, err := exts.allocate(8)
	require.NoError(t, err)
	assert.Equal(t, api.Range{Page: 0, Npages: 4}, r1)
	assert.Equal(t, api.Range{Page: 4, Npages: 4}, r2)
	assert.Equal(t, api.Range{Page: 8, Npages: 8}, r3)
	assert.Equal(t, int64(16), exts.usedpages())

	_, err = exts.allocate(1)
	assert.Equal(t, ErrorNoSpace, err)

	exts.release(r1)
	r4, err := exts.allocate(2)
	require.NoError(t, err)
	assert.Equal(t, api.Range{Page: 0, Npages: 2}, r4)
	_, err = exts.allocate(4)
	assert.Equal(t, ErrorNoSpace, err)
}

func TestExtentsCoalesce(t *testing.T) {
	exts := newextents(12)
	rs := make([]api.Range, 0, 4)
	for i := 0; i < 4; i++ {
		r, err := exts.allocate(3)
		require.NoError(t, err)
		rs = append(rs, r)
	}
	exts.release(rs[0])
	exts.release(rs[2])
	assert.Len(t, exts.free, 2)
	exts.release(rs[1])
	assert.Len(t, exts.free, 1)
	exts.release(rs[3])
	require.Len(t, exts.free, 1)
	assert.Equal(t, api.Range{Page: 0, Npages: 12}, exts.free[0])
	assert.Equal(t, int64(0), exts.usedpages())

	r, err := exts.allocate(12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), r.Npages)
}

func TestExtentsDoubleRelease(t *testing.T) {
	exts := newextents(8)
	r, err := exts.allocate(2)
	require.NoError(t, err)
	exts.release(r)
	assert.Panics(t, func() { exts.release(r) })
	assert.Panics(t, func() { exts.release(api.Range{Page: 7, Npages: 2}) })
	assert.Panics(t, func() { exts.allocate(0) })
}
