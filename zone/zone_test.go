package zone

import "sync"
import "testing"
import "unsafe"
import "math/rand/v2"

import "github.com/bnclabs/gozone/vm"
import s "github.com/bnclabs/gosettings"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func testbacker(t testing.TB, setts s.Settings) *vm.Heap {
	vmsetts := s.Settings{"zonemap.size": int64(4 * 1024 * 1024), "pagesize": int64(4096)}
	backer := vm.NewHeap(vmsetts.Mixin(setts))
	t.Cleanup(func() { backer.Close() })
	return backer
}

func testregistry(t testing.TB, setts s.Settings) *Registry {
	regsetts := s.Settings{
		"cpus":           int64(4),
		"magazine.size":  int64(8),
		"depot.max":      int64(4),
		"chunk.maxpages": int64(8),
	}
	return NewRegistry(testbacker(t, nil), regsetts.Mixin(setts))
}

// zone of 256 byte elements, 16 elements to a chunk.
func testzone(t testing.TB, reg *Registry, name string, config Config) *Zone {
	if config.ChunkPages == 0 {
		config.ChunkPages = 1
	}
	return reg.Require(reg.Create(name, 256, config))
}

func TestChunkScenario(t *testing.T) {
	reg := testregistry(t, nil)
	z := testzone(t, reg, "scenario", DefaultConfig())
	require.Equal(t, int64(16), z.chunkelems)

	ptrs := make([]unsafe.Pointer, 0, 17)
	for i := 0; i < 16; i++ {
		ptr, err := z.AllocCPU(0, 0)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	stats := z.Stats()
	assert.Equal(t, int64(1), stats["queue.full"])
	assert.Equal(t, int64(0), stats["queue.partial"])
	assert.Equal(t, int64(0), stats["queue.empty"])
	assert.Equal(t, int64(0), stats["n_elemsfree"])
	assert.Equal(t, int64(16), stats["n_elemsavail"])
	assert.Equal(t, int64(1), stats["n_grows"])

	ptr, err := z.AllocCPU(0, 0)
	require.NoError(t, err)
	ptrs = append(ptrs, ptr)
	stats = z.Stats()
	assert.Equal(t, int64(2), stats["n_grows"])
	assert.Equal(t, int64(1), stats["queue.full"])
	assert.Equal(t, int64(1), stats["queue.partial"])
	assert.Equal(t, int64(32), stats["n_elemsavail"])
	assert.Equal(t, int64(15), stats["n_elemsfree"])
	z.Validate()

	// elements within a chunk are laid out in order.
	for i := 1; i < 16; i++ {
		assert.Equal(t, uintptr(ptrs[i-1])+256, uintptr(ptrs[i]))
	}
	for _, ptr := range ptrs {
		z.FreeCPU(0, ptr)
	}
	assert.Equal(t, int64(32), z.Stats()["n_elemsfree"])
	assert.Equal(t, int64(2), z.Stats()["queue.empty"])
	z.Validate()
}

func TestRoundTrip(t *testing.T) {
	reg := testregistry(t, nil)
	z := testzone(t, reg, "roundtrip", DefaultConfig())

	// prime the zone so elemsfree is non zero before the sequence.
	ptr, err := z.Alloc(0)
	require.NoError(t, err)
	z.Free(ptr)
	before := z.Stats()["n_elemsfree"].(int64)

	rnd := rand.New(rand.NewPCG(10, 20))
	ptrs := make([]unsafe.Pointer, 0, 1000)
	for i := 0; i < 1000; i++ {
		ptr, err := z.Alloc(Zzero)
		require.NoError(t, err)
		*(*uint64)(ptr) = uint64(i)
		ptrs = append(ptrs, ptr)
	}
	for i, ptr := range ptrs {
		require.Equal(t, uint64(i), *(*uint64)(ptr))
	}
	rnd.Shuffle(len(ptrs), func(i, j int) { ptrs[i], ptrs[j] = ptrs[j], ptrs[i] })
	for _, ptr := range ptrs {
		z.Free(ptr)
	}
	stats := z.Stats()
	avail := stats["n_elemsavail"].(int64)
	assert.Equal(t, avail, stats["n_elemsfree"].(int64))
	assert.GreaterOrEqual(t, stats["n_elemsfree"].(int64), before)
	assert.Equal(t, avail/16, stats["queue.empty"])
	assert.Equal(t, int64(0), stats["queue.partial"])
	assert.Equal(t, int64(0), stats["queue.full"])
	z.Validate()
}

func TestNoDoubleAllocation(t *testing.T) {
	reg := testregistry(t, nil)
	config := DefaultConfig()
	config.Caching = true
	z := testzone(t, reg, "nodouble", config)

	rnd := rand.New(rand.NewPCG(1, 2))
	live := map[uintptr]bool{}
	ptrs := []unsafe.Pointer{}
	for i := 0; i < 20000; i++ {
		cpu := rnd.IntN(4)
		if len(ptrs) == 0 || rnd.IntN(3) > 0 {
			ptr, err := z.AllocCPU(cpu, 0)
			require.NoError(t, err)
			if live[uintptr(ptr)] {
				t.Fatalf("element %v allocated twice", ptr)
			}
			live[uintptr(ptr)] = true
			ptrs = append(ptrs, ptr)
			continue
		}
		n := rnd.IntN(len(ptrs))
		ptr := ptrs[n]
		ptrs[n] = ptrs[len(ptrs)-1]
		ptrs = ptrs[:len(ptrs)-1]
		delete(live, uintptr(ptr))
		z.FreeCPU(cpu, ptr)
	}
	z.Validate()

	stats := z.Stats()
	inuse := stats["n_inuse"].(int64)
	assert.Equal(t, int64(len(ptrs)), inuse)
}

func TestDepotBound(t *testing.T) {
	reg := testregistry(t, s.Settings{"depot.max": int64(4)})
	z := testzone(t, reg, "depot", DefaultConfig())

	ptrs := make([]unsafe.Pointer, 0, 40)
	for i := 0; i < 40; i++ {
		ptr, err := z.AllocCPU(0, 0)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}

	deposit := func(ptrs []unsafe.Pointer) {
		mag := newmagazine(z.magsize)
		for _, ptr := range ptrs {
			ch, idx := z.resolve(uintptr(ptr))
			require.True(t, ch.markcached(idx))
			z.cachedcnt.Add(1)
			mag.push(ptr)
		}
		z.mu.Lock()
		z.deposit(mag)
		z.mu.Unlock()
	}

	for i := 0; i < 4; i++ {
		deposit(ptrs[i*8 : (i+1)*8])
	}
	z.mu.Lock()
	free, depotlen := z.elemsfree, z.depot.length()
	z.mu.Unlock()
	assert.Equal(t, 4, depotlen)
	assert.Equal(t, int64(32), z.cachedcnt.Load())

	deposit(ptrs[32:40])
	z.mu.Lock()
	assert.Equal(t, 4, z.depot.length())
	assert.Equal(t, free+8, z.elemsfree)
	assert.Equal(t, int64(1), z.ndepotfolds)
	z.mu.Unlock()
	assert.Equal(t, int64(32), z.cachedcnt.Load())
	z.Validate()

	// oldest magazine, first 8 elements, went back to chunks.
	for _, ptr := range ptrs[:8] {
		ch, idx := z.resolve(uintptr(ptr))
		assert.True(t, ch.isfree(idx))
	}
	for _, ptr := range ptrs[8:] {
		ch, idx := z.resolve(uintptr(ptr))
		assert.False(t, ch.isfree(idx))
	}
}

func TestCachingDepot(t *testing.T) {
	reg := testregistry(t, s.Settings{"depot.max": int64(2)})
	config := DefaultConfig()
	config.Caching = true
	z := testzone(t, reg, "caching", config)
	require.True(t, z.Caching())

	ptrs := make([]unsafe.Pointer, 0, 100)
	for i := 0; i < 100; i++ {
		ptr, err := z.AllocCPU(0, 0)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	for _, ptr := range ptrs {
		z.FreeCPU(0, ptr)
	}
	stats := z.Stats()
	// current and previous magazines, plus depot bound.
	assert.LessOrEqual(t, stats["n_cached"].(int64), int64(8*2+8*2))
	assert.Equal(t, int64(2), stats["n_depot"])
	assert.Greater(t, stats["n_depotfolds"].(int64), int64(0))
	z.Validate()

	// cache hits after frees.
	ptr, err := z.AllocCPU(0, 0)
	require.NoError(t, err)
	assert.Equal(t, ptrs[len(ptrs)-1], ptr)
	assert.Equal(t, int64(1), z.Stats()["n_hits"])
	z.FreeCPU(0, ptr)

	// drain back everything cached.
	reg.GC(Drain)
	stats = z.Stats()
	assert.Equal(t, int64(0), stats["n_cached"])
	assert.Equal(t, int64(0), stats["n_depot"])
	assert.Equal(t, int64(0), stats["n_wiredcur"])
	z.Validate()
}

func TestBusySlot(t *testing.T) {
	reg := testregistry(t, nil)
	config := DefaultConfig()
	config.Caching = true
	z := testzone(t, reg, "busy", config)

	c := &z.caches[1]
	require.True(t, c.pin())
	ptr, err := z.AllocCPU(1, 0) // slow path
	require.NoError(t, err)
	z.FreeCPU(1, ptr)
	assert.Equal(t, int64(0), z.cachedcnt.Load())
	assert.Equal(t, int64(0), z.pullback())
	c.unpin()

	ptr, err = z.AllocCPU(1, 0)
	require.NoError(t, err)
	z.FreeCPU(1, ptr)
	assert.Equal(t, int64(1), z.cachedcnt.Load())
	assert.Equal(t, int64(1), z.pullback())
	z.Validate()
}

func TestConcurrentConservation(t *testing.T) {
	testconcurrent := func(t *testing.T, caching bool) {
		ncpus, nops := 8, 5000
		reg := testregistry(t, s.Settings{"cpus": int64(ncpus)})
		config := DefaultConfig()
		config.Caching = caching
		z := testzone(t, reg, "concurrent", config)

		// each cpu's sequence depends only on its own seed.
		run := func(cpu int, alloc func() unsafe.Pointer, free func(unsafe.Pointer)) int {
			rnd := rand.New(rand.NewPCG(uint64(cpu), 0xabcd))
			outstanding := []unsafe.Pointer{}
			for i := 0; i < nops; i++ {
				if len(outstanding) == 0 || rnd.IntN(5) < 3 {
					outstanding = append(outstanding, alloc())
					continue
				}
				n := rnd.IntN(len(outstanding))
				free(outstanding[n])
				outstanding[n] = outstanding[len(outstanding)-1]
				outstanding = outstanding[:len(outstanding)-1]
			}
			return len(outstanding)
		}

		reference := 0
		for cpu := 0; cpu < ncpus; cpu++ {
			nop := func() unsafe.Pointer { return nil }
			reference += run(cpu, nop, func(unsafe.Pointer) {})
		}

		var wg sync.WaitGroup
		counts := make([]int, ncpus)
		for cpu := 0; cpu < ncpus; cpu++ {
			wg.Add(1)
			go func(cpu int) {
				defer wg.Done()
				alloc := func() unsafe.Pointer {
					ptr, err := z.AllocCPU(cpu, 0)
					if err != nil {
						panic(err)
					}
					*(*int64)(ptr) = int64(cpu)
					return ptr
				}
				free := func(ptr unsafe.Pointer) {
					if v := *(*int64)(ptr); v != int64(cpu) {
						panic("element shared across cpus")
					}
					z.FreeCPU(cpu, ptr)
				}
				counts[cpu] = run(cpu, alloc, free)
			}(cpu)
		}
		wg.Wait()

		total := 0
		for _, n := range counts {
			total += n
		}
		assert.Equal(t, reference, total)

		z.Validate()
		stats := z.Stats()
		avail, free := stats["n_elemsavail"].(int64), stats["n_elemsfree"].(int64)
		cached := stats["n_cached"].(int64)
		assert.Equal(t, avail-int64(reference)-cached, free)
	}

	t.Run("nocaching", func(t *testing.T) { testconcurrent(t, false) })
	t.Run("caching", func(t *testing.T) { testconcurrent(t, true) })
}

func TestDoubleFree(t *testing.T) {
	testdoublefree := func(t *testing.T, caching bool) {
		reg := testregistry(t, nil)
		config := DefaultConfig()
		config.Caching = caching
		z := testzone(t, reg, "doublefree", config)

		ptr, err := z.AllocCPU(0, 0)
		require.NoError(t, err)
		z.FreeCPU(0, ptr)
		assert.Panics(t, func() { z.FreeCPU(0, ptr) })
		assert.Panics(t, func() { z.FreeCPU(1, ptr) })

		// zone is still usable after the panic.
		ptr, err = z.AllocCPU(0, 0)
		require.NoError(t, err)
		z.FreeCPU(0, ptr)
		z.Validate()
	}

	t.Run("nocaching", func(t *testing.T) { testdoublefree(t, false) })
	t.Run("caching", func(t *testing.T) { testdoublefree(t, true) })
}

func TestInvalidFree(t *testing.T) {
	reg := testregistry(t, nil)
	z1 := testzone(t, reg, "one", DefaultConfig())
	z2 := testzone(t, reg, "two", DefaultConfig())

	ptr, err := z1.Alloc(0)
	require.NoError(t, err)

	local := int64(10)
	assert.Panics(t, func() { z1.Free(nil) })
	assert.Panics(t, func() { z1.Free(unsafe.Pointer(&local)) })
	assert.Panics(t, func() { z2.Free(ptr) })
	assert.Panics(t, func() { z1.Free(unsafe.Add(ptr, 8)) })
	// never allocated element in a live chunk.
	assert.Panics(t, func() { z1.Free(unsafe.Add(ptr, 256*3)) })
	assert.Panics(t, func() { z1.AllocCPU(4, 0) })
	assert.Panics(t, func() { z1.FreeCPU(-1, ptr) })

	z1.Free(ptr)
	z1.Validate()
	z2.Validate()

	// freeing into a reclaimed chunk.
	reg.GC(Drain)
	assert.Panics(t, func() { z1.Free(ptr) })
}

func TestExhaustion(t *testing.T) {
	reg := testregistry(t, nil)
	config := DefaultConfig()
	config.Exhaustible, config.MaxElems = true, 20
	z := testzone(t, reg, "maxelems", config)
	assert.Equal(t, int64(2), z.wiredmax)

	for i := 0; i < 32; i++ {
		_, err := z.Alloc(0)
		require.NoError(t, err)
	}
	_, err := z.Alloc(0)
	assert.Equal(t, ErrOutOfMemory, err)
	assert.Panics(t, func() { z.Alloc(Znofail) })
	assert.Equal(t, int64(2), z.Stats()["n_allocfails"])
	assert.Equal(t, int64(2), z.Stats()["n_wiredmax"])
	z.Validate()

	// expandable zones outgrow their max.
	config.Exhaustible = false
	z = testzone(t, reg, "liftmax", config)
	assert.Equal(t, int64(2), z.wiredmax)
	for i := 0; i < 48; i++ {
		_, err := z.Alloc(0)
		require.NoError(t, err)
	}
	stats := z.Stats()
	assert.Equal(t, int64(0), stats["n_wiredmax"])
	assert.Equal(t, int64(3), stats["n_wiredcur"])
	assert.Equal(t, int64(0), stats["n_allocfails"])
	z.Validate()
}

func TestExhaustionPullsBackCaches(t *testing.T) {
	reg := testregistry(t, nil)
	config := DefaultConfig()
	config.Caching, config.Exhaustible, config.MaxElems = true, true, 16
	z := testzone(t, reg, "pullback", config)
	assert.Equal(t, int64(1), z.wiredmax)

	ptrs := make([]unsafe.Pointer, 0, 16)
	for i := 0; i < 16; i++ {
		ptr, err := z.AllocCPU(0, 0)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	for _, ptr := range ptrs[:3] {
		z.FreeCPU(0, ptr)
	}
	assert.Equal(t, int64(3), z.Stats()["n_cached"])
	assert.Equal(t, int64(0), z.Stats()["n_elemsfree"])

	// cpu 1 has nothing cached, elements idling in cpu 0 are reused.
	_, err := z.AllocCPU(1, 0)
	require.NoError(t, err)
	stats := z.Stats()
	assert.Equal(t, int64(0), stats["n_cached"])
	assert.Equal(t, int64(2), stats["n_elemsfree"])
	assert.Equal(t, int64(1), stats["n_wiredcur"])

	for i := 0; i < 2; i++ {
		_, err := z.AllocCPU(1, 0)
		require.NoError(t, err)
	}
	_, err = z.AllocCPU(1, 0)
	assert.Equal(t, ErrOutOfMemory, err)
	z.Validate()
}

func TestCommitFailure(t *testing.T) {
	backer := testbacker(t, s.Settings{"commit.limit": int64(2)})
	reg := NewRegistry(backer, s.Settings{"cpus": int64(2)})
	z := testzone(t, reg, "commit", DefaultConfig())

	for i := 0; i < 32; i++ {
		_, err := z.Alloc(0)
		require.NoError(t, err)
	}
	_, err := z.Alloc(0)
	assert.Equal(t, ErrOutOfMemory, err)
	assert.Equal(t, int64(2), backer.Used())
	z.Validate()
}

func TestNonExpandable(t *testing.T) {
	reg := testregistry(t, nil)
	config := Config{InitialElems: 20}
	z := testzone(t, reg, "fixed", config)
	assert.Equal(t, int64(32), z.Stats()["n_elemsavail"])
	assert.Equal(t, int64(32), z.Stats()["n_elemsfree"])

	for i := 0; i < 32; i++ {
		_, err := z.Alloc(0)
		require.NoError(t, err)
	}
	_, err := z.Alloc(0)
	assert.Equal(t, ErrOutOfMemory, err)

	assert.Panics(t, func() { reg.Create("bad1", 256, Config{}) })
	assert.Panics(t, func() { reg.Create("bad2", 256, Config{Collectable: true, InitialElems: 1}) })
}

func TestZoneExpanding(t *testing.T) {
	reg := testregistry(t, nil)
	z := testzone(t, reg, "expanding", DefaultConfig())
	config := DefaultConfig()
	config.Exhaustible = true
	ze := testzone(t, reg, "exhaustible", config)

	for _, zz := range []*Zone{z, ze} {
		zz.mu.Lock()
		zz.expanding = true
		zz.mu.Unlock()
	}
	_, err := z.Alloc(Znowait)
	assert.Equal(t, ErrZoneExpanding, err)
	_, err = ze.Alloc(0)
	assert.Equal(t, ErrZoneExpanding, err)

	// waiter proceeds once the expansion finishes.
	donech := make(chan error)
	go func() {
		_, err := z.Alloc(0)
		donech <- err
	}()
	z.mu.Lock()
	z.expanding = false
	z.cond.Broadcast()
	z.mu.Unlock()
	assert.NoError(t, <-donech)
}

func TestZzero(t *testing.T) {
	reg := testregistry(t, nil)
	z := testzone(t, reg, "zzero", DefaultConfig())

	ptr, err := z.AllocCPU(0, 0)
	require.NoError(t, err)
	mem := unsafe.Slice((*byte)(ptr), 256)
	for i := range mem {
		mem[i] = 0xff
	}
	z.FreeCPU(0, ptr)
	ptr, err = z.AllocCPU(0, Zzero)
	require.NoError(t, err)
	mem = unsafe.Slice((*byte)(ptr), 256)
	for i := range mem {
		if mem[i] != 0 {
			t.Fatalf("expected %v, got %v", 0, mem[i])
		}
	}
}

func TestPercpu(t *testing.T) {
	reg := testregistry(t, nil)
	config := DefaultConfig()
	config.Percpu = true
	z := reg.Require(reg.Create("percpu", 64, config))
	assert.Equal(t, int64(256), z.stride)

	ptr, err := z.Alloc(Zzero)
	require.NoError(t, err)
	slots := map[uintptr]bool{}
	for cpu := 0; cpu < 4; cpu++ {
		slot := z.PercpuSlot(ptr, cpu)
		*(*int64)(slot) = int64(cpu)
		slots[uintptr(slot)] = true
	}
	assert.Len(t, slots, 4)
	for cpu := 0; cpu < 4; cpu++ {
		assert.Equal(t, int64(cpu), *(*int64)(z.PercpuSlot(ptr, cpu)))
	}
	assert.Panics(t, func() { z.PercpuSlot(ptr, 4) })
	z.Free(ptr)

	other := testzone(t, reg, "notpercpu", DefaultConfig())
	assert.Panics(t, func() { other.PercpuSlot(ptr, 0) })
}

func TestPermanent(t *testing.T) {
	reg := testregistry(t, nil)
	config := DefaultConfig()
	config.Permanent = true
	z := testzone(t, reg, "permanent", config)
	ptr, err := z.Alloc(0)
	require.NoError(t, err)
	assert.Panics(t, func() { z.Free(ptr) })
	reg.GC(Drain)
	assert.Equal(t, int64(1), z.Stats()["n_wiredcur"])
}

func TestChunksize(t *testing.T) {
	testcases := [][4]int64{
		// stride, pagesize, override, maxpages
		{256, 4096, 0, 8},
		{3000, 4096, 0, 8},
		{5000, 4096, 0, 8},
		{256, 4096, 2, 8},
	}
	refs := [][2]int64{{1, 16}, {3, 4}, {5, 4}, {2, 32}}
	for i, tcase := range testcases {
		npages, nelems := chunksize(tcase[0], tcase[1], tcase[2], tcase[3])
		assert.Equal(t, refs[i], [2]int64{npages, nelems}, "case %v", i)
	}
	npages, nelems := chunksize(8, 1<<20, 0, 1)
	assert.Equal(t, int64(1), npages)
	assert.Equal(t, maxchunkelems, nelems)
}

func TestZonesLookup(t *testing.T) {
	reg := testregistry(t, s.Settings{"zones.max": int64(3)})
	id1 := reg.Create("a", 32, DefaultConfig())
	id2 := reg.Create("b", 128, DefaultConfig())
	assert.Panics(t, func() { reg.Create("a", 64, DefaultConfig()) })
	id3 := reg.Create("c", 64, DefaultConfig())
	assert.Panics(t, func() { reg.Create("d", 64, DefaultConfig()) })

	z, ok := reg.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, id2, z.ID())
	_, ok = reg.Lookup("x")
	assert.False(t, ok)

	names := []string{}
	for _, z := range reg.Zones() {
		names = append(names, z.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	id, ok := reg.ZoneFor(60)
	assert.True(t, ok)
	assert.Equal(t, id3, id)
	id, ok = reg.ZoneFor(10)
	assert.True(t, ok)
	assert.Equal(t, id1, id)
	_, ok = reg.ZoneFor(200)
	assert.False(t, ok)

	assert.Panics(t, func() { reg.Require(10) })
	assert.Panics(t, func() { reg.Create("neg", -1, DefaultConfig()) })
}

func TestDestroy(t *testing.T) {
	reg := testregistry(t, nil)
	backer := reg.Backer()
	config := DefaultConfig()
	config.Destructible = true
	config.Caching = true
	z := testzone(t, reg, "destroy", config)

	ptrs := []unsafe.Pointer{}
	for i := 0; i < 50; i++ {
		ptr, err := z.Alloc(0)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	assert.Panics(t, func() { reg.Destroy(z.ID()) })
	for _, ptr := range ptrs {
		z.Free(ptr)
	}
	reg.Destroy(z.ID())
	assert.Equal(t, int64(0), backer.Used())
	assert.Panics(t, func() { reg.Require(z.ID()) })
	assert.Panics(t, func() { z.Alloc(0) })
	_, ok := reg.Lookup("destroy")
	assert.False(t, ok)
	assert.Len(t, reg.Zones(), 0)

	// ids are never reused.
	id := reg.Create("destroy", 256, DefaultConfig())
	assert.NotEqual(t, z.ID(), id)

	assert.Panics(t, func() { reg.Destroy(id) })
	config.ReserveElems = 10
	idrsv := reg.Create("reserve", 256, config)
	assert.Panics(t, func() { reg.Destroy(idrsv) })
}

func TestDestroySequestered(t *testing.T) {
	reg := testregistry(t, nil)
	backer := reg.Backer()
	config := DefaultConfig()
	config.Destructible, config.Sequestered = true, true
	z := testzone(t, reg, "seqdestroy", config)

	ptr, err := z.Alloc(0)
	require.NoError(t, err)
	z.Free(ptr)
	reg.GC(Drain)
	assert.Equal(t, int64(1), z.Stats()["n_vacur"])
	assert.Equal(t, int64(1), backer.Used())
	reg.Destroy(z.ID())
	assert.Equal(t, int64(0), backer.Used())
}

func BenchmarkAllocFree(b *testing.B) {
	reg := testregistry(b, nil)
	z := testzone(b, reg, "bench", DefaultConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr, _ := z.AllocCPU(0, 0)
		z.FreeCPU(0, ptr)
	}
}

func BenchmarkAllocFreeCaching(b *testing.B) {
	reg := testregistry(b, nil)
	config := DefaultConfig()
	config.Caching = true
	z := testzone(b, reg, "bench", config)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr, _ := z.AllocCPU(0, 0)
		z.FreeCPU(0, ptr)
	}
}

func BenchmarkAllocFreeParallel(b *testing.B) {
	reg := testregistry(b, s.Settings{"cpus": int64(64)})
	config := DefaultConfig()
	config.Caching = true
	z := testzone(b, reg, "bench", config)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ptr, err := z.Alloc(0)
			if err != nil {
				panic(err)
			}
			z.Free(ptr)
		}
	})
}
