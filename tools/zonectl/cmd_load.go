package main

import "os"
import "fmt"
import "flag"
import "sync"
import "time"
import "unsafe"
import "runtime"
import "runtime/pprof"
import "math/rand/v2"

import "github.com/bnclabs/gozone/kalloc"
import "github.com/bnclabs/gozone/lib"
import hm "github.com/dustin/go-humanize"

var loadopts struct {
	n       int
	par     int
	hold    int
	minsize int64
	maxsize int64
	stats   int
	autogc  bool
	pprof   string
	mprof   string
}

func parseLoadopts(args []string) {
	f := flag.NewFlagSet("load", flag.ExitOnError)
	f.IntVar(&loadopts.n, "n", 1000000,
		"number of alloc/free operations per load generator")
	f.IntVar(&loadopts.par, "par", runtime.NumCPU(),
		"number of load generators")
	f.IntVar(&loadopts.hold, "hold", 1024,
		"number of live allocations held by each generator")
	f.Int64Var(&loadopts.minsize, "minsize", 1,
		"smallest allocation size")
	f.Int64Var(&loadopts.maxsize, "maxsize", 0,
		"largest allocation size, default maxblock")
	f.IntVar(&loadopts.stats, "stats", 1000,
		"log zone stats for every tick, in ms")
	f.BoolVar(&loadopts.autogc, "autogc", true,
		"run collector during load")
	f.StringVar(&loadopts.pprof, "pprof", "",
		"dump cpu-profile to file")
	f.StringVar(&loadopts.mprof, "mprof", "",
		"dump mem-profile to file")
	f.Parse(args)

	if loadopts.maxsize <= 0 || loadopts.maxsize > options.maxblock {
		loadopts.maxsize = options.maxblock
	}
	if loadopts.minsize <= 0 || loadopts.minsize > loadopts.maxsize {
		loadopts.minsize = 1
	}
}

func doload(args []string) {
	parseLoadopts(args)

	if loadopts.pprof != "" {
		fd, err := os.Create(loadopts.pprof)
		if err != nil {
			fmt.Printf("unable to create %q: %v\n", loadopts.pprof, err)
			os.Exit(1)
		}
		defer fd.Close()
		pprof.StartCPUProfile(fd)
		defer pprof.StopCPUProfile()
	}

	k := makekalloc()
	reg := k.Registry()
	defer reg.Backer().Close()
	if loadopts.autogc {
		reg.Start()
		defer reg.Stop()
	}

	var wg sync.WaitGroup
	latency := lib.NewhistorgramInt64(0, 100000, 100)
	var mu sync.Mutex
	now := time.Now()
	for i := 0; i < loadopts.par; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			h := generate(k, rand.New(rand.NewPCG(seed, seed<<1)))
			mu.Lock()
			latency.Merge(h)
			mu.Unlock()
		}(uint64(i + 1))
	}

	finch := make(chan struct{})
	go func() {
		tick := time.NewTicker(time.Duration(loadopts.stats) * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				reg.Log(true)
			case <-finch:
				return
			}
		}
	}()
	wg.Wait()
	close(finch)

	elapsed := time.Since(now)
	ops := loadopts.n * loadopts.par
	fmt.Printf("took %v for %v alloc/free\n", elapsed, ops)
	fmt.Printf("latency ns %v\n", latency.Logstring())
	printinfo(k)

	if loadopts.mprof != "" {
		fd, err := os.Create(loadopts.mprof)
		if err != nil {
			fmt.Printf("unable to create %q: %v\n", loadopts.mprof, err)
			os.Exit(1)
		}
		defer fd.Close()
		pprof.WriteHeapProfile(fd)
	}
}

// generate random alloc and free, return latency histogram in ns.
func generate(k *kalloc.Kalloc, rnd *rand.Rand) *lib.HistogramInt64 {
	h := lib.NewhistorgramInt64(0, 100000, 100)
	held := make([]unsafe.Pointer, 0, loadopts.hold)
	span := loadopts.maxsize - loadopts.minsize + 1
	for i := 0; i < loadopts.n; i++ {
		start := time.Now()
		if len(held) == loadopts.hold || (len(held) > 0 && rnd.IntN(2) == 0) {
			off := rnd.IntN(len(held))
			k.Free(held[off])
			held[off] = held[len(held)-1]
			held = held[:len(held)-1]
		} else {
			ptr, err := k.Alloc(loadopts.minsize + rnd.Int64N(span))
			if err != nil {
				fmt.Printf("alloc: %v\n", err)
				break
			}
			held = append(held, ptr)
		}
		h.Add(time.Since(start).Nanoseconds())
	}
	for _, ptr := range held {
		k.Free(ptr)
	}
	return h
}

func printinfo(k *kalloc.Kalloc) {
	capacity, heap, alloc, overhead := k.Info()
	fmsg := "capacity %v heap %v alloc %v overhead %v\n"
	fmt.Printf(fmsg, hm.Bytes(uint64(capacity)), hm.Bytes(uint64(heap)),
		hm.Bytes(uint64(alloc)), hm.Bytes(uint64(overhead)))

	sizes, utilz := k.Utilization()
	for i, size := range sizes {
		if utilz[i] > 0 {
			fmt.Printf("  size %8v utilz %6.2f%%\n", size, utilz[i])
		}
	}
	k.Registry().Log(true)
}
