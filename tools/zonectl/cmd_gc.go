package main

import "os"
import "fmt"
import "flag"
import "unsafe"
import "math/rand/v2"

import "github.com/bnclabs/gozone/lib"
import "github.com/bnclabs/gozone/zone"
import hm "github.com/dustin/go-humanize"

var gcopts struct {
	n     int
	free  int
	level string
	wss   bool
}

func parseGCopts(args []string) {
	f := flag.NewFlagSet("gc", flag.ExitOnError)
	f.IntVar(&gcopts.n, "n", 100000,
		"number of elements to allocate before gc")
	f.IntVar(&gcopts.free, "free", 90,
		"percentage of allocated elements to free before gc")
	f.StringVar(&gcopts.level, "level", "trim",
		"gc level, trim, drain or jetsam")
	f.BoolVar(&gcopts.wss, "wss", false,
		"compute working set before gc")
	f.Parse(args)
}

func dogc(args []string) {
	parseGCopts(args)

	k := makekalloc()
	reg := k.Registry()
	defer reg.Backer().Close()

	rnd := rand.New(rand.NewPCG(1, 2))
	span := options.maxblock - options.minblock + 1
	ptrs := make([]unsafe.Pointer, 0, gcopts.n)
	for i := 0; i < gcopts.n; i++ {
		ptr, err := k.Alloc(options.minblock + rnd.Int64N(span))
		if err != nil {
			fmt.Printf("alloc after %v elements: %v\n", i, err)
			break
		}
		ptrs = append(ptrs, ptr)
	}
	rnd.Shuffle(len(ptrs), func(i, j int) { ptrs[i], ptrs[j] = ptrs[j], ptrs[i] })
	nfree := (len(ptrs) * gcopts.free) / 100
	for _, ptr := range ptrs[:nfree] {
		k.Free(ptr)
	}
	ptrs = ptrs[nfree:]

	_, before, _, _ := k.Info()
	if gcopts.wss {
		reg.ComputeWorkingSetSize()
	}
	switch gcopts.level {
	case "trim":
		reg.GC(zone.Trim)
	case "drain":
		reg.GC(zone.Drain)
	case "jetsam":
		notifier, err := reg.ClaimNotifier(func(largest *zone.Zone) bool {
			fmt.Printf("jetsam: largest zone %v\n", largest.Name())
			return false
		})
		if err != nil {
			fmt.Printf("claim notifier: %v\n", err)
			os.Exit(1)
		}
		notifier.Jetsam()
	default:
		fmt.Printf("invalid gc level %q\n", gcopts.level)
		os.Exit(1)
	}
	_, after, _, _ := k.Info()
	fmsg := "gc %v: heap %v -> %v, %v elements live\n"
	fmt.Printf(fmsg, gcopts.level, hm.Bytes(uint64(before)),
		hm.Bytes(uint64(after)), len(ptrs))
	fmt.Println(lib.Prettystats(reg.Stats()["gc"].(map[string]interface{}), true))

	for _, ptr := range ptrs {
		k.Free(ptr)
	}
	reg.Validate()
}
