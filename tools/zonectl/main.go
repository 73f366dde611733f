// zonectl exercises zone allocator from command line.
//
//	zonectl load -n 1000000 -par 8 -minsize 32 -maxsize 4096
//	zonectl gc -level drain
//	zonectl sizes
package main

import "os"
import "fmt"
import "flag"

import "github.com/bnclabs/gozone/kalloc"
import "github.com/bnclabs/gozone/vm"
import "github.com/bnclabs/gozone/zone"
import s "github.com/bnclabs/gosettings"
import hm "github.com/dustin/go-humanize"

var options struct {
	mapsize  int64
	backer   string
	cpus     int64
	magsize  int64
	depotmax int64
	minblock int64
	maxblock int64
	caching  bool
	logs     string
	args     []string
}

func argParse() []string {
	vmsetts := vm.Defaultsettings()
	zsetts := zone.Defaultsettings()
	flag.Int64Var(&options.mapsize, "mapsize", vmsetts.Int64("zonemap.size"),
		"size of zone map in bytes")
	flag.StringVar(&options.backer, "backer", vmsetts.String("backer"),
		"page backer, mmap or heap")
	flag.Int64Var(&options.cpus, "cpus", zsetts.Int64("cpus"),
		"number of cache slots per zone")
	flag.Int64Var(&options.magsize, "magsize", zsetts.Int64("magazine.size"),
		"number of elements in a magazine")
	flag.Int64Var(&options.depotmax, "depotmax", zsetts.Int64("depot.max"),
		"maximum number of full magazines in depot")
	flag.Int64Var(&options.minblock, "minblock", 32,
		"smallest size class")
	flag.Int64Var(&options.maxblock, "maxblock", 4096,
		"largest size class")
	flag.BoolVar(&options.caching, "caching", false,
		"enable per-cpu caching on all size classes")
	flag.StringVar(&options.logs, "logs", "",
		"enable logging for components, zone,vm,kalloc or all")
	flag.Parse()
	return flag.Args()
}

func main() {
	args := argParse()
	if len(args) == 0 {
		fmt.Println("usage: zonectl [options] load|gc|sizes [command-options]")
		os.Exit(1)
	}
	if options.logs != "" {
		kalloc.LogComponents(options.logs)
		zone.LogComponents(options.logs)
		vm.LogComponents(options.logs)
	}

	switch args[0] {
	case "load":
		doload(args[1:])
	case "gc":
		dogc(args[1:])
	case "sizes":
		dosizes()
	default:
		fmt.Printf("unknown command %q\n", args[0])
		os.Exit(1)
	}
}

func makekalloc() *kalloc.Kalloc {
	vmsetts := s.Settings{"backer": options.backer, "zonemap.size": options.mapsize}
	backer, err := vm.New(vmsetts)
	if err != nil {
		fmt.Printf("page backer: %v\n", err)
		os.Exit(1)
	}
	zsetts := s.Settings{
		"cpus":          options.cpus,
		"magazine.size": options.magsize,
		"depot.max":     options.depotmax,
	}
	reg := zone.NewRegistry(backer, zsetts)
	ksetts := kalloc.Defaultsettings(options.minblock, options.maxblock)
	ksetts["caching"] = options.caching
	return kalloc.New(reg, ksetts)
}

func dosizes() {
	k := makekalloc()
	defer k.Registry().Backer().Close()
	for _, size := range k.Slabs() {
		id, _ := k.ZoneFor(size)
		z := k.Registry().Require(id)
		stats := z.Stats()
		fmsg := "%-16v elemsize %8v chunk %2v pages, %5v elements\n"
		fmt.Printf(fmsg, z.Name(), hm.Bytes(uint64(size)),
			stats["chunkpages"], stats["chunkelems"])
	}
}
