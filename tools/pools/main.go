package main

import "fmt"
import "flag"

import "github.com/bnclabs/gozone/kalloc"
import hm "github.com/dustin/go-humanize"

var options struct {
	minblock int64
	maxblock int64
}

func argParse() {
	flag.Int64Var(&options.minblock, "minblock", 32,
		"minimum block size")
	flag.Int64Var(&options.maxblock, "maxblock", 1024*1024,
		"maximum block size")
	flag.Parse()
}

func main() {
	argParse()
	tellutilization()
}

func tellutilization() {
	sizes := kalloc.Blocksizes(options.minblock, options.maxblock)
	min, max := hm.Bytes(uint64(options.minblock)), hm.Bytes(uint64(options.maxblock))
	fmt.Printf("size classes between %v and %v\n", min, max)
	fmt.Printf("size %8v\n", sizes[0])
	for i, size := range sizes[1:] {
		u := (float64(sizes[i]+size) / 2.0) / float64(size)
		fmt.Printf("size %8v, util %.4f, zone kalloc.%v\n", size, u, size)
	}
	fmt.Printf("total %v size classes\n", len(sizes))
}
