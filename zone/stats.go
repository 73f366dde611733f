package zone

import "fmt"
import "sort"
import "strings"

import humanize "github.com/dustin/go-humanize"
import "github.com/bnclabs/gozone/log"

// Stats for zone. Elements held in per-cpu magazines and depot are
// counted as allocated, and reported as "n_cached".
func (z *Zone) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"id":         int64(z.id),
		"name":       z.name,
		"elemsize":   z.elemsize,
		"chunkpages": z.chunkpages,
		"chunkelems": z.chunkelems,
		"caching":    z.caching.Load(),
	}

	var allocs, frees, hits, misses int64
	for i := range z.caches {
		c := &z.caches[i]
		allocs += c.allocs.Load()
		frees += c.frees.Load()
		hits += c.hits.Load()
		misses += c.misses.Load()
	}
	cached := z.cachedcnt.Load()
	stats["n_allocs"] = allocs
	stats["n_frees"] = frees
	stats["n_hits"] = hits
	stats["n_misses"] = misses
	stats["n_allocfails"] = z.allocfails.Load()
	stats["n_cached"] = cached

	z.mu.Lock()
	stats["n_elemsavail"] = z.elemsavail
	stats["n_elemsfree"] = z.elemsfree
	stats["n_allocated"] = z.elemsavail - z.elemsfree
	stats["n_inuse"] = z.elemsavail - z.elemsfree - cached
	stats["n_freemin"] = z.elemsfreemin
	stats["n_freemax"] = z.elemsfreemax
	stats["n_wss"] = z.elemsfreewss
	stats["n_rsv"] = z.elemsrsv
	stats["n_wiredcur"] = z.wiredcur
	stats["n_wiredmax"] = z.wiredmax
	stats["n_wiredhwm"] = z.wiredhwm
	stats["n_vacur"] = z.vacur
	stats["n_depot"] = int64(z.depot.length())
	stats["n_grows"] = z.ngrows
	stats["n_reclaims"] = z.nreclaims
	stats["n_depotfolds"] = z.ndepotfolds
	stats["n_gcs"] = z.ngcs
	stats["contention.wma"] = z.contentionwma
	stats["contention.cur"] = z.contentioncur.Load()
	for q := queueid(0); q < nqueues; q++ {
		stats["queue."+q.String()] = z.queues[q].count
	}
	stats["wired.bytes"] = z.wiredcur * z.pagesize
	stats["free.bytes"] = z.elemsfree * z.stride
	z.mu.Unlock()
	return stats
}

// Stats for registry and all its active zones.
func (reg *Registry) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"zonemap.pages":  reg.npages,
		"zonemap.used":   reg.backer.Used(),
		"zonemap.pagesz": reg.pagesize,
		"wired.pages":    reg.wiredpages(),
		"n_zones":        int64(len(reg.Zones())),
		"notifier":       reg.notifier.Load() != nil,
		"gc":             reg.gcstats.stats(),
	}
	for _, z := range reg.Zones() {
		stats["zone."+z.name] = z.Stats()
	}
	return stats
}

// Log zone statistics, one line per zone sorted by wired memory.
func (reg *Registry) Log(humanized bool) {
	dohumanize := func(val int64) interface{} {
		if humanized {
			return humanize.Bytes(uint64(val))
		}
		return val
	}

	zones := reg.Zones()
	allstats := make([]map[string]interface{}, 0, len(zones))
	for _, z := range zones {
		allstats = append(allstats, z.Stats())
	}
	sort.SliceStable(allstats, func(i, j int) bool {
		return allstats[i]["wired.bytes"].(int64) > allstats[j]["wired.bytes"].(int64)
	})

	wired := reg.wiredpages() * reg.pagesize
	mapsize := reg.npages * reg.pagesize
	fmsg := "zone map %v, wired %v, %v zones\n"
	log.Infof(fmsg, dohumanize(mapsize), dohumanize(wired), len(zones))

	outs := []string{}
	fmsg = "  %-24v %6v wired %-8v free %-8v allocd %8v cached %6v utilz %6.2f%%"
	for _, stats := range allstats {
		avail := stats["n_elemsavail"].(int64)
		allocd := stats["n_allocated"].(int64)
		utilz := float64(0)
		if avail > 0 {
			utilz = (float64(allocd) / float64(avail)) * 100
		}
		outs = append(outs, fmt.Sprintf(
			fmsg, stats["name"], stats["elemsize"],
			dohumanize(stats["wired.bytes"].(int64)),
			dohumanize(stats["free.bytes"].(int64)),
			allocd, stats["n_cached"], utilz))
	}
	if len(outs) > 0 {
		log.Infof("zones:\n%v\n", strings.Join(outs, "\n"))
	}
}
