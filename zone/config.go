package zone

import "runtime"

import "github.com/bnclabs/gozone/vm"
import s "github.com/bnclabs/gosettings"

// Defaultsettings for zone registry.
//
// "zones.max" (int64, default: 650)
//		Maximum number of zones that can be created in a registry,
//		zone ids are never reused.
//
// "cpus" (int64, default: runtime.GOMAXPROCS)
//		Number of cache slots per zone.
//
// "magazine.size" (int64, default: 8)
//		Number of elements in a magazine.
//
// "depot.max" (int64, default: 32)
//		Maximum number of full magazines in a zone's depot, beyond
//		which the oldest magazine is folded back into chunks.
//
// "chunk.maxpages" (int64, default: 8)
//		Maximum number of pages in a chunk, actual chunk size is
//		picked to minimize wasted bytes per chunk.
//
// "wss.period" (int64, default: 10000)
//		Period, in milliseconds, for computing working set size.
//
// "cache.autothreshold" (int64, default: 20)
//		Number of lock contentions per second, sustained for two
//		periods, beyond which per-cpu caching is enabled for zone.
//		Zero disables auto caching.
//
// "gc.batchsize" (int64, default: 256)
//		Number of elements folded into chunks while holding zone's
//		lock, during garbage collection.
//
// "autogc.ratio" (int64, default: 20)
//		Percentage of working set to minimum free size below which
//		zone is trimmed on every working set period.
//
// "autogc.threshold" (int64, default: 4MB)
//		Minimum free bytes in a zone before autogc is considered.
//
// "lowmem.minfree" (int64, default: <2% of system memory>)
//		Free system memory, in bytes, below which collector drains
//		all zones, or raises jetsam if a notifier is claimed.
//
// "lowmem.lowwm" (int64, default: <10% of system memory>)
//		Free system memory, in bytes, below which collector trims
//		all zones.
//
// "zonemap.size" (int64, default: <quarter of system memory>)
//		Size of zone map for the page backer created by Global().
func Defaultsettings() s.Settings {
	total, _, _ := vm.Sysmem()
	vmsetts := vm.Defaultsettings()
	return s.Settings{
		"zones.max":           int64(650),
		"cpus":                int64(runtime.GOMAXPROCS(0)),
		"magazine.size":       int64(8),
		"depot.max":           int64(32),
		"chunk.maxpages":      int64(8),
		"wss.period":          int64(10000),
		"cache.autothreshold": int64(20),
		"gc.batchsize":        int64(256),
		"autogc.ratio":        int64(20),
		"autogc.threshold":    int64(4 * 1024 * 1024),
		"lowmem.minfree":      int64(total / 50),
		"lowmem.lowwm":        int64(total / 10),
		"zonemap.size":        vmsetts.Int64("zonemap.size"),
	}
}
