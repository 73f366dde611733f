package kalloc

import "fmt"

import s "github.com/bnclabs/gosettings"

// MEMUtilization is the ratio between memory requested by application
// and memory handed out from a size class.
const MEMUtilization = float64(0.95)

// Sizeinterval minblock and maxblock should be multiples of Sizeinterval.
const Sizeinterval = int64(32)

// Defaultsettings for kalloc.
//
// "minblock" (int64, default: <minblock>)
//		Minimum size of a slab.
//
// "maxblock" (int64, default: <maxblock>)
//		Maximum size of a slab.
//
// "caching" (bool, default: false)
//		Enable per-cpu caching on every size class zone. When false
//		zones can still turn caching on under lock contention.
//
// "expandable" (bool, default: true)
//		Size class zones grow on demand.
//
// "collectable" (bool, default: true)
//		Size class zones give free chunks back during gc.
func Defaultsettings(minblock, maxblock int64) s.Settings {
	if minblock > maxblock {
		panic(fmt.Errorf("minblock(%v) > maxblock(%v)", minblock, maxblock))
	}
	return s.Settings{
		"minblock":    minblock,
		"maxblock":    maxblock,
		"caching":     false,
		"expandable":  true,
		"collectable": true,
	}
}
