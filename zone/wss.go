package zone

// contention moving average is fixed point, in units of 1/256.
const contentionunit = int64(256)

// ComputeWorkingSetSize for every active zone, to be called once
// every "wss.period". Free element range observed during the period
// is smoothed into working set size, and lock contention is smoothed
// into contentions per second. Zones contending beyond
// "cache.autothreshold" for two periods get per-cpu caching enabled.
func (reg *Registry) ComputeWorkingSetSize() {
	threshold := reg.autothreshold * contentionunit
	for _, z := range reg.Zones() {
		if z.computewss(reg.wssperiod, threshold) {
			z.enablecaching()
		}
	}
}

func (z *Zone) computewss(periodms, threshold int64) (needscaching bool) {
	z.mu.Lock()
	defer z.mu.Unlock()

	wma := z.elemsfreemax - z.elemsfreemin
	z.elemsfreewss = (3*wma + z.elemsfreewss) / 4
	z.elemsfreemin, z.elemsfreemax = z.elemsfree, z.elemsfree

	cur := z.contentioncur.Swap(0)
	wma = (cur * contentionunit * 1000) / periodms
	z.contentionwma = (3*wma + z.contentionwma) / 4

	if z.caching.Load() || z.config.NoCaching || z.config.Exhaustible {
		return false
	}
	return threshold > 0 && z.contentionwma >= threshold && wma >= threshold
}

// AutoGC trims zones whose free elements, after a working set period,
// are far beyond their working set size. Return number of zones
// trimmed.
func (reg *Registry) AutoGC() (n int) {
	reg.gcmu.Lock()
	defer reg.gcmu.Unlock()

	for _, z := range reg.Zones() {
		if z.collectable() && z.autogcneeded(reg.autogcratio, reg.autogcthresh) {
			z.reclaim(Trim)
			n++
		}
	}
	if n > 0 {
		debugf("zone: autogc trimmed %v zones", n)
	}
	return n
}

func (z *Zone) autogcneeded(ratio, threshold int64) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.elemsfreemin*z.stride <= threshold {
		return false
	}
	return z.elemsfreemin*ratio > z.elemsfreewss*100
}
