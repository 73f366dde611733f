package zone

import "time"
import "runtime/debug"

import "github.com/bnclabs/gozone/lib"
import "github.com/bnclabs/gozone/vm"

// collector periodically computes working set, auto trims zones, and
// reacts to low system memory.
type collector struct {
	reg      *Registry
	period   time.Duration
	triggch  chan struct{}
	finch    chan struct{}
	donech   chan struct{}
	memprobe func() (total, used, free uint64)
}

// Start collector for registry, return false if already started.
func (reg *Registry) Start() bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.collector != nil {
		return false
	}
	coll := &collector{
		reg:      reg,
		period:   time.Duration(reg.wssperiod) * time.Millisecond,
		triggch:  make(chan struct{}, 1),
		finch:    make(chan struct{}),
		donech:   make(chan struct{}),
		memprobe: vm.Sysmem,
	}
	reg.collector = coll
	go housekeeper(coll)
	infof("zone: collector started, period %v", coll.period)
	return true
}

// Stop collector and wait for it to exit.
func (reg *Registry) Stop() {
	reg.mu.Lock()
	coll := reg.collector
	reg.collector = nil
	reg.mu.Unlock()

	if coll != nil {
		close(coll.finch)
		<-coll.donech
		infof("zone: collector stopped")
	}
}

// Trigger an immediate collector run, noop if collector is not
// running or a run is already pending.
func (reg *Registry) Trigger() {
	reg.mu.Lock()
	coll := reg.collector
	reg.mu.Unlock()
	if coll != nil {
		select {
		case coll.triggch <- struct{}{}:
		default:
		}
	}
}

func housekeeper(coll *collector) {
	defer close(coll.donech)
	defer func() {
		if r := recover(); r != nil {
			errorf("zone: collector crashed: %v", r)
			errorf("\n%s", lib.GetStacktrace(2, debug.Stack()))
		}
	}()

	tick := time.NewTicker(coll.period)
	defer tick.Stop()

loop:
	for {
		select {
		case <-tick.C:
		case <-coll.triggch:
		case <-coll.finch:
			break loop
		}
		coll.housekeep()
	}
}

func (coll *collector) housekeep() {
	reg := coll.reg
	reg.ComputeWorkingSetSize()
	reg.AutoGC()

	total, _, free := coll.memprobe()
	if total == 0 { // system memory not known
		return
	}
	switch {
	case int64(free) < reg.minfree:
		warnf("zone: free memory %v below minfree %v", free, reg.minfree)
		if n := reg.notifier.Load(); n != nil {
			n.Jetsam()
		} else {
			reg.GC(Drain)
		}
	case int64(free) < reg.lowwm:
		verbosef("zone: free memory %v below low watermark %v", free, reg.lowwm)
		reg.GC(Trim)
	}
}
