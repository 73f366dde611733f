package zone

import "sync/atomic"

import "github.com/bnclabs/gozone/log"
import "github.com/bnclabs/gozone/vm"

var logok = int64(0)

// LogComponents enable logging. By default logging is disabled,
// if applications want log information for zone components
// call this function with "self" or "zone" as argument. To enable
// logging for zone and all of its components call this function
// with "all" or "zone","vm" as argument.
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "zone", "self":
			atomic.StoreInt64(&logok, 1)
		case "vm":
			vm.LogComponents("self")
		case "all":
			atomic.StoreInt64(&logok, 1)
			vm.LogComponents("all")
		}
	}
}

func debugf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Debugf(format, v...)
	}
}

func errorf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Errorf(format, v...)
	}
}

func infof(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Infof(format, v...)
	}
}

func verbosef(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Verbosef(format, v...)
	}
}

func warnf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Warnf(format, v...)
	}
}
