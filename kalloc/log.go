package kalloc

import "sync/atomic"

import "github.com/bnclabs/gozone/log"
import "github.com/bnclabs/gozone/zone"

var logok = int64(0)

// LogComponents enable logging. By default logging is disabled,
// if applications want log information for kalloc call this function
// with "self" or "kalloc" as argument. To enable logging for kalloc
// and the zones underneath call this function with "all".
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "kalloc", "self":
			atomic.StoreInt64(&logok, 1)
		case "all":
			atomic.StoreInt64(&logok, 1)
			zone.LogComponents("all")
		}
	}
}

func infof(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Infof(format, v...)
	}
}
