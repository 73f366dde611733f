package zone

import "fmt"
import "errors"

// ErrOutOfMemory zone cannot grow, either it has reached its maximum
// size, or zone map is exhausted, or pages cannot be committed.
var ErrOutOfMemory = errors.New("zone.outofmemory")

// ErrZoneExpanding zone is growing in another goroutine and caller
// cannot wait for it, retry later.
var ErrZoneExpanding = errors.New("zone.expanding")

// ErrNotifierClaimed low memory notifier is already claimed.
var ErrNotifierClaimed = errors.New("zone.notifierclaimed")

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
