package vm

import "fmt"
import "errors"

// ErrorNoSpace zone map has no contiguous range of the requested size.
var ErrorNoSpace = errors.New("vm.nospace")

// ErrorCommitLimit committing the range would exceed the backer's
// commit limit.
var ErrorCommitLimit = errors.New("vm.commitlimit")

// ErrorUnsupported backer is not available on this platform.
var ErrorUnsupported = errors.New("vm.unsupported")

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
