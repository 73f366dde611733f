//go:build !(linux || darwin)

package vm

import s "github.com/bnclabs/gosettings"

// Mmap backer is not available on this platform.
type Mmap struct {
	*Heap
}

// NewMmap return ErrorUnsupported on this platform.
func NewMmap(setts s.Settings) (*Mmap, error) {
	return nil, ErrorUnsupported
}
