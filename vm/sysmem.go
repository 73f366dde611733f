package vm

import "github.com/cloudfoundry/gosigar"

// Sysmem return total, used and free system memory in bytes. Used and
// free memory account for buffers and page cache.
func Sysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		errorf("vm: sysmem: %v", err)
		return 0, 0, 0
	}
	return mem.Total, mem.ActualUsed, mem.ActualFree
}
