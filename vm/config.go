package vm

import "fmt"
import "runtime"

import "github.com/bnclabs/gozone/api"

import s "github.com/bnclabs/gosettings"

// Defaultsettings for page backers.
//
// "backer" (string, default: "mmap" on linux and darwin, "heap" otherwise)
//		Kind of page backer, either "mmap" or "heap".
//
// "zonemap.size" (int64, default: <quarter of system memory>)
//		Size of virtual address space, in bytes, reserved for the
//		zone map. Rounded down to page size.
//
// "pagesize" (int64, default: 4096)
//		Page size for "heap" backer, "mmap" backer uses the
//		operating system's page size.
//
// "commit.limit" (int64, default: 0)
//		Maximum number of pages that can be committed at any time,
//		zero means no limit other than the zone map size.
func Defaultsettings() s.Settings {
	total, _, _ := Sysmem()
	backer := "heap"
	switch runtime.GOOS {
	case "linux", "darwin":
		backer = "mmap"
	}
	zonemapsize := int64(total / 4)
	if zonemapsize < minzonemap {
		zonemapsize = minzonemap
	}
	return s.Settings{
		"backer":       backer,
		"zonemap.size": zonemapsize,
		"pagesize":     int64(4096),
		"commit.limit": int64(0),
	}
}

const minzonemap = int64(64 * 1024 * 1024)

// New page backer based on settings, refer Defaultsettings() for
// recognised keys. Falls back to "heap" backer if "mmap" is not
// supported on this platform.
func New(setts s.Settings) (api.PageBacker, error) {
	setts = Defaultsettings().Mixin(setts)
	switch kind := setts.String("backer"); kind {
	case "mmap":
		backer, err := NewMmap(setts)
		if err == ErrorUnsupported {
			warnf("vm: mmap not supported on %v, using heap", runtime.GOOS)
			return NewHeap(setts), nil
		} else if err != nil {
			return nil, err
		}
		return backer, nil
	case "heap":
		return NewHeap(setts), nil
	default:
		return nil, fmt.Errorf("vm: invalid backer %q", kind)
	}
}
