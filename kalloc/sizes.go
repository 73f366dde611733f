package kalloc

import "fmt"

// SuitableSize picks the smallest slab from sorted `blocksizes` that
// can hold `size` bytes.
func SuitableSize(blocksizes []int64, size int64) int64 {
	for {
		switch len(blocksizes) {
		case 1:
			if size <= blocksizes[0] {
				return blocksizes[0]
			}
			panicerr("size %v greater than configured", size)

		case 2:
			if size <= blocksizes[0] {
				return blocksizes[0]
			} else if size <= blocksizes[1] {
				return blocksizes[1]
			}
			panicerr("size %v greater than configured", size)

		default:
			pivot := len(blocksizes) / 2
			if blocksizes[pivot] < size {
				blocksizes = blocksizes[pivot+1:]
			} else {
				blocksizes = blocksizes[0 : pivot+1]
			}
		}
	}
}

// Blocksizes generate slab sizes between minblock and maxblock, such
// that a request falling between two consecutive sizes gets on
// average MEMUtilization of its slab.
func Blocksizes(minblock, maxblock int64) []int64 {
	if maxblock < minblock {
		panicerr("maxblock %v < minblock %v", maxblock, minblock)
	} else if minblock <= 0 || (minblock%Sizeinterval) != 0 {
		panicerr("minblock %v is not multiple of %v", minblock, Sizeinterval)
	} else if (maxblock % Sizeinterval) != 0 {
		panicerr("maxblock %v is not multiple of %v", maxblock, Sizeinterval)
	}

	nextsize := func(from int64) int64 {
		addby := int64(float64(from) * (1.0 - MEMUtilization))
		if addby <= Sizeinterval {
			addby = Sizeinterval
		} else if addby%Sizeinterval != 0 {
			addby = (addby / Sizeinterval) * Sizeinterval
		}
		size := from + addby
		for (float64(from+size)/2.0)/float64(size) > MEMUtilization {
			size += addby
		}
		return size
	}

	sizes := make([]int64, 0, 64)
	for size := minblock; size < maxblock; size = nextsize(size) {
		sizes = append(sizes, size)
	}
	return append(sizes, maxblock)
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
