package lib

import "fmt"
import "sort"
import "strconv"
import "strings"

// HistogramInt64 bucket samples into bins of `width` between `from`
// and `till`, with one bin for samples below `from` and one for
// samples at or beyond `till`. Moments are tracked by the embedded
// AverageInt64.
type HistogramInt64 struct {
	AverageInt64
	from  int64
	till  int64
	width int64
	bins  []int64
}

// NewhistorgramInt64 return a new histogram object, from and till
// are rounded down to width.
func NewhistorgramInt64(from, till, width int64) *HistogramInt64 {
	from, till = (from/width)*width, (till/width)*width
	h := &HistogramInt64{from: from, till: till, width: width}
	h.bins = make([]int64, 2+((till-from)/width))
	return h
}

// Add a sample to this histogram.
func (h *HistogramInt64) Add(sample int64) {
	h.AverageInt64.Add(sample)
	switch {
	case sample < h.from:
		h.bins[0]++
	case sample >= h.till:
		h.bins[len(h.bins)-1]++
	default:
		h.bins[1+(sample-h.from)/h.width]++
	}
}

// Merge samples from other histogram, both must have the same bins.
func (h *HistogramInt64) Merge(other *HistogramInt64) {
	if h.from != other.from || h.till != other.till || h.width != other.width {
		fmsg := "histogram mismatch {%v,%v,%v} != {%v,%v,%v}"
		panic(fmt.Errorf(fmsg, h.from, h.till, h.width, other.from, other.till, other.width))
	}
	h.AverageInt64.Merge(&other.AverageInt64)
	for i, n := range other.bins {
		h.bins[i] += n
	}
}

// Stats return cumulative sample count below each bin's upper bound,
// up to the last non-empty bin which is keyed as "+".
func (h *HistogramInt64) Stats() map[string]int64 {
	m := make(map[string]int64)
	last := len(h.bins) - 1
	for last >= 0 && h.bins[last] == 0 {
		last--
	}
	cumm := int64(0)
	for i := 0; i <= last; i++ {
		cumm += h.bins[i]
		if i == last {
			m["+"] = cumm
			break
		}
		m[strconv.Itoa(int(h.from+int64(i)*h.width))] = cumm
	}
	return m
}

// Fullstats return moments of the sample set along with its
// histogram.
func (h *HistogramInt64) Fullstats() map[string]interface{} {
	stats := h.AverageInt64.Stats()
	hmap := make(map[string]interface{})
	for k, v := range h.Stats() {
		hmap[k] = v
	}
	stats["histogram"] = hmap
	return stats
}

// Logstring return Fullstats as loggable string, with keys sorted and
// histogram bins in ascending order.
func (h *HistogramInt64) Logstring() string {
	stats := h.AverageInt64.Stats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ss := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		ss = append(ss, fmt.Sprintf(`"%v": %v`, key, stats[key]))
	}

	hist := h.Stats()
	bounds := make([]int, 0, len(hist))
	for k := range hist {
		if n, err := strconv.Atoi(k); err == nil {
			bounds = append(bounds, n)
		}
	}
	sort.Ints(bounds)
	hs := make([]string, 0, len(hist))
	for _, bound := range bounds {
		k := strconv.Itoa(bound)
		hs = append(hs, fmt.Sprintf(`"%v": %v`, k, hist[k]))
	}
	if n, ok := hist["+"]; ok {
		hs = append(hs, fmt.Sprintf(`"+": %v`, n))
	}
	ss = append(ss, fmt.Sprintf(`"histogram": {%v}`, strings.Join(hs, ",")))
	return "{" + strings.Join(ss, ",") + "}"
}
