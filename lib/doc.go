// Package lib provide small helpers that are not tied to the zone
// allocator: sample statistics, histograms, bit twiddling on 32-bit
// words and stack-trace formatting. They shall not depend on anything
// other than the standard library.
package lib
