// Package kalloc supplies byte-array allocation over size classed
// zones. Size classes are generated between minblock and maxblock such
// that the average utilization of a slab is at least MEMUtilization,
// and each class is served by its own zone named "kalloc.<size>".
//
// Kalloc implements api.Mallocer and api.SizeClassMapper, callers can
// either allocate through Kalloc or resolve the zone for a size once
// and allocate from it directly.
package kalloc
