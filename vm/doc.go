// Package vm supplies the page-backing layer for zones. A backer owns
// one contiguous map of virtual address space, the zone map, and
// carves page ranges out of it. Ranges are reserved first and
// committed separately, so that a range can remain reserved while its
// physical pages are given back to the system.
//
// Two backers are available:
//
//   - Mmap, anonymous memory mapping with PROT_NONE reservations,
//     mprotect() to commit and madvise(MADV_DONTNEED) to decommit.
//     Available on unix platforms.
//   - Heap, zone map carved out of a golang byte-slice, useful for
//     tests and platforms without mmap. Commit and decommit are
//     accounting only, decommit zero-fills the range.
package vm
