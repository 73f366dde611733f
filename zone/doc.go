// Package zone implement a zone allocator, pools of fixed size
// elements carved out of multi-page chunks, all zones sharing one zone
// map of virtual address space supplied by a page backer.
//
// Allocation is layered. Each zone has one cache slot per cpu holding
// a current and previous magazine of free elements, a depot of full
// magazines recirculating between cache slots, and a chunk tracker
// that grows the zone page by page when everything above is empty.
// Free is the mirror image.
//
// Free memory is given back to the page backer by the garbage
// collector, Registry.GC(), either trimming zones to their working set
// or draining them to their reserve. Working set is estimated by
// Registry.ComputeWorkingSetSize(), called periodically by the
// collector started via Registry.Start().
//
// Misuse, like double free, freeing an element to the wrong zone, or
// freeing an address that was never allocated, is detected and
// reported with a panic. Running out of memory is reported as
// ErrOutOfMemory.
//
// Memory handed out by zones is not scanned by the golang garbage
// collector, applications must not store golang pointers inside
// elements.
package zone
