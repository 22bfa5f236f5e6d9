// Package gc implements a precise, generational, moving garbage collector
// for an application-defined object graph.
//
// The heap is divided into four regions plus an explicit root set:
//
//   - Eden: a bump-pointer nursery. All small allocations start here.
//   - Survivor: a pair of equally sized semi-spaces (from/to). Objects that
//     outlive a minor collection are copied between the halves and age with
//     every collection they survive.
//   - Tenured: a compacting mature region. Objects that survive enough minor
//     collections are promoted here; a major collection compacts it in place.
//   - Large object space: a non-moving doubly linked list of oversized
//     payloads, each allocated directly from the platform.
//   - Roots: handle groups and explicitly tracked Root records.
//
// A minor collection only walks eden and survivor-from. To make that sound,
// every reference into the young generation from a root or from a
// tenured/large object is counted on the target: the write barrier keeps a
// per-object refcount of exactly those references, so minor collections can
// treat "refcount > 0" as the root set and never scan the mature regions.
// A major collection traces from the true roots instead, so cycles that are
// entirely contained in the mature regions still collect.
//
// Object moves are carried out by setting a forwarding pointer in each
// surviving object's header, rewriting every live slot, and then copying the
// object bytes. The forwarding pointer doubles as a liveness witness: after
// the finalize phase it is nil exactly for reclaimed objects, which is what
// the weak reference machinery keys off.
//
// The collector is single-threaded and stop-the-world: allocation, barrier
// and collection all run on the caller's goroutine to completion.
//
// More information:
// "The Garbage Collection Handbook" by Richard Jones, Antony Hosking, Eliot
// Moss.
package gc
