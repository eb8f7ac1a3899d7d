// Package gc defines the narrow capability set the intern store uses against a
// tracing collector, and provides two collectors implementing it.
//
// Capabilities (Collector):
//   - Alloc: admit a new object as a collector-managed block of a given size.
//     Fails with ErrExhausted when a configured byte limit would be exceeded.
//   - MakeWeak / Weak.Value / Weak.Clear: non-owning references.
//   - RegisterDisclaim: a per-tag callback invoked with every reclamation candidate.
//     Collectors with CapVeto honour its result, a true return resurrects the
//     candidate for the current pass. With the ordered flag (CapOrdered), objects
//     referenced by a candidate are treated as reachable during the same pass.
//   - Generation: a monotonically increasing counter, advanced once per pass.
//
// Implementations:
//
//   - Heap: a deterministic managed heap. Strong references are explicit, counted
//     roots (Root/Unroot), reachability follows a caller supplied tracer, and a
//     pass runs only when Collect is called. It supports vetoes and ordered
//     disclaim, and is what tests and reproducible workloads use.
//
//   - Runtime: backed by the Go runtime. Weak references are weak.Pointer values,
//     reclamation is observed via runtime.AddCleanup and the generation advances
//     once per completed GC cycle. The Go collector never resurrects objects, so
//     disclaim callbacks are post-mortem notifications with a nil Object.
package gc
