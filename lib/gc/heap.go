package gc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Managed heap (deterministic collector)
// --------------------------------------------------------------------------

// Tracer reports every object directly referenced by obj
type Tracer[T any] func(obj *T, visit func(child *T))

// HeapOptions configures the Heap behavior during initialization
type HeapOptions[T any] struct {
	Tracer     Tracer[T] // Reports references between objects (nil = objects reference nothing)
	LimitBytes int64     // Upper bound for the accounted bytes (0 = unlimited)
}

// CollectStats summarises one collection pass
type CollectStats struct {
	Generation uint64 `json:"generation"`
	Candidates int    `json:"candidates"` // unreachable objects considered for reclamation
	Reclaimed  int    `json:"reclaimed"`
	Vetoed     int    `json:"vetoed"`    // kept alive by a disclaim callback
	Protected  int    `json:"protected"` // kept alive by an ordered candidate referencing them
	FreedBytes int64  `json:"freed_bytes"`
}

// cell is the heap's bookkeeping for one admitted object
type cell[T any] struct {
	ptr  atomic.Pointer[T] // nil after reclamation
	tag  shape.Tag
	size int
	hint uint64
}

// heapWeak is a weak reference into the managed heap
type heapWeak[T any] struct {
	c       *cell[T]
	cleared atomic.Bool
}

func (w *heapWeak[T]) Value() *T {
	if w.cleared.Load() {
		return nil
	}
	return w.c.ptr.Load()
}

func (w *heapWeak[T]) Clear() {
	w.cleared.Store(true)
}

// Heap is a deterministic managed heap.
// An object stays alive while it is reachable from a root (see Root) or
// while a disclaim callback vetoes its reclamation.
type Heap[T any] struct {
	mu        sync.Mutex
	gen       atomic.Uint64
	used      atomic.Int64
	cells     map[*T]*cell[T]
	roots     map[*T]int
	disclaims *xsync.MapOf[shape.Tag, disclaimer[T]]
	tracer    Tracer[T]
	limit     int64
}

// NewHeap creates a new managed heap with the specified options (optional)
func NewHeap[T any](opts *HeapOptions[T]) *Heap[T] {
	if opts == nil {
		opts = &HeapOptions[T]{}
	}
	return &Heap[T]{
		cells:     make(map[*T]*cell[T]),
		roots:     make(map[*T]int),
		disclaims: xsync.NewMapOf[shape.Tag, disclaimer[T]](),
		tracer:    opts.Tracer,
		limit:     opts.LimitBytes,
	}
}

// Alloc admits obj as a managed block
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *Heap[T]) Alloc(tag shape.Tag, size int, obj *T, hint uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if used := h.used.Load(); h.limit > 0 && used+int64(size) > h.limit {
		return fmt.Errorf("%w: requested %d bytes (%d of %d in use)", ErrExhausted, size, used, h.limit)
	}

	if _, ok := h.cells[obj]; ok {
		panic(fmt.Sprintf("gc: object %p admitted twice", obj))
	}

	c := &cell[T]{tag: tag, size: size, hint: hint}
	c.ptr.Store(obj)
	h.cells[obj] = c
	h.used.Add(int64(size))
	return nil
}

// MakeWeak creates a weak reference to an admitted object
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *Heap[T]) MakeWeak(obj *T) Weak[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.cells[obj]
	if !ok {
		panic(fmt.Sprintf("gc: weak reference to unmanaged object %p", obj))
	}
	return &heapWeak[T]{c: c}
}

// RegisterDisclaim registers fn for all objects of the given tag.
// A later registration for the same tag replaces the earlier one.
func (h *Heap[T]) RegisterDisclaim(tag shape.Tag, fn DisclaimFunc[T], ordered bool) {
	h.disclaims.Store(tag, disclaimer[T]{fn: fn, ordered: ordered})
}

// Generation returns the generation of the latest pass
func (h *Heap[T]) Generation() uint64 {
	return h.gen.Load()
}

// Capabilities reports the supported protocol parts
func (h *Heap[T]) Capabilities() Capability {
	return CapVeto | CapOrdered | CapExplicitCollect
}

// Close is a no-op, the heap has no background resources
func (h *Heap[T]) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Roots
// --------------------------------------------------------------------------

// Root registers a strong reference to obj. Roots are counted, every Root
// must be balanced by one Unroot.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *Heap[T]) Root(obj *T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.cells[obj]; !ok {
		panic(fmt.Sprintf("gc: root of unmanaged or reclaimed object %p", obj))
	}
	h.roots[obj]++
}

// Unroot drops one strong reference to obj
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *Heap[T]) Unroot(obj *T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.roots[obj]
	if !ok {
		panic(fmt.Sprintf("gc: unroot of object %p that is not a root", obj))
	}
	if n == 1 {
		delete(h.roots, obj)
	} else {
		h.roots[obj] = n - 1
	}
}

// Live returns the number of objects that have not been reclaimed
func (h *Heap[T]) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cells)
}

// UsedBytes returns the accounted size of all live objects
func (h *Heap[T]) UsedBytes() int64 {
	return h.used.Load()
}

// --------------------------------------------------------------------------
// Collection
// --------------------------------------------------------------------------

// Collect runs one collection pass:
//  1. the generation is advanced, the new value identifies the pass
//  2. everything reachable from the roots is marked
//  3. everything reachable from an unreachable object whose tag is registered as
//     ordered is protected (transitively, so a protected object never refers to a
//     reclaimed one)
//  4. every other unreachable object is offered to its tag's disclaim callback and
//     reclaimed unless the callback vetoes
//
// Thread-safety: This method is thread-safe. Alloc, Root and Unroot block for the
// duration of the pass, weak references can be resolved concurrently.
func (h *Heap[T]) Collect() CollectStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	gen := h.gen.Add(1)
	stats := CollectStats{Generation: gen}

	// mark everything reachable from the roots
	reachable := make(map[*T]struct{}, len(h.cells))
	roots := make([]*T, 0, len(h.roots))
	for obj := range h.roots {
		roots = append(roots, obj)
	}
	h.markFrom(roots, reachable)

	// collect candidates
	candidates := make([]*T, 0, len(h.cells)-len(reachable))
	for obj := range h.cells {
		if _, ok := reachable[obj]; !ok {
			candidates = append(candidates, obj)
		}
	}
	stats.Candidates = len(candidates)

	// ordered disclaim: everything reachable from an ordered candidate survives
	// this pass, the candidate itself only if another ordered candidate reaches it
	protected := make(map[*T]struct{})
	for _, obj := range candidates {
		if d, ok := h.disclaims.Load(h.cells[obj].tag); !ok || !d.ordered {
			continue
		}
		seen := map[*T]struct{}{obj: {}}
		var children []*T
		h.trace(obj, func(child *T) {
			children = append(children, child)
		})
		h.markFrom(children, seen)
		for reached := range seen {
			if reached != obj {
				protected[reached] = struct{}{}
			}
		}
	}

	for _, obj := range candidates {
		c := h.cells[obj]

		if _, ok := protected[obj]; ok {
			stats.Protected++
			continue
		}

		if d, ok := h.disclaims.Load(c.tag); ok {
			if d.fn(Candidate[T]{Object: obj, Tag: c.tag, Hint: c.hint, Generation: gen}) {
				stats.Vetoed++
				continue
			}
		}

		// reclaim
		delete(h.cells, obj)
		c.ptr.Store(nil)
		h.used.Add(-int64(c.size))
		stats.Reclaimed++
		stats.FreedBytes += int64(c.size)
	}

	Logger.Debugf("pass %d: %d candidates, %d reclaimed, %d vetoed, %d protected",
		gen, stats.Candidates, stats.Reclaimed, stats.Vetoed, stats.Protected)

	return stats
}

// markFrom adds every object reachable from start to marked. Objects already
// in marked are not traversed again.
func (h *Heap[T]) markFrom(start []*T, marked map[*T]struct{}) {
	stack := start
	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := marked[obj]; seen {
			continue
		}
		marked[obj] = struct{}{}

		h.trace(obj, func(child *T) {
			stack = append(stack, child)
		})
	}
}

// trace visits every managed child of obj
func (h *Heap[T]) trace(obj *T, visit func(child *T)) {
	if h.tracer == nil {
		return
	}
	h.tracer(obj, func(child *T) {
		if child == nil {
			return
		}
		if _, ok := h.cells[child]; ok {
			visit(child)
		}
	})
}
