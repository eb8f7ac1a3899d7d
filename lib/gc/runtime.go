package gc

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"weak"

	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Go runtime collector
// --------------------------------------------------------------------------

// RuntimeOptions configures the Runtime collector
type RuntimeOptions struct {
	LimitBytes int64 // Soft upper bound for the accounted bytes (0 = unlimited)
}

// runtimeWeak wraps a weak.Pointer so it can be cleared
type runtimeWeak[T any] struct {
	p       weak.Pointer[T]
	cleared atomic.Bool
}

func (w *runtimeWeak[T]) Value() *T {
	if w.cleared.Load() {
		return nil
	}
	return w.p.Value()
}

func (w *runtimeWeak[T]) Clear() {
	w.cleared.Store(true)
}

// reclaim is the argument of the cleanup attached to every admitted object.
// It must not reference the object itself.
type reclaim[T any] struct {
	r    *Runtime[T]
	tag  shape.Tag
	size int
	hint uint64
}

// sentinel is an otherwise unused allocation whose cleanup advances the generation.
// It contains a pointer so it is never placed in the tiny allocator.
type sentinel struct {
	_ *byte
	_ [24]byte
}

// Runtime is a collector backed by the Go garbage collector
type Runtime[T any] struct {
	gen       atomic.Uint64
	used      atomic.Int64
	closed    atomic.Bool
	disclaims *xsync.MapOf[shape.Tag, disclaimer[T]]
	limit     int64
}

// NewRuntime creates a new runtime collector with the specified options (optional).
// Close must be called to stop tracking GC cycles.
func NewRuntime[T any](opts *RuntimeOptions) *Runtime[T] {
	if opts == nil {
		opts = &RuntimeOptions{}
	}
	r := &Runtime[T]{
		disclaims: xsync.NewMapOf[shape.Tag, disclaimer[T]](),
		limit:     opts.LimitBytes,
	}
	r.arm()
	return r
}

// arm allocates a fresh sentinel, its cleanup runs after the next GC cycle
func (r *Runtime[T]) arm() {
	runtime.AddCleanup(&sentinel{}, advanceGeneration[T], r)
}

// advanceGeneration is the sentinel cleanup, it re-arms itself until the collector is closed
func advanceGeneration[T any](r *Runtime[T]) {
	r.gen.Add(1)
	if !r.closed.Load() {
		r.arm()
	}
}

// reclaimed is the cleanup of an admitted object
func reclaimed[T any](rc reclaim[T]) {
	rc.r.used.Add(-int64(rc.size))
	if d, ok := rc.r.disclaims.Load(rc.tag); ok {
		d.fn(Candidate[T]{Tag: rc.tag, Hint: rc.hint, Generation: rc.r.gen.Load()})
	}
}

// Alloc accounts size bytes for obj and arranges for a reclaim notification
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Runtime[T]) Alloc(tag shape.Tag, size int, obj *T, hint uint64) error {
	if used := r.used.Add(int64(size)); r.limit > 0 && used > r.limit {
		r.used.Add(-int64(size))
		return fmt.Errorf("%w: requested %d bytes (%d of %d in use)", ErrExhausted, size, used-int64(size), r.limit)
	}
	runtime.AddCleanup(obj, reclaimed[T], reclaim[T]{r: r, tag: tag, size: size, hint: hint})
	return nil
}

// MakeWeak creates a weak.Pointer based reference
func (r *Runtime[T]) MakeWeak(obj *T) Weak[T] {
	return &runtimeWeak[T]{p: weak.Make(obj)}
}

// RegisterDisclaim registers a reclaim notification for the tag.
// The ordered flag has no effect: the Go collector keeps referenced children alive anyway.
func (r *Runtime[T]) RegisterDisclaim(tag shape.Tag, fn DisclaimFunc[T], ordered bool) {
	r.disclaims.Store(tag, disclaimer[T]{fn: fn, ordered: ordered})
}

// Generation returns the number of GC cycles observed since creation
func (r *Runtime[T]) Generation() uint64 {
	return r.gen.Load()
}

// Capabilities reports the supported protocol parts
func (r *Runtime[T]) Capabilities() Capability {
	return 0
}

// UsedBytes returns the accounted size of all objects not yet reported as reclaimed
func (r *Runtime[T]) UsedBytes() int64 {
	return r.used.Load()
}

// Close stops tracking GC cycles
func (r *Runtime[T]) Close() error {
	r.closed.Store(true)
	return nil
}
