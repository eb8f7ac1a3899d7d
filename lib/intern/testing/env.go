package testing

import (
	"runtime"
	"sync"
	"time"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/intern"
)

// Env is a store under test together with control over its collector
type Env struct {
	Store     *intern.Store
	Collector gc.Collector[intern.Object]

	// Collect runs one collection pass. For collectors without CapExplicitCollect
	// it runs the Go garbage collector.
	Collect func()

	// Hold keeps obj alive across Collect until it is released again
	Hold    func(obj *intern.Object)
	Release func(obj *intern.Object)
}

// Close closes the store and its collector
func (e *Env) Close() {
	e.Store.Close()
	e.Collector.Close()
}

// StoreFactory creates a new Env with the given store options
type StoreFactory func(opts *intern.Options) *Env

// HeapFactory creates stores backed by a managed gc.Heap
func HeapFactory(opts *intern.Options) *Env {
	heap := gc.NewHeap(&gc.HeapOptions[intern.Object]{Tracer: intern.Trace})
	return &Env{
		Store:     intern.NewStore(opts, heap),
		Collector: heap,
		Collect:   func() { heap.Collect() },
		Hold:      heap.Root,
		Release:   heap.Unroot,
	}
}

// RuntimeFactory creates stores backed by the Go runtime collector
func RuntimeFactory(opts *intern.Options) *Env {
	rt := gc.NewRuntime[intern.Object](nil)

	var mu sync.Mutex
	held := make(map[*intern.Object]int)

	return &Env{
		Store:     intern.NewStore(opts, rt),
		Collector: rt,
		Collect: func() {
			runtime.GC()
			// give cleanups queued by the cycle a chance to run
			time.Sleep(time.Millisecond)
		},
		Hold: func(obj *intern.Object) {
			mu.Lock()
			defer mu.Unlock()
			held[obj]++
		},
		Release: func(obj *intern.Object) {
			mu.Lock()
			defer mu.Unlock()
			if held[obj]--; held[obj] <= 0 {
				delete(held, obj)
			}
		},
	}
}
