package intern

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/shape"
)

// ErrInitialized is returned by Init if the default store already exists
var ErrInitialized = errors.New("intern: default store already initialized")

var (
	defaultMu    sync.Mutex
	defaultStore atomic.Pointer[Store]
)

// Init creates the process-wide default store. It must be called once, before
// Default or the package-level Intern are used.
//
// Thread-safety: This function is thread-safe, only the first call succeeds.
func Init(opts *Options, collector gc.Collector[Object]) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultStore.Load() != nil {
		return ErrInitialized
	}
	defaultStore.Store(NewStore(opts, collector))
	return nil
}

// Default returns the process-wide store. It panics if Init was not called.
func Default() *Store {
	s := defaultStore.Load()
	if s == nil {
		panic("intern: default store used before Init")
	}
	return s
}

// Intern interns (tag, key) into the default store (see Store.Intern)
func Intern(tag shape.Tag, key shape.Key, extraSize int, init Initializer) *Object {
	return Default().Intern(tag, key, extraSize, init)
}
