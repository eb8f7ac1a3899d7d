package intern

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/hashcons/lib/shape"
)

// --------------------------------------------------------------------------
// Typed kinds
// --------------------------------------------------------------------------

// Handle is a typed reference to a representative. Two handles of the same
// store are equal iff they refer to structurally equal shapes.
type Handle[V any] struct {
	obj *Object
}

// Object returns the underlying representative
func (h Handle[V]) Object() *Object {
	return h.obj
}

// Value returns the value computed when the representative was created
func (h Handle[V]) Value() V {
	v, _ := h.obj.value.(V)
	return v
}

// IsZero reports whether h refers to nothing
func (h Handle[V]) IsZero() bool {
	return h.obj == nil
}

func (h Handle[V]) String() string {
	if h.obj == nil {
		return "Handle{}"
	}
	return fmt.Sprintf("Handle{%s}", h.obj)
}

// Kind interns keys of type K under one tag and attaches a value of type V to
// every representative. All keys of a kind must encode to the same number of words.
type Kind[K shape.Encoder, V any] struct {
	store *Store
	tag   shape.Tag
	init  func(key K) V
	width atomic.Int64 // encoded key width + 1, 0 until the first key is seen
}

// NewKind registers tag with the store and returns a typed kind for it.
// init (optional) computes the value of a new representative, it runs under the
// shard lock and must not intern into the same store.
func NewKind[K shape.Encoder, V any](store *Store, tag shape.Tag, ordered bool, init func(key K) V) *Kind[K, V] {
	store.RegisterKind(tag, ordered)
	return &Kind[K, V]{store: store, tag: tag, init: init}
}

// Tag returns the tag of the kind
func (k *Kind[K, V]) Tag() shape.Tag {
	return k.tag
}

// Make returns the handle of the unique representative of key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (k *Kind[K, V]) Make(key K) Handle[V] {
	words := k.encode(key)

	var init Initializer
	if k.init != nil {
		init = func(shape.Key, []byte) any {
			return k.init(key)
		}
	}
	return Handle[V]{obj: k.store.Intern(k.tag, words, 0, init)}
}

// Lookup returns the handle of the live representative of key, if any
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (k *Kind[K, V]) Lookup(key K) (Handle[V], bool) {
	obj, ok := k.store.Lookup(k.tag, k.encode(key))
	return Handle[V]{obj: obj}, ok
}

// encode encodes key and checks it against the width fixed by the first key
func (k *Kind[K, V]) encode(key K) shape.Key {
	words := shape.Encode(key)
	w := int64(len(words)) + 1
	if !k.width.CompareAndSwap(0, w) {
		if fixed := k.width.Load(); fixed != w {
			panic(fmt.Sprintf("intern: key of tag %s encodes to %d words, kind is fixed to %d", k.tag, w-1, fixed-1))
		}
	}
	return words
}
