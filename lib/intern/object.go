package intern

import (
	"fmt"

	"github.com/ValentinKolb/hashcons/lib/shape"
)

// objectHeaderSize is the accounted size of an Object without key and extra payload
const objectHeaderSize = 64

// Object is the canonical representative of a (Tag, Key) shape.
// At most one live Object exists per shape, so two Objects of the same store
// are structurally equal iff they are the same pointer.
type Object struct {
	tag     shape.Tag
	hash    uint64
	id      uint64    // unique per store, never reused
	key     shape.Key // private copy, immutable
	extra   []byte    // filled once by the initializer
	value   any       // returned once by the initializer
	witness witness
}

// Tag returns the tag of the shape
func (o *Object) Tag() shape.Tag {
	return o.tag
}

// Key returns the key of the shape. The returned slice must not be modified.
func (o *Object) Key() shape.Key {
	return o.key
}

// ID returns a store-unique id. A representative created after an earlier one
// was reclaimed always has a different id.
func (o *Object) ID() uint64 {
	return o.id
}

// Hash returns the hash of the shape
func (o *Object) Hash() uint64 {
	return o.hash
}

// Extra returns the extra payload written by the initializer (not part of identity)
func (o *Object) Extra() []byte {
	return o.extra
}

// Value returns the value returned by the initializer (not part of identity)
func (o *Object) Value() any {
	return o.value
}

// Ready reports whether the initializer has completed
func (o *Object) Ready() bool {
	return o.witness.has(flagReady)
}

// Reclaimed reports whether a collector pass has reclaimed the object.
// A reclaimed object is never returned by the store again.
func (o *Object) Reclaimed() bool {
	return o.witness.has(flagReclaimed)
}

// Generation returns the generation the object was last marked in
func (o *Object) Generation() uint64 {
	gen, _ := o.witness.load()
	return gen
}

func (o *Object) String() string {
	return fmt.Sprintf("Object{ID: %d, Tag: %d, Key: %s}", o.id, o.tag, o.key)
}

// --------------------------------------------------------------------------
// Tracing
// --------------------------------------------------------------------------

// Referrer is implemented by initializer values that hold strong references to other objects
type Referrer interface {
	Refs() []*Object
}

// Trace reports the objects referenced by obj's value.
// It matches gc.Tracer[Object] and is meant for gc.HeapOptions.
func Trace(obj *Object, visit func(*Object)) {
	if r, ok := obj.value.(Referrer); ok {
		for _, child := range r.Refs() {
			visit(child)
		}
	}
}
