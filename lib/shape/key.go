package shape

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Tag
// --------------------------------------------------------------------------

// Tag identifies the kind of an interned value (analogous to a type id)
type Tag uint32

func (t Tag) String() string {
	return fmt.Sprintf("tag(%d)", uint32(t))
}

// --------------------------------------------------------------------------
// Key
// --------------------------------------------------------------------------

// Key is the canonical, fixed-size word encoding of an interned value's identity.
// A Key handed to the intern store is copied on insert, the caller keeps ownership.
type Key []uint64

// Words builds a Key from the given words
func Words(words ...uint64) Key {
	return Key(words)
}

// Equal reports whether both keys have the same length and the same words
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the key that does not share memory with k
func (k Key) Clone() Key {
	c := make(Key, len(k))
	copy(c, k)
	return c
}

// Width returns the number of words in the key
func (k Key) Width() int {
	return len(k)
}

// SizeBytes returns the size of the key in bytes
func (k Key) SizeBytes() int {
	return len(k) * 8
}

func (k Key) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, w := range k {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%#x", w))
	}
	sb.WriteByte(']')
	return sb.String()
}

// --------------------------------------------------------------------------
// Encoder
// --------------------------------------------------------------------------

// Encoder is implemented by typed keys that flatten themselves into words.
// AppendWords must append the same number of words on every call and must
// write every word, there is no padding with indeterminate content.
type Encoder interface {
	AppendWords(dst Key) Key
}

// Encode flattens e into a fresh Key
func Encode(e Encoder) Key {
	return e.AppendWords(make(Key, 0, 4))
}

// Bool converts a boolean into a key word
func Bool(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
