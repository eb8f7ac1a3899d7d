package shape

import "testing"

type pairKey struct {
	left, right uint64
	flag        bool
}

func (p pairKey) AppendWords(dst Key) Key {
	return append(dst, p.left, p.right, Bool(p.flag))
}

// TestKeyEqual tests word-for-word comparison of keys
func TestKeyEqual(t *testing.T) {
	a := Words(1, 2, 3)

	if !a.Equal(Words(1, 2, 3)) {
		t.Error("Keys with equal words should be equal")
	}

	if a.Equal(Words(1, 2)) {
		t.Error("Keys of different width should not be equal")
	}

	if a.Equal(Words(1, 2, 4)) {
		t.Error("Keys with different words should not be equal")
	}

	if !Words().Equal(nil) {
		t.Error("Empty key should equal nil key")
	}
}

// TestKeyClone tests that a cloned key does not share memory with the original
func TestKeyClone(t *testing.T) {
	orig := Words(7, 8)
	clone := orig.Clone()
	orig[0] = 99

	if clone[0] != 7 {
		t.Errorf("Clone should not be affected by changes to the original, got %v", clone)
	}

	if clone.Width() != 2 || clone.SizeBytes() != 16 {
		t.Errorf("Unexpected width/size %d/%d", clone.Width(), clone.SizeBytes())
	}
}

// TestEncode tests flattening a typed key via the Encoder interface
func TestEncode(t *testing.T) {
	k := Encode(pairKey{left: 1, right: 2, flag: true})

	if !k.Equal(Words(1, 2, 1)) {
		t.Errorf("Expected [1 2 1], got %v", k)
	}

	if got := Words(0x1, 0xff).String(); got != "[0x1 0xff]" {
		t.Errorf("Unexpected key string %q", got)
	}
}
