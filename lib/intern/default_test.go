package intern

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/shape"
)

func TestDefaultStore(t *testing.T) {
	if defaultStore.Load() == nil {
		mustPanic(t, "default before init", func() {
			Default()
		})
	}

	heap := gc.NewHeap[Object](nil)
	if err := Init(testOptions(), heap); err != nil && !errors.Is(err, ErrInitialized) {
		t.Fatalf("Init failed: %v", err)
	}
	if err := Init(testOptions(), heap); !errors.Is(err, ErrInitialized) {
		t.Errorf("Expected ErrInitialized, got %v", err)
	}

	obj := Intern(1, shape.Words(1, 1), 0, nil)
	if got := Default().Intern(1, shape.Words(1, 1), 0, nil); got != obj {
		t.Error("Package-level Intern should use the default store")
	}
}
