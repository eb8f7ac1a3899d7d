package gc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("gc")

// ErrExhausted is returned by Alloc when the collector can not provide the requested memory
var ErrExhausted = errors.New("gc: memory exhausted")

// --------------------------------------------------------------------------
// Capabilities
// --------------------------------------------------------------------------

// Capability represents collector capabilities as bit flags
type Capability uint64

const (
	CapVeto            Capability = 1 << iota // Disclaim callbacks can veto a reclamation
	CapOrdered                                // Ordered disclaim (objects reachable from candidates survive the pass)
	CapExplicitCollect                        // Passes run only on an explicit Collect call
)

// capabilityNames lists the name of every single capability bit
var capabilityNames = []struct {
	flag Capability
	name string
}{
	{CapVeto, "Veto"},
	{CapOrdered, "Ordered"},
	{CapExplicitCollect, "ExplicitCollect"},
}

// String joins the names of all set bits with "|" ("None" if no bit is set).
// Unknown bits are reported as a hex remainder.
func (c Capability) String() string {
	if c == 0 {
		return "None"
	}
	var names []string
	rest := c
	for _, n := range capabilityNames {
		if c&n.flag != 0 {
			names = append(names, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(names, "|")
}

// --------------------------------------------------------------------------
// Interfaces
// --------------------------------------------------------------------------

// Candidate describes an object the collector is about to reclaim (or, for
// collectors without CapVeto, has already reclaimed, then Object is nil)
type Candidate[T any] struct {
	Object     *T        // the candidate, nil if it is already gone
	Tag        shape.Tag // the tag passed to Alloc
	Hint       uint64    // the hint passed to Alloc
	Generation uint64    // the generation of the current pass
}

// DisclaimFunc is invoked for every reclamation candidate of a registered tag.
// Returning true vetoes the reclamation (ignored if the collector lacks CapVeto).
type DisclaimFunc[T any] func(c Candidate[T]) (keep bool)

// Weak is a reference that does not keep its referent alive
type Weak[T any] interface {
	// Value returns the referent or nil if it was reclaimed or cleared
	Value() *T

	// Clear drops the reference, Value returns nil afterward
	Clear()
}

// Collector is the capability set the intern store consumes
type Collector[T any] interface {
	// Alloc admits obj as a collector-managed block of size bytes.
	// The hint is reported back in every Candidate for obj.
	Alloc(tag shape.Tag, size int, obj *T, hint uint64) error

	// MakeWeak creates a weak reference to an object admitted by Alloc
	MakeWeak(obj *T) Weak[T]

	// RegisterDisclaim registers the disclaim callback for all objects of a tag
	RegisterDisclaim(tag shape.Tag, fn DisclaimFunc[T], ordered bool)

	// Generation returns the generation counter (advanced once per pass)
	Generation() uint64

	// Capabilities reports which optional parts of the protocol are supported
	Capabilities() Capability

	// Close releases background resources
	Close() error
}

// Supports checks if c supports all given capabilities
func Supports[T any](c Collector[T], caps Capability) bool {
	return c.Capabilities()&caps == caps
}

// disclaimer is a registered disclaim callback
type disclaimer[T any] struct {
	fn      DisclaimFunc[T]
	ordered bool
}
