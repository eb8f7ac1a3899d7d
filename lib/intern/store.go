package intern

import (
	"fmt"
	"math/bits"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/ValentinKolb/hashcons/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("intern")

// exit terminates the process after a fatal allocation failure (replaced in tests)
var exit = os.Exit

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultMinLoad       = 0.5
	defaultMaxLoad       = 2.0
	defaultMinBuckets    = 16
	defaultSweepInterval = 100 * time.Millisecond
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Initializer fills the extra payload of a new representative and returns its value.
// It runs exactly once per representative, under the shard's write lock, and must
// not intern into the same store.
type Initializer func(key shape.Key, extra []byte) any

// Options configures the Store behavior during initialization
type Options struct {
	Name            string                    // Name used in logs and metric labels
	NumShards       int                       // Number of shards, rounded up to a power of two (0 = 4*GOMAXPROCS)
	MinBuckets      int                       // Initial and minimal buckets per shard, rounded up to a power of two
	MinLoad         float64                   // Lower load factor bound (slots per bucket)
	MaxLoad         float64                   // Upper load factor bound, must be >= 2*MinLoad
	Hash            string                    // Name of the hash function (see shape.HashNames)
	Seed            uint64                    // Hash seed (0 = random)
	SweepInterval   time.Duration             // Time between background sweeps
	MaxSweepPerTick int                       // Shards adjusted per sweep (0 = all dirty shards)
	OnAllocFailure  func(size int, err error) // Called when the collector can not allocate (nil = log and exit)
}

// DefaultOptions returns the default Store options
func DefaultOptions() *Options {
	return &Options{
		Name:          "default",
		NumShards:     nextPow2(4 * runtime.GOMAXPROCS(0)),
		MinBuckets:    defaultMinBuckets,
		MinLoad:       defaultMinLoad,
		MaxLoad:       defaultMaxLoad,
		Hash:          shape.DefaultHash,
		SweepInterval: defaultSweepInterval,
	}
}

// String returns a human-readable representation of the options
func (o *Options) String() string {
	return fmt.Sprintf("Options{Name: %s, NumShards: %d, MinBuckets: %d, Load: [%.2f, %.2f], Hash: %s, SweepInterval: %s, MaxSweepPerTick: %d}",
		o.Name, o.NumShards, o.MinBuckets, o.MinLoad, o.MaxLoad, o.Hash, o.SweepInterval, o.MaxSweepPerTick)
}

// normalize replaces invalid settings with safe defaults and logs a warning for each
func (o *Options) normalize() {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.NumShards <= 0 {
		o.NumShards = nextPow2(4 * runtime.GOMAXPROCS(0))
	} else if p := nextPow2(o.NumShards); p != o.NumShards {
		Logger.Warningf("%s: shard count %d is not a power of two, using %d", o.Name, o.NumShards, p)
		o.NumShards = p
	}
	if o.MinBuckets <= 0 {
		o.MinBuckets = defaultMinBuckets
	} else if p := nextPow2(o.MinBuckets); p != o.MinBuckets {
		Logger.Warningf("%s: minimal bucket count %d is not a power of two, using %d", o.Name, o.MinBuckets, p)
		o.MinBuckets = p
	}
	if o.MinLoad <= 0 || o.MaxLoad <= 0 || 2*o.MinLoad > o.MaxLoad {
		Logger.Warningf("%s: invalid load band [%.2f, %.2f] (need 0 < 2*min <= max), using [%.2f, %.2f]",
			o.Name, o.MinLoad, o.MaxLoad, defaultMinLoad, defaultMaxLoad)
		o.MinLoad, o.MaxLoad = defaultMinLoad, defaultMaxLoad
	}
	if _, ok := shape.LookupHash(o.Hash); !ok {
		Logger.Warningf("%s: unknown hash function %q, using %s", o.Name, o.Hash, shape.DefaultHash)
		o.Hash = shape.DefaultHash
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = defaultSweepInterval
	}
	if o.MaxSweepPerTick <= 0 {
		o.MaxSweepPerTick = o.NumShards
	}
	if o.OnAllocFailure == nil {
		o.OnAllocFailure = defaultAllocFailure
	}
}

// nextPow2 returns the smallest power of two >= n (1 for n <= 1)
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// kindInfo is the per tag registration with the collector
type kindInfo struct {
	ordered bool
}

// reclaimEvent notifies the sweeper that a shard holds a stale slot
type reclaimEvent struct {
	shard      int
	generation uint64
}

// Store is a sharded structural intern table. For every shape (tag, key) it
// holds at most one live representative; representatives are only weakly
// referenced and reclaimed by the collector once nothing else holds them.
type Store struct {
	opts       Options
	collector  gc.Collector[Object]
	hash       shape.HashFunc
	seed       uint64
	shards     []*shard
	shardShift uint
	nextID     atomic.Uint64
	kinds      *xsync.MapOf[shape.Tag, kindInfo]
	metrics    *storeMetrics

	// background sweeping
	events    *util.EventQueue[reclaimEvent]
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewStore creates a new Store backed by collector with the specified options (optional).
// The collector stays owned by the caller; Close does not close it.
func NewStore(opts *Options, collector gc.Collector[Object]) *Store {
	if collector == nil {
		panic("intern: nil collector")
	}

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	o.normalize()

	hash, _ := shape.LookupHash(o.Hash)
	seed := o.Seed
	if seed == 0 {
		seed = shape.GenerateSeed()
	}

	shards := make([]*shard, o.NumShards)
	for i := range shards {
		shards[i] = newShard(o.MinBuckets)
	}

	s := &Store{
		opts:       o,
		collector:  collector,
		hash:       hash,
		seed:       seed,
		shards:     shards,
		shardShift: uint(64 - bits.TrailingZeros(uint(o.NumShards))),
		kinds:      xsync.NewMapOf[shape.Tag, kindInfo](),
		events:     util.NewEventQueue[reclaimEvent](),
		done:       make(chan struct{}),
	}
	s.metrics = newStoreMetrics(s)

	s.startSweeper()

	Logger.Infof("%s: store created (%d shards, hash %s, collector capabilities %s)",
		o.Name, o.NumShards, o.Hash, collector.Capabilities())
	return s
}

// Name returns the configured store name
func (s *Store) Name() string {
	return s.opts.Name
}

// Options returns a copy of the normalized options
func (s *Store) Options() Options {
	return s.opts
}

// Collector returns the collector backing the store
func (s *Store) Collector() gc.Collector[Object] {
	return s.collector
}

// Close stops the background sweeper.
// It does not close the collector. Calling Close more than once has no effect.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.events.Close()
		Logger.Infof("%s: store closed", s.opts.Name)
	})
	return nil
}

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

// RegisterKind registers the disclaim callback for tag with the collector.
// Ordered kinds keep the objects their values reference alive for one more pass
// (if the collector supports it). Registering a tag again with a different
// ordered flag panics. Intern registers unknown tags as unordered.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) RegisterKind(tag shape.Tag, ordered bool) {
	info, _ := s.kinds.LoadOrCompute(tag, func() kindInfo {
		s.collector.RegisterDisclaim(tag, s.disclaim, ordered)
		return kindInfo{ordered: ordered}
	})
	if info.ordered != ordered {
		panic(fmt.Sprintf("intern: tag %s registered as ordered=%t, can not be used as ordered=%t", tag, info.ordered, ordered))
	}
}

// ensureKind registers tag as unordered unless it is already registered
func (s *Store) ensureKind(tag shape.Tag) {
	if _, ok := s.kinds.Load(tag); !ok {
		s.kinds.LoadOrCompute(tag, func() kindInfo {
			s.collector.RegisterDisclaim(tag, s.disclaim, false)
			return kindInfo{}
		})
	}
}

// disclaim is invoked by the collector for every reclamation candidate.
// It vetoes candidates that were marked since the pass started, all others are
// reported to the sweeper.
//
// Thread-safety: Called by the collector, it must not acquire shard locks.
func (s *Store) disclaim(c gc.Candidate[Object]) bool {
	if c.Object != nil && !c.Object.witness.reclaim(c.Generation) {
		s.metrics.vetoes.Inc()
		return true
	}
	s.metrics.reclaims.Inc()
	s.events.Push(reclaimEvent{shard: s.shardIndex(c.Hint), generation: c.Generation})
	return false
}

// --------------------------------------------------------------------------
// Intern
// --------------------------------------------------------------------------

// Intern returns the unique live representative of (tag, key), creating it if
// none exists. On creation init (optional) is called exactly once with the
// stored key and an extra payload of extraSize zeroed bytes; its result becomes
// the representative's Value. Concurrent calls with equal shapes return the same
// pointer. The key is copied, the caller keeps ownership.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Intern(tag shape.Tag, key shape.Key, extraSize int, init Initializer) *Object {
	if extraSize < 0 {
		panic(fmt.Sprintf("intern: negative extra size %d", extraSize))
	}
	s.ensureKind(tag)

	hash := s.hash(s.seed, tag, key)
	sh := s.shardFor(hash)

	// fast path
	if obj := s.lookupShared(sh, hash, tag, key); obj != nil {
		s.metrics.hits.Inc()
		return obj
	}

	return s.internSlow(sh, hash, tag, key, extraSize, init)
}

// internSlow repeats the lookup under the write lock and inserts on a miss
func (s *Store) internSlow(sh *shard, hash uint64, tag shape.Tag, key shape.Key, extraSize int, init Initializer) *Object {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if obj := s.lookupExclusive(sh, hash, tag, key); obj != nil {
		s.metrics.hits.Inc()
		return obj
	}
	s.metrics.misses.Inc()
	return s.insertNew(sh, hash, tag, key, extraSize, init)
}

// Lookup returns the live representative of (tag, key) without creating one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Lookup(tag shape.Tag, key shape.Key) (*Object, bool) {
	hash := s.hash(s.seed, tag, key)
	obj := s.lookupShared(s.shardFor(hash), hash, tag, key)
	return obj, obj != nil
}

// allocFailed reports a failed allocation to the configured hook.
// If the hook returns, the failure is turned into a panic.
func (s *Store) allocFailed(size int, err error) {
	s.opts.OnAllocFailure(size, err)
	panic(fmt.Sprintf("intern: %s: allocation of %d bytes failed: %v", s.opts.Name, size, err))
}

// defaultAllocFailure logs the failure and terminates the process
func defaultAllocFailure(size int, err error) {
	Logger.Errorf("allocation of %d bytes failed: %v", size, err)
	exit(2)
}
