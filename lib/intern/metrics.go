package intern

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/hashcons/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
)

// sampleSize is the reservoir size of the histograms
const sampleSize = 1028

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// storeMetrics holds the counters and histograms of a store
type storeMetrics struct {
	hits     *xsync.Counter // lookups that found a live representative
	misses   *xsync.Counter // lookups that created a representative
	purged   *xsync.Counter // stale slots unlinked
	resizes  *xsync.Counter // bucket array resizes
	vetoes   *xsync.Counter // reclamations vetoed by the witness
	reclaims *xsync.Counter // reclamations reported by the collector

	registry    gometrics.Registry
	chainLength gometrics.Histogram // chain length per non-empty bucket, sampled by adjust
	adjustNanos gometrics.Histogram // duration of adjust

	set *metrics.Set // prometheus export
}

// newStoreMetrics creates the metrics of s, the gauges read the store lazily
func newStoreMetrics(s *Store) *storeMetrics {
	m := &storeMetrics{
		hits:     xsync.NewCounter(),
		misses:   xsync.NewCounter(),
		purged:   xsync.NewCounter(),
		resizes:  xsync.NewCounter(),
		vetoes:   xsync.NewCounter(),
		reclaims: xsync.NewCounter(),
		registry: gometrics.NewRegistry(),
		set:      metrics.NewSet(),
	}
	m.chainLength = gometrics.GetOrRegisterHistogram("chain_length", m.registry, gometrics.NewUniformSample(sampleSize))
	m.adjustNanos = gometrics.GetOrRegisterHistogram("adjust_nanos", m.registry, gometrics.NewUniformSample(sampleSize))

	counter := func(c *xsync.Counter) func() float64 {
		return func() float64 { return float64(c.Value()) }
	}
	name := func(metric string) string {
		return fmt.Sprintf(`hashcons_intern_%s{store=%q}`, metric, s.opts.Name)
	}

	m.set.NewGauge(name("hits"), counter(m.hits))
	m.set.NewGauge(name("misses"), counter(m.misses))
	m.set.NewGauge(name("purged"), counter(m.purged))
	m.set.NewGauge(name("resizes"), counter(m.resizes))
	m.set.NewGauge(name("vetoes"), counter(m.vetoes))
	m.set.NewGauge(name("reclaims"), counter(m.reclaims))
	m.set.NewGauge(name("shards"), func() float64 { return float64(len(s.shards)) })
	m.set.NewGauge(name("slots"), func() float64 { return float64(s.totals().slots) })
	m.set.NewGauge(name("buckets"), func() float64 { return float64(s.totals().capacity) })
	m.set.NewGauge(name("generation"), func() float64 { return float64(s.collector.Generation()) })
	m.set.NewGauge(name("pending_reclaims"), func() float64 { return float64(s.events.Len()) })

	return m
}

// WriteMetrics writes the store metrics in Prometheus text format to w
func (s *Store) WriteMetrics(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Info
// --------------------------------------------------------------------------

// HistogramInfo summarises a histogram
type HistogramInfo struct {
	Count int64   `json:"count"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P99   float64 `json:"p99"`
}

func newHistogramInfo(h gometrics.Histogram) HistogramInfo {
	snap := h.Snapshot()
	ps := snap.Percentiles([]float64{0.5, 0.99})
	return HistogramInfo{
		Count: snap.Count(),
		Min:   snap.Min(),
		Max:   snap.Max(),
		Mean:  snap.Mean(),
		P50:   ps[0],
		P99:   ps[1],
	}
}

// ShardInfo describes one shard
type ShardInfo struct {
	Index      int     `json:"index"`
	Slots      int     `json:"slots"` // linked slots, stale ones included
	Live       int     `json:"live"`
	Capacity   int     `json:"capacity"`
	LoadFactor float64 `json:"load_factor"`
}

// Info is a snapshot of the store state
type Info struct {
	Name         string                 `json:"name"`
	Hash         string                 `json:"hash"`
	Shards       int                    `json:"shards"`
	Generation   uint64                 `json:"generation"`
	Slots        int                    `json:"slots"`
	Live         int                    `json:"live"`
	Stale        int                    `json:"stale"`
	Capacity     int                    `json:"capacity"`
	LoadFactor   float64                `json:"load_factor"`
	MinLoad      float64                `json:"min_load"`
	MaxLoad      float64                `json:"max_load"`
	Distribution util.DistributionStats `json:"distribution"` // live representatives per shard
	Hits         int64                  `json:"hits"`
	Misses       int64                  `json:"misses"`
	Purged       int64                  `json:"purged"`
	Resizes      int64                  `json:"resizes"`
	Vetoes       int64                  `json:"vetoes"`
	Reclaims     int64                  `json:"reclaims"`
	ChainLength  HistogramInfo          `json:"chain_length"`
	AdjustNanos  HistogramInfo          `json:"adjust_nanos"`
	PerShard     []ShardInfo            `json:"per_shard,omitempty"`
}

// shardTotals is the slot count and capacity summed over all shards
type shardTotals struct {
	slots    int
	capacity int
}

func (s *Store) totals() shardTotals {
	var t shardTotals
	for _, sh := range s.shards {
		tok := sh.mu.RLock()
		t.slots += sh.slots
		t.capacity += len(sh.buckets)
		sh.mu.RUnlock(tok)
	}
	return t
}

// shardInfo counts the slots of a shard
func (s *Store) shardInfo(i int) ShardInfo {
	sh := s.shards[i]
	t := sh.mu.RLock()
	defer sh.mu.RUnlock(t)

	info := ShardInfo{Index: i, Slots: sh.slots, Capacity: len(sh.buckets)}
	for _, head := range sh.buckets {
		for sl := head; sl != nil; sl = sl.next {
			if !dead(sl.ref.Value()) {
				info.Live++
			}
		}
	}
	info.LoadFactor = float64(info.Slots) / float64(info.Capacity)
	return info
}

// Info returns a snapshot of the store state. If perShard is set, the
// snapshot includes the state of every shard.
//
// Thread-safety: This method is thread-safe, each shard is read-locked while it is counted.
func (s *Store) Info(perShard bool) Info {
	info := Info{
		Name:       s.opts.Name,
		Hash:       s.opts.Hash,
		Shards:     len(s.shards),
		Generation: s.collector.Generation(),
		MinLoad:    s.opts.MinLoad,
		MaxLoad:    s.opts.MaxLoad,
		Hits:       s.metrics.hits.Value(),
		Misses:     s.metrics.misses.Value(),
		Purged:     s.metrics.purged.Value(),
		Resizes:    s.metrics.resizes.Value(),
		Vetoes:     s.metrics.vetoes.Value(),
		Reclaims:   s.metrics.reclaims.Value(),
	}

	live := make([]int, len(s.shards))
	for i := range s.shards {
		si := s.shardInfo(i)
		info.Slots += si.Slots
		info.Live += si.Live
		info.Capacity += si.Capacity
		live[i] = si.Live
		if perShard {
			info.PerShard = append(info.PerShard, si)
		}
	}
	info.Stale = info.Slots - info.Live
	info.LoadFactor = float64(info.Slots) / float64(info.Capacity)
	info.Distribution = util.NewDistributionStats(live)
	info.ChainLength = newHistogramInfo(s.metrics.chainLength)
	info.AdjustNanos = newHistogramInfo(s.metrics.adjustNanos)
	return info
}
