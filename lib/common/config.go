package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/intern"
)

// --------------------------------------------------------------------------
// Collector selection
// --------------------------------------------------------------------------

// CollectorKind names a collector implementation
type CollectorKind string

const (
	CollectorHeap    CollectorKind = "heap"    // deterministic managed heap (gc.Heap)
	CollectorRuntime CollectorKind = "runtime" // Go garbage collector (gc.Runtime)
)

// ParseCollectorKind validates a collector name
func ParseCollectorKind(name string) (CollectorKind, error) {
	switch kind := CollectorKind(strings.ToLower(strings.TrimSpace(name))); kind {
	case CollectorHeap, CollectorRuntime:
		return kind, nil
	default:
		return "", fmt.Errorf("invalid collector %q (expected one of: heap, runtime)", name)
	}
}

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// Config holds all parameters needed to create an intern store and its collector
type Config struct {
	// Store parameters
	Name          string
	Shards        int
	MinBuckets    int
	MinLoad       float64
	MaxLoad       float64
	Hash          string
	Seed          uint64
	SweepInterval time.Duration
	SweepBatch    int

	// Collector parameters
	Collector  CollectorKind
	LimitBytes int64

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns a configuration matching intern.DefaultOptions and a managed heap
func DefaultConfig() *Config {
	opts := intern.DefaultOptions()
	return &Config{
		Name:          opts.Name,
		Shards:        opts.NumShards,
		MinBuckets:    opts.MinBuckets,
		MinLoad:       opts.MinLoad,
		MaxLoad:       opts.MaxLoad,
		Hash:          opts.Hash,
		SweepInterval: opts.SweepInterval,
		Collector:     CollectorHeap,
		LogLevel:      "info",
	}
}

// StoreOptions converts the configuration to intern.Options
func (c *Config) StoreOptions() *intern.Options {
	return &intern.Options{
		Name:            c.Name,
		NumShards:       c.Shards,
		MinBuckets:      c.MinBuckets,
		MinLoad:         c.MinLoad,
		MaxLoad:         c.MaxLoad,
		Hash:            c.Hash,
		Seed:            c.Seed,
		SweepInterval:   c.SweepInterval,
		MaxSweepPerTick: c.SweepBatch,
	}
}

// NewCollector creates the configured collector
func (c *Config) NewCollector() (gc.Collector[intern.Object], error) {
	switch c.Collector {
	case CollectorHeap:
		return gc.NewHeap(&gc.HeapOptions[intern.Object]{
			Tracer:     intern.Trace,
			LimitBytes: c.LimitBytes,
		}), nil
	case CollectorRuntime:
		return gc.NewRuntime[intern.Object](&gc.RuntimeOptions{
			LimitBytes: c.LimitBytes,
		}), nil
	default:
		return nil, fmt.Errorf("invalid collector %q", c.Collector)
	}
}

// NewStore creates the configured collector and a store backed by it.
// The collector is available through Store.Collector and must be closed by the caller.
func (c *Config) NewStore() (*intern.Store, error) {
	collector, err := c.NewCollector()
	if err != nil {
		return nil, err
	}
	return intern.NewStore(c.StoreOptions(), collector), nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Store settings
	addSection("Store")
	addField("Name", c.Name)
	addField("Shards", fmt.Sprintf("%d", c.Shards))
	addField("Min Buckets", fmt.Sprintf("%d", c.MinBuckets))
	addField("Load Band", fmt.Sprintf("[%.2f, %.2f]", c.MinLoad, c.MaxLoad))
	addField("Hash", c.Hash)
	if c.Seed != 0 {
		addField("Seed", fmt.Sprintf("%#x", c.Seed))
	} else {
		addField("Seed", "random")
	}

	// Sweeping
	addSection("Sweeper")
	addField("Interval", c.SweepInterval.String())
	if c.SweepBatch > 0 {
		addField("Shards per Sweep", fmt.Sprintf("%d", c.SweepBatch))
	} else {
		addField("Shards per Sweep", "all")
	}

	// Collector
	addSection("Collector")
	addField("Kind", string(c.Collector))
	if c.LimitBytes > 0 {
		addField("Limit", fmt.Sprintf("%d bytes", c.LimitBytes))
	} else {
		addField("Limit", "unlimited")
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
