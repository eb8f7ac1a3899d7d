package common

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/lni/dragonboat/v4/logger"
)

func TestParseCollectorKind(t *testing.T) {
	for _, name := range []string{"heap", "HEAP", " runtime "} {
		if _, err := ParseCollectorKind(name); err != nil {
			t.Errorf("Expected %q to be valid, got %v", name, err)
		}
	}
	if _, err := ParseCollectorKind("boehm"); err == nil {
		t.Error("Expected an error for an unknown collector")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"INFO":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
	}
	for name, want := range cases {
		got, err := ParseLogLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("Expected an error for an unknown log level")
	}
	if err := InitLoggers(&Config{LogLevel: "verbose"}); err == nil {
		t.Error("Expected InitLoggers to reject an unknown log level")
	}
}

func TestStoreOptions(t *testing.T) {
	conf := DefaultConfig()
	conf.Name = "cfg"
	conf.Shards = 8
	conf.Hash = shape.HashFNV1a
	conf.Seed = 7
	conf.SweepInterval = time.Second
	conf.SweepBatch = 2

	opts := conf.StoreOptions()
	if opts.Name != "cfg" || opts.NumShards != 8 || opts.Hash != shape.HashFNV1a || opts.Seed != 7 ||
		opts.SweepInterval != time.Second || opts.MaxSweepPerTick != 2 {
		t.Errorf("Unexpected options %s", opts)
	}
	if opts.MinLoad != conf.MinLoad || opts.MaxLoad != conf.MaxLoad || opts.MinBuckets != conf.MinBuckets {
		t.Errorf("Load settings not carried over: %s", opts)
	}
}

func TestNewStore(t *testing.T) {
	for _, kind := range []CollectorKind{CollectorHeap, CollectorRuntime} {
		t.Run(string(kind), func(t *testing.T) {
			conf := DefaultConfig()
			conf.Collector = kind

			s, err := conf.NewStore()
			if err != nil {
				t.Fatalf("NewStore failed: %v", err)
			}
			defer s.Collector().Close()
			defer s.Close()

			explicit := gc.Supports(s.Collector(), gc.CapExplicitCollect)
			if explicit != (kind == CollectorHeap) {
				t.Errorf("Unexpected capabilities %s for %s", s.Collector().Capabilities(), kind)
			}

			a := s.Intern(1, shape.Words(1), 0, nil)
			if b := s.Intern(1, shape.Words(1), 0, nil); a != b {
				t.Error("Store should intern")
			}
		})
	}

	conf := DefaultConfig()
	conf.Collector = "boehm"
	if _, err := conf.NewStore(); err == nil {
		t.Error("Expected an error for an unknown collector")
	}
}

func TestConfigString(t *testing.T) {
	conf := DefaultConfig()
	conf.LimitBytes = 1 << 20
	out := conf.String()

	for _, want := range []string{"STORE", "SWEEPER", "COLLECTOR", "LOGGING", "heap", "1048576 bytes", "random"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in config string:\n%s", want, out)
		}
	}
}
