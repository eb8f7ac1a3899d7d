package stats

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ValentinKolb/hashcons/lib/common"
	"github.com/ValentinKolb/hashcons/lib/intern"
)

func newTestStore(t *testing.T) *intern.Store {
	t.Helper()
	conf := common.DefaultConfig()
	conf.Name = "stats-test"
	conf.Shards = 4

	s, err := conf.NewStore()
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		s.Collector().Close()
	})
	return s
}

func TestReport(t *testing.T) {
	s := newTestStore(t)

	var buf bytes.Buffer
	p := params{Count: 1000, KeepEvery: 10, Collect: true, Sweep: true, PerShard: true, Format: FormatAll}
	if err := report(&buf, s, p); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	out := buf.String()
	split := strings.Index(out, "hashcons_intern_")
	if split < 0 {
		t.Fatalf("Expected prometheus metrics in output:\n%s", out)
	}

	var info intern.Info
	if err := json.Unmarshal([]byte(out[:split]), &info); err != nil {
		t.Fatalf("Output does not start with JSON info: %v", err)
	}
	if info.Live != 100 || info.Stale != 0 || info.Reclaims != 900 {
		t.Errorf("Expected 100 live, 0 stale and 900 reclaims, got %d/%d/%d", info.Live, info.Stale, info.Reclaims)
	}
	if len(info.PerShard) != 4 {
		t.Errorf("Expected 4 shard entries, got %d", len(info.PerShard))
	}
	if !strings.Contains(out, `hashcons_intern_misses{store="stats-test"} 1000`) {
		t.Errorf("Expected the miss counter in the metrics:\n%s", out[split:])
	}
}

func TestReportFormats(t *testing.T) {
	s := newTestStore(t)

	var buf bytes.Buffer
	if err := report(&buf, s, params{Count: 10, Format: FormatPrometheus}); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if strings.Contains(buf.String(), "{\n") {
		t.Error("Prometheus format should not contain JSON")
	}

	buf.Reset()
	if err := report(&buf, s, params{Count: 10, Format: FormatJSON}); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if strings.Contains(buf.String(), "hashcons_intern_") {
		t.Error("JSON format should not contain metrics")
	}
}

func TestParamsValidate(t *testing.T) {
	valid := params{Count: 1, Format: FormatJSON}
	if err := valid.validate(); err != nil {
		t.Errorf("Expected valid params, got %v", err)
	}

	for _, p := range []params{
		{Count: -1, Format: FormatJSON},
		{KeepEvery: -1, Format: FormatJSON},
		{Format: "yaml"},
	} {
		if err := p.validate(); err == nil {
			t.Errorf("Expected an error for %+v", p)
		}
	}
}
