package metrics

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

// captureBackend records calls for assertions.
type captureBackend struct {
	counters []counterCall
	observes []observeCall
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type observeCall struct {
	name   string
	value  float64
	labels Labels
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters = append(c.counters, counterCall{name, delta, labels})
}

func (c *captureBackend) ObserveDuration(name string, value float64, labels Labels) {
	c.observes = append(c.observes, observeCall{name, value, labels})
}

func (c *captureBackend) Flush() error { return nil }

// install swaps in a capture backend and restores the previous one afterward.
// The backend is a package global, so these tests do not run in parallel.
func install(tb testing.TB) *captureBackend {
	tb.Helper()
	prev := backend
	cb := &captureBackend{}
	SetBackend(cb)
	tb.Cleanup(func() { backend = prev })
	return cb
}

func TestRecordStage(t *testing.T) {
	cb := install(t)

	RecordStage("merge", nil, 250*time.Millisecond)
	RecordStage("read", errors.New("boom"), time.Second)

	if len(cb.counters) != 2 || len(cb.observes) != 2 {
		t.Fatalf("got %d counters / %d observations, want 2 / 2", len(cb.counters), len(cb.observes))
	}
	if got := cb.counters[0].labels["status"]; got != "success" {
		t.Errorf("first stage status = %q, want success", got)
	}
	if got := cb.counters[1].labels["status"]; got != "failure" {
		t.Errorf("second stage status = %q, want failure", got)
	}
	if cb.observes[0].value != 0.25 {
		t.Errorf("duration = %v, want 0.25", cb.observes[0].value)
	}
}

func TestRecordRows(t *testing.T) {
	cb := install(t)

	RecordRows("appended", 3)
	RecordRows("deleted", 0)
	RecordRows("read", -1)

	if len(cb.counters) != 1 {
		t.Fatalf("got %d counters, want 1 (zero and negative deltas skipped)", len(cb.counters))
	}
	call := cb.counters[0]
	if call.name != "rates_rows_total" || call.delta != 3 || call.labels["kind"] != "appended" {
		t.Errorf("call = %+v", call)
	}
}

func TestSetBackendNilKeepsCurrent(t *testing.T) {
	cb := install(t)

	SetBackend(nil)
	RecordRows("read", 1)
	if len(cb.counters) != 1 {
		t.Error("nil SetBackend replaced the active backend")
	}
}
