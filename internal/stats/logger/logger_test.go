package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/discochess/irwin/internal/stats"
)

func TestCollector(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricModelsBuilt, 1)
	c.SetGauge(stats.MetricTrainingLoss, 0.25)
	c.ObserveHistogram(stats.MetricTrainingSeconds, 3)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("logged %d entries, want 3", len(entries))
	}
	for i, want := range []string{"counter", "gauge", "histogram"} {
		if entries[i].Message != want {
			t.Errorf("entry %d message = %q, want %q", i, entries[i].Message, want)
		}
		if entries[i].LoggerName != "stats" {
			t.Errorf("entry %d logger = %q, want stats", i, entries[i].LoggerName)
		}
	}
	if got := entries[1].ContextMap()["value"]; got != 0.25 {
		t.Errorf("gauge value = %v, want 0.25", got)
	}
}

func TestNew_NilLogger(t *testing.T) {
	c := New(nil)
	c.IncCounter("x", 1)
}
