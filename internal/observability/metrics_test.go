package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/meghna-verma/ENISI-MSM-control/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest(0, "GET", "/health", 200, 12*time.Millisecond)
	ObservePhase("act", 3*time.Millisecond)
	RecordStep()
}

func TestRecordMoveCountsByOutcome(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(moves.WithLabelValues("metrics_test", "transfer"))
	RecordMove("metrics_test", "transfer")
	RecordMove("metrics_test", "transfer")
	if got := testutil.ToFloat64(moves.WithLabelValues("metrics_test", "transfer")); got != before+2 {
		t.Fatalf("expected %v transfers, got %v", before+2, got)
	}
}

func TestSetLocalAgentsOverwrites(t *testing.T) {
	testlog.Start(t)
	SetLocalAgents(0, "metrics_test", 7)
	SetLocalAgents(0, "metrics_test", 3)
	if got := testutil.ToFloat64(localAgents.WithLabelValues("0", "metrics_test")); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}
}

func TestSetLocalAgentsKeepsRanksApart(t *testing.T) {
	testlog.Start(t)
	SetLocalAgents(0, "metrics_ranks", 5)
	SetLocalAgents(1, "metrics_ranks", 9)
	if got := testutil.ToFloat64(localAgents.WithLabelValues("0", "metrics_ranks")); got != 5 {
		t.Fatalf("expected rank 0 gauge 5, got %v", got)
	}
	if got := testutil.ToFloat64(localAgents.WithLabelValues("1", "metrics_ranks")); got != 9 {
		t.Fatalf("expected rank 1 gauge 9, got %v", got)
	}
}

func TestSyncPackagesAccumulate(t *testing.T) {
	testlog.Start(t)
	RecordSyncPackages("metrics_test", "values", 4)
	RecordSyncPackages("metrics_test", "values", 0)
	if got := testutil.ToFloat64(syncPackages.WithLabelValues("metrics_test", "values")); got != 4 {
		t.Fatalf("expected 4 packages, got %v", got)
	}
}

func TestSetupTracingWithoutEndpointIsNoop(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvOTelEndpoint, "")
	shutdown, err := SetupTracing(context.Background(), "enisi-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
