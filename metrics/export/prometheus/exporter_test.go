package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
)

type stubSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (s *stubSource) MetricsSnapshot() goSession.MetricsSnapshot { return s.snapshot }
func (s *stubSource) AuditDropped() uint64                       { return s.dropped }

func sampleSource() *stubSource {
	return &stubSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricSessionCreated: 12,
				goSession.MetricUpdateConflict: 3,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricUpdateLatency: {5, 2, 1, 0, 0, 0, 0, 1},
			},
		},
		dropped: 4,
	}
}

func TestRenderCounters(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(sampleSource())
	out := exporter.Render()

	for _, want := range []string{
		"# TYPE gosession_created_total counter",
		"gosession_created_total 12",
		"gosession_update_conflict_total 3",
		"gosession_ended_total 0",
		"gosession_audit_dropped_total 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistogramCumulative(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(sampleSource())
	out := exporter.Render()

	for _, want := range []string{
		"# TYPE gosession_update_latency_seconds histogram",
		`gosession_update_latency_seconds_bucket{le="0.005"} 5`,
		`gosession_update_latency_seconds_bucket{le="0.01"} 7`,
		`gosession_update_latency_seconds_bucket{le="0.025"} 8`,
		`gosession_update_latency_seconds_bucket{le="+Inf"} 9`,
		"gosession_update_latency_seconds_count 9",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(&stubSource{})
	if out := exporter.Render(); out != "" {
		t.Fatalf("expected empty render, got:\n%s", out)
	}
}

func TestHandlerServesText(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(sampleSource())

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "gosession_created_total 12") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}

func TestEngineSatisfiesSource(t *testing.T) {
	engine, err := goSession.New().WithDirectory(t.TempDir()).Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)

	exporter := NewPrometheusExporter(engine)
	if !strings.Contains(exporter.Render(), "gosession_created_total 0") {
		t.Fatal("engine-backed render missing counters")
	}
}
