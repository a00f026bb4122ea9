package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tendertriage/internal/triage"
	"tendertriage/pkg/domain"
)

// flagAll stamps every record in a single pass, standing in for a model that
// considers the whole population anomalous.
func flagAll(status domain.Status) *triage.Cascade {
	identity := triage.ScorerFunc(func(_ context.Context, v []float64) ([]float64, error) {
		return append([]float64(nil), v...), nil
	})
	return triage.New(identity, triage.WithSchedule(triage.Schedule{
		{Band: triage.Band{Upper: 2, Lower: -2}, Stamp: status},
	}))
}

func TestQueryEmptyStore(t *testing.T) {
	svc := NewService(NewRecordStore())
	res, err := svc.Query(context.Background())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Total != 0 || len(res.Preview) != 0 || len(res.Records) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	payload, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"transfers":0,"activityTable":[],"result":[]}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestQueryExtremeOutlierScenario(t *testing.T) {
	store := seedStore(t,
		domain.Record{ID: "A", Amount: 100},
		domain.Record{ID: "B", Amount: 100000},
		domain.Record{ID: "C", Amount: 150},
	)
	scorer := &passRecorder{inner: triage.NewIsolationForest(triage.DefaultForestConfig())}
	res, err := NewService(store, WithCascade(triage.New(scorer))).Query(context.Background())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Total != 3 || len(res.Records) != 3 {
		t.Fatalf("unexpected totals %+v", res)
	}
	if len(scorer.first) != 3 {
		t.Fatalf("first pass saw %d values, want 3", len(scorer.first))
	}
	// amounts load in order A, B, C
	normalized := triage.Normalize(scorer.first)
	if normalized[1] != -1 || normalized[0] <= -1 || normalized[2] <= -1 {
		t.Fatalf("B should be the single most extreme score in pass 1, got %v", normalized)
	}
	for _, rec := range res.Records {
		if rec.ID != "B" && rec.Status != domain.StatusClean {
			t.Fatalf("%s should remain Clean, got %s", rec.ID, rec.Status)
		}
	}
	if len(res.Report.Passes) != 5 {
		t.Fatalf("expected a full five-pass run, got %d", len(res.Report.Passes))
	}
}

func TestManualConfirmationSurvivesCascade(t *testing.T) {
	store := seedStore(t,
		domain.Record{ID: "A", Amount: 100},
		domain.Record{ID: "B", Amount: 100000},
		domain.Record{ID: "C", Amount: 150},
	)
	svc := NewService(store, WithCascade(flagAll(domain.StatusRejected)))
	if _, err := svc.SetStatus(context.Background(), "C", domain.StatusConfirmed); err != nil {
		t.Fatalf("override: %v", err)
	}
	res, err := svc.Query(context.Background())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := map[string]domain.Status{}
	for _, rec := range res.Records {
		got[rec.ID] = rec.Status
	}
	if got["C"] != domain.StatusConfirmed {
		t.Fatalf("lock not honoured: C is %s", got["C"])
	}
	if got["A"] != domain.StatusRejected || got["B"] != domain.StatusRejected {
		t.Fatalf("unlocked records should be stamped: %v", got)
	}
}

func TestOverrideReflectedInNextQuery(t *testing.T) {
	store := seedStore(t,
		domain.Record{ID: "A", Amount: 100},
		domain.Record{ID: "B", Amount: 100000},
		domain.Record{ID: "C", Amount: 150},
	)
	svc := NewService(store, WithCascade(flagAll(domain.StatusRejected)))
	if _, err := svc.Query(context.Background()); err != nil {
		t.Fatalf("query: %v", err)
	}
	if rec, _ := store.Get("A"); rec.Status != domain.StatusRejected {
		t.Fatalf("expected cascade to reject A, got %s", rec.Status)
	}
	// releasing the lock hands A back to the cascade
	if _, err := svc.SetStatus(context.Background(), "A", domain.StatusClean); err != nil {
		t.Fatalf("override: %v", err)
	}
	if rec, _ := store.Get("A"); rec.Status != domain.StatusClean {
		t.Fatalf("override not applied, got %s", rec.Status)
	}

	svc = NewService(store, WithCascade(flagAll(domain.StatusPending)))
	if _, err := svc.SetStatus(context.Background(), "B", domain.StatusConfirmed); err != nil {
		t.Fatalf("override: %v", err)
	}
	res, err := svc.Query(context.Background())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := map[string]domain.Status{"A": domain.StatusPending, "B": domain.StatusConfirmed, "C": domain.StatusRejected}
	for _, rec := range res.Records {
		if rec.Status != want[rec.ID] {
			t.Fatalf("%s: expected %s, got %s", rec.ID, want[rec.ID], rec.Status)
		}
	}
}

func TestSetStatusUnknownID(t *testing.T) {
	store := seedStore(t, domain.Record{ID: "A", Amount: 1, Status: domain.StatusPending})
	svc := NewService(store)
	_, err := svc.SetStatus(context.Background(), "Z", domain.StatusRejected)
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if rec, _ := store.Get("A"); rec.Status != domain.StatusPending || store.Len() != 1 {
		t.Fatalf("store mutated by failed override: %+v", rec)
	}
}

func TestQueryPreviewFormatting(t *testing.T) {
	store := seedStore(t,
		domain.Record{ID: "T1", Amount: 1234567.891, PublishedAt: "2023-04-05T10:11:12Z", Buyer: "Public Works"},
		domain.Record{ID: "T2", Amount: 0},
		domain.Record{ID: "T3", Amount: 42},
	)
	svc := NewService(store, WithPreviewSize(2), WithCascade(triage.New(triage.ScorerFunc(
		func(_ context.Context, v []float64) ([]float64, error) { return make([]float64, len(v)), nil },
	))))
	res, err := svc.Query(context.Background())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Preview) != 2 || len(res.Records) != 3 {
		t.Fatalf("expected preview capped at 2 and 3 records, got %d/%d", len(res.Preview), len(res.Records))
	}
	first := res.Preview[0]
	if first.Amount != "₹1,234,567.89" || first.Date != "2023-04-05" || first.Buyer != "Public Works" {
		t.Fatalf("unexpected preview entry %+v", first)
	}
	second := res.Preview[1]
	if second.Amount != "₹0.00" || second.Date != "N/A" || second.Buyer != "Unknown" {
		t.Fatalf("unexpected defaults %+v", second)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "₹0.00"},
		{12.5, "₹12.50"},
		{999.999, "₹1,000.00"},
		{1234567.891, "₹1,234,567.89"},
		{1.5e19, "₹15,000,000,000,000,000,000.00"},
		{1e20, "₹100,000,000,000,000,000,000.00"},
		{-42.5, "₹-42.50"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestServiceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if _, err := NewPrometheusMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	store := seedStore(t, domain.Record{ID: "A", Amount: 1}, domain.Record{ID: "B", Amount: 2})
	svc := NewService(store, WithMetrics(metrics), WithCascade(flagAll(domain.StatusPending)))
	if _, err := svc.Query(context.Background()); err != nil {
		t.Fatalf("query: %v", err)
	}
	_, _ = svc.SetStatus(context.Background(), "nope", domain.StatusClean)

	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("query", "success")); got != 1 {
		t.Fatalf("expected one successful query, got %g", got)
	}
	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("set_status", "error")); got != 1 {
		t.Fatalf("expected one failed override, got %g", got)
	}
	if got := testutil.ToFloat64(metrics.stamped.WithLabelValues("Pending")); got != 2 {
		t.Fatalf("expected two Pending stamps, got %g", got)
	}
	if got := testutil.ToFloat64(metrics.records.WithLabelValues("Pending")); got != 2 {
		t.Fatalf("expected gauge of 2 Pending records, got %g", got)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP tendertriage_cascade_flagged_total Records flagged per cascade pass.
# TYPE tendertriage_cascade_flagged_total counter
tendertriage_cascade_flagged_total{pass="1"} 2
`), "tendertriage_cascade_flagged_total"); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestOverridesDuringCascade(t *testing.T) {
	var records []domain.Record
	for i := 0; i < 300; i++ {
		records = append(records, domain.Record{ID: string(rune('A'+i%26)) + strings.Repeat("x", i/26), Amount: float64(i * i % 977)})
	}
	store := seedStore(t, records...)
	svc := NewService(store)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			if _, err := svc.Query(context.Background()); err != nil {
				t.Errorf("query: %v", err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for _, rec := range records {
			if _, err := svc.SetStatus(context.Background(), rec.ID, domain.StatusConfirmed); err != nil {
				t.Errorf("override: %v", err)
			}
		}
	}()
	wg.Wait()

	// every record was confirmed, and confirmed records are locked against later runs
	if _, err := svc.Query(context.Background()); err != nil {
		t.Fatalf("query: %v", err)
	}
	if counts := store.Counts(); counts[domain.StatusConfirmed] != len(records) {
		t.Fatalf("expected every record confirmed, got %v", counts)
	}
}

// passRecorder keeps the raw scores of the first pass.
type passRecorder struct {
	inner triage.Scorer
	first []float64
}

func (p *passRecorder) Score(ctx context.Context, values []float64) ([]float64, error) {
	out, err := p.inner.Score(ctx, values)
	if err == nil && p.first == nil {
		p.first = append([]float64(nil), out...)
	}
	return out, err
}
