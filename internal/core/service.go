// Package core owns the record store and the service operations exposed to
// transports: the classifying query and the manual status override.
package core

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"tendertriage/internal/triage"
	"tendertriage/pkg/domain"
)

// DefaultPreviewSize is the number of records included in the query preview feed.
const DefaultPreviewSize = 20

// Service runs the cascade over a record store and applies manual overrides.
type Service struct {
	store       *RecordStore
	cascade     *triage.Cascade
	metrics     MetricsRecorder
	logger      *zap.Logger
	previewSize int
	now         func() time.Time

	// runMu keeps cascade runs from overlapping. Overrides never take it.
	runMu sync.Mutex
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCascade replaces the default isolation-forest cascade.
func WithCascade(c *triage.Cascade) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.cascade = c
		}
	}
}

// WithPreviewSize sets how many records the query preview feed carries.
func WithPreviewSize(n int) ServiceOption {
	return func(s *Service) {
		if n >= 0 {
			s.previewSize = n
		}
	}
}

// NewService constructs a service backed by store.
func NewService(store *RecordStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		metrics:     noopMetrics{},
		logger:      zap.NewNop(),
		previewSize: DefaultPreviewSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewRecordStore()
	}
	if s.cascade == nil {
		forest := triage.NewIsolationForest(triage.DefaultForestConfig())
		s.cascade = triage.New(forest, triage.WithLogger(s.logger))
	}
	return s
}

// Store returns the underlying record store.
func (s *Service) Store() *RecordStore {
	return s.store
}

// Classify performs one full cascade run over the store.
func (s *Service) Classify(ctx context.Context) (triage.Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	report, err := s.cascade.Run(ctx, s.store)
	s.metrics.Observe(ctx, "classify", err == nil, s.now().Sub(start))
	if err != nil {
		s.logger.Error("cascade run failed", zap.String("run_id", report.RunID), zap.Error(err))
		return report, fmt.Errorf("cascade: %w", err)
	}
	s.metrics.ObserveCascade(ctx, report)
	s.logger.Info("cascade run complete",
		zap.String("run_id", report.RunID),
		zap.Int("records", s.store.Len()),
		zap.Int("passes", len(report.Passes)),
		zap.Int("stamped", report.Stamped),
		zap.Bool("terminated_early", report.Terminated),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// PreviewEntry is a display row of the activity feed.
type PreviewEntry struct {
	ID     string        `json:"id"`
	Amount string        `json:"amount"`
	Status domain.Status `json:"status"`
	Date   string        `json:"date"`
	Buyer  string        `json:"buyer"`
}

// ResultEntry is the client-side view of a single record.
type ResultEntry struct {
	ID            string        `json:"tender_id"`
	Amount        float64       `json:"tender_value_amount"`
	TendererCount int           `json:"tender_numberOfTenderers"`
	Status        domain.Status `json:"status"`
}

// QueryResult is the response to a query: totals, preview feed, and all records.
type QueryResult struct {
	Total   int            `json:"transfers"`
	Preview []PreviewEntry `json:"activityTable"`
	Records []ResultEntry  `json:"result"`
	Report  triage.Report  `json:"-"`
}

// Query re-runs the cascade and then reports the store's state. Every query
// reclassifies.
func (s *Service) Query(ctx context.Context) (QueryResult, error) {
	start := s.now()
	report, err := s.Classify(ctx)
	if err != nil {
		s.metrics.Observe(ctx, "query", false, s.now().Sub(start))
		return QueryResult{}, err
	}

	records := s.store.Snapshot()
	result := QueryResult{
		Total:   len(records),
		Preview: make([]PreviewEntry, 0, min(s.previewSize, len(records))),
		Records: make([]ResultEntry, len(records)),
		Report:  report,
	}
	for i, rec := range records {
		if i < s.previewSize {
			result.Preview = append(result.Preview, previewOf(rec))
		}
		result.Records[i] = ResultEntry{
			ID:            rec.ID,
			Amount:        rec.Amount,
			TendererCount: rec.TendererCount,
			Status:        rec.Status,
		}
	}
	s.metrics.ObserveStatuses(ctx, s.store.Counts())
	s.metrics.Observe(ctx, "query", true, s.now().Sub(start))
	return result, nil
}

// SetStatus overrides a record's status. It is the only way to assign Clean
// or Pending and the only way to release a lock.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.Status) (domain.Record, error) {
	start := s.now()
	rec, err := s.store.SetStatus(id, status)
	s.metrics.Observe(ctx, "set_status", err == nil, s.now().Sub(start))
	if err != nil {
		s.logger.Warn("status override rejected", zap.String("tender_id", id), zap.Stringer("status", status), zap.Error(err))
		return domain.Record{}, err
	}
	s.logger.Info("status override applied", zap.String("tender_id", id), zap.Stringer("status", status))
	return rec, nil
}

func previewOf(rec domain.Record) PreviewEntry {
	return PreviewEntry{
		ID:     rec.ID,
		Amount: FormatAmount(rec.Amount),
		Status: rec.Status,
		Date:   displayDate(rec.PublishedAt),
		Buyer:  firstNonEmpty(rec.Buyer, "Unknown"),
	}
}

// FormatAmount renders an amount in rupees with thousands separators and two decimals.
func FormatAmount(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "₹" + strconv.FormatFloat(amount, 'f', 2, 64)
	}
	fixed := strconv.FormatFloat(math.Abs(amount), 'f', 2, 64)
	whole, frac, _ := strings.Cut(fixed, ".")
	n, _ := new(big.Int).SetString(whole, 10)
	sign := ""
	if amount < 0 && fixed != "0.00" {
		sign = "-"
	}
	return "₹" + sign + humanize.BigComma(n) + "." + frac
}

func displayDate(published string) string {
	if published == "" {
		return "N/A"
	}
	if len(published) > 10 {
		return published[:10]
	}
	return published
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
