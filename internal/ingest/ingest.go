// Package ingest turns an external tender dataset into records for the
// record store. Numeric cells are coerced rather than rejected: anything
// unparsable becomes 0 and is counted in the Summary.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tendertriage/pkg/domain"
)

// DefaultLimit caps the rows read from a source.
const DefaultLimit = 50000

// ErrEmptyBatch is returned when a source yields no usable record.
var ErrEmptyBatch = errors.New("ingest: no records loaded")

// ErrMissingColumns is returned when a source lacks a required column.
type ErrMissingColumns struct {
	Missing []string
}

func (e ErrMissingColumns) Error() string {
	return fmt.Sprintf("ingest: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Loader accepts a fully validated batch of records.
type Loader interface {
	Load(records []domain.Record) error
}

// Options tune Load.
type Options struct {
	Limit  int
	Logger *zap.Logger
}

// Summary reports what a Load did.
type Summary struct {
	Source   string
	Rows     int
	Loaded   int
	Skipped  int
	Coerced  int
	Duration time.Duration
}

// Load reads src, converts its rows and hands them to dst in one batch.
func Load(ctx context.Context, src Source, dst Loader, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	start := time.Now()
	summary := Summary{Source: src.Describe()}

	rows, err := src.Rows(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("ingest %s: %w", summary.Source, err)
	}
	summary.Rows = len(rows)

	records := make([]domain.Record, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		line := i + 1
		id := strings.TrimSpace(row[ColumnID])
		if id == "" {
			summary.Skipped++
			logger.Debug("skipping row without tender id", zap.Int("row", line))
			continue
		}
		if _, dup := seen[id]; dup {
			summary.Skipped++
			logger.Debug("skipping duplicate tender id", zap.Int("row", line), zap.String("tender_id", id))
			continue
		}
		seen[id] = struct{}{}

		rec := domain.Record{
			ID:          id,
			Status:      domain.StatusClean,
			PublishedAt: strings.TrimSpace(row[ColumnPublished]),
			Buyer:       strings.TrimSpace(row[ColumnBuyer]),
		}
		var coerced bool
		if rec.Amount, coerced = ParseAmount(row[ColumnAmount]); coerced {
			summary.Coerced++
			logger.Debug("coerced amount to 0", zap.String("tender_id", id), zap.String("raw", row[ColumnAmount]))
		}
		if raw, ok := row[ColumnTenderers]; ok {
			if rec.TendererCount, coerced = ParseCount(raw); coerced {
				summary.Coerced++
				logger.Debug("coerced tenderer count to 0", zap.String("tender_id", id), zap.String("raw", raw))
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return summary, fmt.Errorf("ingest %s: %w", summary.Source, ErrEmptyBatch)
	}
	if err := dst.Load(records); err != nil {
		return summary, fmt.Errorf("ingest %s: %w", summary.Source, err)
	}
	summary.Loaded = len(records)
	summary.Duration = time.Since(start)

	if summary.Coerced > 0 {
		logger.Warn("coerced unparsable numeric fields", zap.Int("count", summary.Coerced))
	}
	logger.Info("ingested tenders",
		zap.String("source", summary.Source),
		zap.Int("rows", summary.Rows),
		zap.Int("loaded", summary.Loaded),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}
