// Package triage implements the cascading severity classifier: repeated
// outlier scoring over a shrinking working set, with each pass stamping a
// band of normalized scores with a status from the ladder.
package triage

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tendertriage/pkg/domain"
)

// Pass is one row of the cascade schedule.
type Pass struct {
	Band Band
	// Stamp is written to flagged, unlocked records unless Discard is set.
	Stamp   domain.Status
	Discard bool
}

// Schedule is the ordered list of passes a run walks through.
type Schedule []Pass

// DefaultSchedule returns the five-pass ladder. Passes 3 and 5 only remove
// their band from the working set; pass 5 reuses pass 4's band.
func DefaultSchedule() Schedule {
	return Schedule{
		{Band: Band{Upper: -0.80, Lower: -1.00}, Stamp: domain.StatusRejected},
		{Band: Band{Upper: -0.60, Lower: -0.80}, Stamp: domain.StatusPending},
		{Band: Band{Upper: -0.40, Lower: -0.60}, Discard: true},
		{Band: Band{Upper: 0.00, Lower: -0.40}, Stamp: domain.StatusConfirmed},
		{Band: Band{Upper: 0.00, Lower: -0.40}, Discard: true},
	}
}

// All yields passes numbered from 1.
func (s Schedule) All() iter.Seq2[int, Pass] {
	return func(yield func(int, Pass) bool) {
		for i, p := range s {
			if !yield(i+1, p) {
				return
			}
		}
	}
}

// PassReport describes what a single pass saw and did.
type PassReport struct {
	Pass       int    `json:"pass"`
	Band       Band   `json:"band"`
	Stamp      string `json:"stamp,omitempty"`
	WorkingSet int    `json:"working_set"`
	Flagged    int    `json:"flagged"`
	Stamped    int    `json:"stamped"`
	Locked     int    `json:"locked"`
}

// Report summarises a cascade run.
type Report struct {
	RunID      string        `json:"run_id"`
	Passes     []PassReport  `json:"passes"`
	Stamped    int           `json:"stamped"`
	Terminated bool          `json:"terminated_early"`
	Duration   time.Duration `json:"duration"`
}

// Cascade runs the schedule against a ledger.
type Cascade struct {
	scorer   Scorer
	schedule Schedule
	logger   *zap.Logger
	now      func() time.Time
}

// Option customises a Cascade.
type Option func(*Cascade)

// WithSchedule replaces the default five-pass schedule.
func WithSchedule(s Schedule) Option {
	return func(c *Cascade) { c.schedule = s }
}

// WithLogger attaches a logger for per-pass diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cascade) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a cascade around scorer.
func New(scorer Scorer, opts ...Option) *Cascade {
	c := &Cascade{
		scorer:   scorer,
		schedule: DefaultSchedule(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one full cascade. The working set is re-derived from the ledger
// and only shrinks; statuses are written back through the ledger so records
// locked at the moment of writing are never overwritten.
func (c *Cascade) Run(ctx context.Context, ledger Ledger) (Report, error) {
	started := c.now()
	report := Report{RunID: uuid.NewString()}
	log := c.logger.With(zap.String("run_id", report.RunID))

	working := ledger.Samples()
	for number, pass := range c.schedule.All() {
		if len(working) == 0 {
			report.Terminated = true
			log.Debug("working set exhausted", zap.Int("pass", number))
			break
		}

		values := make([]float64, len(working))
		for i, s := range working {
			values[i] = s.Amount
		}
		raw, err := c.scorer.Score(ctx, Standardize(values))
		if err != nil {
			return report, fmt.Errorf("pass %d: %w", number, err)
		}
		if len(raw) != len(working) {
			return report, fmt.Errorf("pass %d: scorer returned %d scores for %d samples", number, len(raw), len(working))
		}
		hits := pass.Band.Flag(Normalize(raw))

		flagged := make([]string, len(hits))
		for i, idx := range hits {
			flagged[i] = working[idx].ID
		}
		pr := PassReport{
			Pass:       number,
			Band:       pass.Band,
			WorkingSet: len(working),
			Flagged:    len(flagged),
		}
		if !pass.Discard {
			stamped, locked := Classify(ledger, flagged, pass.Stamp)
			pr.Stamp = pass.Stamp.String()
			pr.Stamped = len(stamped)
			pr.Locked = locked
			report.Stamped += len(stamped)
		}
		report.Passes = append(report.Passes, pr)
		log.Debug("cascade pass",
			zap.Int("pass", number),
			zap.Stringer("band", pass.Band),
			zap.Int("working_set", pr.WorkingSet),
			zap.Int("flagged", pr.Flagged),
			zap.Int("stamped", pr.Stamped),
			zap.Int("locked", pr.Locked),
		)

		working = without(working, hits)
	}
	report.Duration = c.now().Sub(started)
	return report, nil
}

// without drops the positions in hits (ascending) from samples.
func without(samples []domain.Sample, hits []int) []domain.Sample {
	if len(hits) == 0 {
		return samples
	}
	kept := make([]domain.Sample, 0, len(samples)-len(hits))
	next := 0
	for i, s := range samples {
		if next < len(hits) && hits[next] == i {
			next++
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
