// Package snapshot writes classified records to the blob store so a run's
// outcome can be archived or handed to another tool.
package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tendertriage/internal/blob"
	"tendertriage/internal/triage"
	"tendertriage/pkg/domain"
)

// Format selects the rendering of a snapshot.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// KeyPrefix is where snapshots land when no explicit key is given.
const KeyPrefix = "exports/"

var columns = []string{"tender_id", "tender_value_amount", "tender_numberOfTenderers", "status"}

// Exporter renders records and stores them under a new key.
type Exporter struct {
	Store  blob.Store
	Logger *zap.Logger
	Now    func() time.Time
}

// Export renders records in format and Puts them at key. An empty key is
// derived from the run: exports/triage-<utc timestamp>-<run id>.<format>.
func (e *Exporter) Export(ctx context.Context, key string, format Format, records []domain.Record, report triage.Report) (blob.Info, error) {
	if format == "" {
		format = FormatCSV
	}
	payload, contentType, err := render(format, records)
	if err != nil {
		return blob.Info{}, err
	}
	if strings.TrimSpace(key) == "" {
		key = e.defaultKey(format, report)
	}
	info, err := e.Store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"run_id":  report.RunID,
			"records": strconv.Itoa(len(records)),
			"stamped": strconv.Itoa(report.Stamped),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store snapshot %s: %w", key, err)
	}
	e.logger().Info("snapshot exported",
		zap.String("key", info.Key),
		zap.String("driver", string(e.Store.Driver())),
		zap.Int("records", len(records)),
		zap.Int64("bytes", info.Size),
	)
	return info, nil
}

func (e *Exporter) defaultKey(format Format, report triage.Report) string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	run := report.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	if run == "" {
		run = "manual"
	}
	return fmt.Sprintf("%striage-%s-%s.%s", KeyPrefix, now().UTC().Format("20060102T150405Z"), run, format)
}

func (e *Exporter) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func render(format Format, records []domain.Record) ([]byte, string, error) {
	switch format {
	case FormatCSV:
		buf := &bytes.Buffer{}
		w := csv.NewWriter(buf)
		if err := w.Write(columns); err != nil {
			return nil, "", err
		}
		for _, rec := range records {
			row := []string{
				rec.ID,
				strconv.FormatFloat(rec.Amount, 'f', -1, 64),
				strconv.Itoa(rec.TendererCount),
				rec.Status.String(),
			}
			if err := w.Write(row); err != nil {
				return nil, "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	case FormatJSON:
		if records == nil {
			records = []domain.Record{}
		}
		payload, err := json.Marshal(records)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	default:
		return nil, "", domain.ErrInvalidInput{Field: "format", Value: string(format), Reason: "expected csv or json"}
	}
}
