package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tendertriage/internal/blob"
	"tendertriage/internal/infra/tabular"
	"tendertriage/pkg/domain"
)

type sliceLoader struct {
	records []domain.Record
	err     error
}

func (l *sliceLoader) Load(records []domain.Record) error {
	if l.err != nil {
		return l.err
	}
	l.records = append([]domain.Record(nil), records...)
	return nil
}

const sampleCSV = "\ufefftender_id,tender_value_amount,tender_numberOfTenderers,tender_datePublished,buyer_name\n" +
	"T1,\"1,234,567.89\",3,2021-04-01T10:00:00Z,Public Works\n" +
	"T2,n/a,2.0,,\n" +
	",500,1,,\n" +
	"T1,999,1,,Duplicate\n" +
	"T3,-40,x,2021-05-02,Health\n"

func putBlob(t *testing.T, store blob.Store, key, body string) {
	t.Helper()
	_, err := store.Put(context.Background(), key, strings.NewReader(body), blob.PutOptions{ContentType: "text/csv"})
	require.NoError(t, err)
}

func TestLoadFromBlobCSV(t *testing.T) {
	store := blob.NewMemory()
	putBlob(t, store, "main.csv", sampleCSV)

	core, logs := observer.New(zapcore.DebugLevel)
	dst := &sliceLoader{}
	summary, err := Load(context.Background(), BlobSource{Store: store, Key: "main.csv"}, dst, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Rows)
	assert.Equal(t, 3, summary.Loaded)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 3, summary.Coerced)
	assert.Equal(t, "memory:main.csv", summary.Source)

	require.Len(t, dst.records, 3)
	assert.Equal(t, domain.Record{ID: "T1", Amount: 1234567.89, TendererCount: 3, PublishedAt: "2021-04-01T10:00:00Z", Buyer: "Public Works"}, dst.records[0])
	assert.Equal(t, domain.Record{ID: "T2", Amount: 0, TendererCount: 2}, dst.records[1])
	assert.Equal(t, domain.Record{ID: "T3", Amount: 0, TendererCount: 0, PublishedAt: "2021-05-02", Buyer: "Health"}, dst.records[2])

	assert.Equal(t, 1, logs.FilterMessage("coerced unparsable numeric fields").Len())
	assert.Equal(t, 1, logs.FilterMessage("skipping duplicate tender id").Len())
	assert.Equal(t, 1, logs.FilterMessage("ingested tenders").Len())
}

func TestLoadHonoursLimit(t *testing.T) {
	store := blob.NewMemory()
	putBlob(t, store, "main.csv", "tender_id,tender_value_amount\nA,1\nB,2\nC,3\n")
	dst := &sliceLoader{}
	summary, err := Load(context.Background(), BlobSource{Store: store, Key: "main.csv"}, dst, Options{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, []string{"A", "B"}, ids(dst.records))

	summary, err = Load(context.Background(), BlobSource{Store: store, Key: "main.csv"}, dst, Options{Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Loaded)
}

func TestLoadWithoutTendererColumn(t *testing.T) {
	store := blob.NewMemory()
	putBlob(t, store, "main.csv", "tender_value_amount,tender_id\n10,A\n")
	dst := &sliceLoader{}
	summary, err := Load(context.Background(), BlobSource{Store: store, Key: "main.csv"}, dst, Options{})
	require.NoError(t, err)
	assert.Zero(t, summary.Coerced)
	assert.Equal(t, domain.Record{ID: "A", Amount: 10}, dst.records[0])
}

func TestLoadFailures(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	putBlob(t, store, "no-amount.csv", "tender_id,buyer_name\nA,x\n")
	putBlob(t, store, "empty.csv", "")
	putBlob(t, store, "header-only.csv", "tender_id,tender_value_amount\n")
	putBlob(t, store, "blank-ids.csv", "tender_id,tender_value_amount\n,1\n  ,2\n")

	_, err := Load(ctx, BlobSource{Store: store, Key: "missing.csv"}, &sliceLoader{}, Options{})
	assert.ErrorIs(t, err, blob.ErrNotFound)

	_, err = Load(ctx, BlobSource{Store: store, Key: "no-amount.csv"}, &sliceLoader{}, Options{})
	var missing ErrMissingColumns
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{ColumnAmount}, missing.Missing)

	_, err = Load(ctx, BlobSource{Store: store, Key: "empty.csv"}, &sliceLoader{}, Options{})
	require.ErrorAs(t, err, &missing)

	_, err = Load(ctx, BlobSource{Store: store, Key: "header-only.csv"}, &sliceLoader{}, Options{})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	summary, err := Load(ctx, BlobSource{Store: store, Key: "blank-ids.csv"}, &sliceLoader{}, Options{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Equal(t, 2, summary.Skipped)

	boom := errors.New("rejected")
	putBlob(t, store, "ok.csv", "tender_id,tender_value_amount\nA,1\n")
	_, err = Load(ctx, BlobSource{Store: store, Key: "ok.csv"}, &sliceLoader{err: boom}, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestLoadFromS3(t *testing.T) {
	store := blob.NewS3Mock()
	putBlob(t, store, "datasets/main.csv", "tender_id,tender_value_amount,tender_numberOfTenderers\nS1,250.5,4\n")
	dst := &sliceLoader{}
	summary, err := Load(context.Background(), BlobSource{Store: store, Key: "datasets/main.csv"}, dst, Options{})
	require.NoError(t, err)
	assert.Equal(t, "s3:datasets/main.csv", summary.Source)
	assert.Equal(t, domain.Record{ID: "S1", Amount: 250.5, TendererCount: 4}, dst.records[0])
}

func TestLoadFromSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := tabular.Open(ctx, tabular.DriverSQLite, filepath.Join(t.TempDir(), "tenders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE tenders (
		id TEXT, amount REAL, bidders INTEGER, published TEXT, buyer TEXT
	)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO tenders VALUES
		('Q1', 1000.25, 2, '2022-01-01', 'Roads'),
		('Q2', NULL, NULL, NULL, NULL),
		('Q3', 5, 1, NULL, 'Water')`)
	require.NoError(t, err)

	src := SQLSource{
		DB:    db,
		Name:  "sqlite",
		Query: `SELECT id AS tender_id, amount AS tender_value_amount, bidders AS tender_numberOfTenderers, published AS tender_datePublished, buyer AS buyer_name FROM tenders ORDER BY id`,
	}
	dst := &sliceLoader{}
	summary, err := Load(ctx, src, dst, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Loaded)
	assert.Equal(t, 2, summary.Coerced)
	assert.Equal(t, domain.Record{ID: "Q1", Amount: 1000.25, TendererCount: 2, PublishedAt: "2022-01-01", Buyer: "Roads"}, dst.records[0])
	assert.Equal(t, domain.Record{ID: "Q2"}, dst.records[1])

	summary, err = Load(ctx, src, dst, Options{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)

	_, err = Load(ctx, SQLSource{DB: db, Query: `SELECT id FROM tenders`}, dst, Options{})
	var missing ErrMissingColumns
	require.ErrorAs(t, err, &missing)

	_, err = Load(ctx, SQLSource{DB: db, Query: `SELECT * FROM nowhere`}, dst, Options{})
	require.Error(t, err)
}

func TestSQLSourceDescribe(t *testing.T) {
	assert.Equal(t, "sql", SQLSource{}.Describe())
	assert.Equal(t, "sql:pg", SQLSource{Name: "pg"}.Describe())
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
