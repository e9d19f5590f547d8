package merge

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"ratesetl/internal/icetable"
	"ratesetl/internal/objstore"
	"ratesetl/internal/records"
)

var (
	testIdent = icetable.Ident{Namespace: "silver", Name: "currency_rates"}
	testKeys  = []string{
		records.FieldRateDate,
		records.FieldSource,
		records.FieldBaseCurrency,
	}
)

func testLogger(tb testing.TB) logrus.FieldLogger {
	tb.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newEngine(tb testing.TB) (*Engine, icetable.Catalog) {
	tb.Helper()
	cat, err := icetable.NewCatalog(icetable.CatalogConfig{
		Bucket:     objstore.NewMemBucket(),
		BucketName: "warehouse",
		Prefix:     "warehouse",
	}, testLogger(tb))
	if err != nil {
		tb.Fatalf("new catalog: %v", err)
	}
	return New(cat, testIdent, testKeys, testLogger(tb)), cat
}

func rateRow(rateDate, source string, eur float64, ts string) records.Record {
	return records.Record{
		records.FieldRateDate:            rateDate,
		records.FieldSource:              source,
		records.FieldBaseCurrency:        "USD",
		records.FieldExtractionTimestamp: ts,
		records.FieldRates:               map[string]float64{"EUR": eur},
	}
}

func scanAll(tb testing.TB, cat icetable.Catalog) []records.Record {
	tb.Helper()
	tbl, err := cat.LoadTable(context.Background(), testIdent)
	if err != nil {
		tb.Fatalf("load table: %v", err)
	}
	rows, err := tbl.Scan(context.Background())
	if err != nil {
		tb.Fatalf("scan: %v", err)
	}
	return rows
}

func TestMergeCreatesTableOnFirstRun(t *testing.T) {
	t.Parallel()

	e, cat := newEngine(t)
	batch := []records.Record{
		rateRow("2024-01-02", "ecb", 0.92, "2024-01-02T06:00:00Z"),
		rateRow("2024-01-02", "frankfurter", 0.93, "2024-01-02T06:00:00Z"),
	}

	res, err := e.Merge(context.Background(), batch)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.RowsDeleted != 0 || res.RowsAppended != 2 {
		t.Errorf("result = %+v, want 0 deleted / 2 appended", res)
	}
	if rows := scanAll(t, cat); len(rows) != 2 {
		t.Errorf("table holds %d rows, want 2", len(rows))
	}
}

// A corrected re-extraction replaces the existing row for its key instead of
// duplicating it.
func TestMergeReplacesRowForKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, cat := newEngine(t)

	first := rateRow("2024-01-02", "frankfurter", 0.90, "2024-01-02T06:00:00Z")
	if _, err := e.Merge(ctx, []records.Record{first}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	corrected := rateRow("2024-01-02", "frankfurter", 0.91, "2024-01-02T18:00:00Z")
	res, err := e.Merge(ctx, []records.Record{corrected})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if res.RowsDeleted != 1 || res.RowsAppended != 1 {
		t.Errorf("result = %+v, want 1 deleted / 1 appended", res)
	}

	rows := scanAll(t, cat)
	if len(rows) != 1 {
		t.Fatalf("table holds %d rows, want 1", len(rows))
	}
	if got := rows[0].Rates()["EUR"]; got != 0.91 {
		t.Errorf("EUR = %v, want the corrected 0.91", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, cat := newEngine(t)
	batch := []records.Record{
		rateRow("2024-01-02", "ecb", 0.92, "2024-01-02T06:00:00Z"),
		rateRow("2024-01-03", "ecb", 0.93, "2024-01-03T06:00:00Z"),
	}

	if _, err := e.Merge(ctx, batch); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	res, err := e.Merge(ctx, batch)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if res.RowsDeleted != 2 || res.RowsAppended != 2 {
		t.Errorf("result = %+v, want 2 deleted / 2 appended", res)
	}
	if rows := scanAll(t, cat); len(rows) != 2 {
		t.Errorf("table holds %d rows after re-run, want 2", len(rows))
	}
}

func TestMergeEvolvesSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, cat := newEngine(t)

	if _, err := e.Merge(ctx, []records.Record{
		rateRow("2024-01-02", "ecb", 0.92, "2024-01-02T06:00:00Z"),
	}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	widened := rateRow("2024-01-03", "ecb", 0.93, "2024-01-03T06:00:00Z")
	widened["provider_notes"] = "holiday fixing"
	res, err := e.Merge(ctx, []records.Record{widened})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if len(res.FieldsAdded) != 1 || res.FieldsAdded[0] != "provider_notes" {
		t.Errorf("fields added = %v, want [provider_notes]", res.FieldsAdded)
	}

	tbl, err := cat.LoadTable(ctx, testIdent)
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	if !tbl.Schema().Has("provider_notes") {
		t.Error("evolved field missing from persisted schema")
	}
	if rows := scanAll(t, cat); len(rows) != 2 {
		t.Errorf("table holds %d rows, want 2", len(rows))
	}
}

func TestMergeEmptyBatch(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t)
	res, err := e.Merge(context.Background(), nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.RowsDeleted != 0 || res.RowsAppended != 0 {
		t.Errorf("result = %+v, want zero", res)
	}
}

func TestMetadataLocation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, _ := newEngine(t)

	if _, err := e.MetadataLocation(ctx); err == nil {
		t.Error("metadata location before any merge should fail")
	}

	if _, err := e.Merge(ctx, []records.Record{
		rateRow("2024-01-02", "ecb", 0.92, "2024-01-02T06:00:00Z"),
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	loc, err := e.MetadataLocation(ctx)
	if err != nil {
		t.Fatalf("metadata location: %v", err)
	}
	if loc == "" {
		t.Error("metadata location is empty")
	}
}
