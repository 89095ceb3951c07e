package cleaner

import (
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// raw builds a row from positional values; "<nil>" stands for a source NULL
func raw(values ...string) model.RawTransaction {
	var r model.RawTransaction
	for i, col := range model.RawColumns {
		if i >= len(values) || values[i] == "<nil>" {
			continue
		}
		v := values[i]
		r.SetField(col, &v)
	}
	return r
}

func newTestCleaner(t *testing.T, seed uint64) *DataCleaner {
	t.Helper()
	c, err := NewDataCleaner(zap.NewNop(), Options{
		Random: rand.New(rand.NewPCG(seed, seed)),
		Clock:  fixedClock,
	})
	if err != nil {
		t.Fatalf("NewDataCleaner: %v", err)
	}
	return c
}

func TestNewDataCleanerValidation(t *testing.T) {
	if _, err := NewDataCleaner(nil, Options{Random: fixedRandom(0)}); err == nil {
		t.Error("expected error for nil logger")
	}
	if _, err := NewDataCleaner(zap.NewNop(), Options{}); err == nil {
		t.Error("expected error for nil random source")
	}
	c, err := NewDataCleaner(zap.NewNop(), Options{Random: fixedRandom(0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.stages) != 6 || c.opts.OutputDateLayout != DefaultOutputDateLayout {
		t.Errorf("unexpected defaults: %d stages, layout %q", len(c.stages), c.opts.OutputDateLayout)
	}
	if _, err := c.Clean("", nil); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestCleanSingleRecordWalkthrough(t *testing.T) {
	c := newTestCleaner(t, 1)
	res, err := c.Clean("run-1", []model.RawTransaction{
		raw("T001", "ERROR", "3", "2.00", "", "Cash", "UNKNOWN", "2023-01-05"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Projection) != 1 {
		t.Fatalf("got %d rows", len(res.Projection))
	}

	want := model.ProjectionRow{
		TransactionID:    "T001",
		Item:             "Coffee",
		Quantity:         "3",
		PricePerUnit:     "2.00",
		TotalSpent:       "6.00",
		PaymentMethod:    "Cash",
		Location:         "In-store",
		TransactionDate:  "05/01/2023",
		DayOfWeek:        "Thursday",
		TransactionMonth: "January",
	}
	if res.Projection[0] != want {
		t.Errorf("projection = %+v\nwant %+v", res.Projection[0], want)
	}
	if res.Report.RecordsWithNulls != 0 || res.Report.DroppedCount() != 0 {
		t.Errorf("report = %+v", res.Report)
	}

	var stages []string
	for _, op := range res.Operations {
		stages = append(stages, op.Stage+":"+op.CleaningOperation)
	}
	wantOps := []string{
		"field_normalizer:sentinel_to_null",
		"field_normalizer:sentinel_to_null",
		"field_normalizer:sentinel_to_null",
		"missing_value_imputer:impute_total_spent",
		"categorical_co_imputer:impute_location",
		"item_inferencer:infer_item",
	}
	if !reflect.DeepEqual(stages, wantOps) {
		t.Errorf("operations = %v\nwant %v", stages, wantOps)
	}
}

func TestCleanDropsUnrecoverable(t *testing.T) {
	c := newTestCleaner(t, 1)
	res, err := c.Clean("run-1", []model.RawTransaction{
		raw("T001", "Tea", "", "", "4.50", "Cash", "In-store", "2023-01-05"),
		raw("T002", "Tea", "3", "1.50", "4.50", "Cash", "In-store", "2023-01-06"),
		raw("T003", "Tea", "3", "0", "", "Cash", "In-store", "2023-01-06"),
		raw("T004", "Tea", "", "0.00", "4.50", "Cash", "In-store", "2023-01-06"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.InputRows != 4 || res.Report.OutputRows != 2 || res.Report.DroppedCount() != 2 {
		t.Fatalf("report = %+v", res.Report)
	}
	ids := map[string]bool{}
	for _, r := range res.Records {
		ids[r.TransactionID] = true
	}
	if ids["T001"] || ids["T004"] || !ids["T002"] || !ids["T003"] {
		t.Errorf("surviving ids = %v", ids)
	}
	reasons := map[string]string{}
	for _, d := range res.Report.Dropped {
		reasons[d.TransactionID] = d.Reason
	}
	if reasons["T001"] != DropTwoOrMoreMissing || reasons["T004"] != DropZeroUnitPrice {
		t.Errorf("drop reasons = %v", reasons)
	}

	const wantRaw = "T001|Tea|||4.50|Cash|In-store|2023-01-05"
	for _, d := range res.Report.Dropped {
		if d.TransactionID == "T001" && d.Raw.String() != wantRaw {
			t.Errorf("dropped raw row = %q, want %q", d.Raw.String(), wantRaw)
		}
	}
	for _, op := range res.Operations {
		if op.CleaningOperation != model.OpDropRecord || op.RowIdentifier != "T001" {
			continue
		}
		if op.OriginalValue == nil || *op.OriginalValue != wantRaw {
			t.Errorf("drop journal original = %v, want %q", op.OriginalValue, wantRaw)
		}
	}
}

func TestCleanOutputProperties(t *testing.T) {
	rows := []model.RawTransaction{
		raw("T010", "Coffee", "2", "2.00", "4.00", "Credit Card", "<nil>", "2023-03-01"),
		raw("T003", "<nil>", "1", "3.00", "3.00", "<nil>", "Takeaway", "ERROR"),
		raw("T001", "<nil>", "UNKNOWN", "1.50", "3.00", "Digital Wallet", "Takeaway", "<nil>"),
		raw("T002", "Salad", "x", "5.00", "10.00", " ", "", "2023-01-15"),
		raw("T007", "Juice", "4", "3.00", "ERROR", "Cash", "In-store", "2023-02-10"),
		raw("T005", "<nil>", "2", "9.99", "19.98", "Cash", "In-store", "2023-02-01"),
	}
	c := newTestCleaner(t, 7)
	res, err := c.Clean("run-1", rows)
	if err != nil {
		t.Fatal(err)
	}

	// T001 sorts first and has no earlier date to carry, T005 has an unmapped price
	if res.Report.RecordsWithNulls != 2 {
		t.Errorf("records with nulls = %d, want 2", res.Report.RecordsWithNulls)
	}
	if res.Report.NullsByField[model.ColTransactionDate] != 1 || res.Report.NullsByField[model.ColItem] != 1 {
		t.Errorf("nulls by field = %v", res.Report.NullsByField)
	}

	for i, r := range res.Records {
		if !r.Quantity.Valid || !r.PricePerUnit.Valid || !r.TotalSpent.Valid {
			t.Errorf("%s has missing numerics: %+v", r.TransactionID, r)
		}
		if !r.PaymentMethod.Valid || !r.Location.Valid {
			t.Errorf("%s has missing categoricals: %+v", r.TransactionID, r)
		}
		if r.TotalSpent.Decimal.Sub(decimal.NewFromInt(r.Quantity.Int64).Mul(r.PricePerUnit.Decimal)).Abs().
			GreaterThan(decimal.RequireFromString("0.01")) {
			t.Errorf("%s: total %s != qty %d * price %s", r.TransactionID, r.TotalSpent.Decimal, r.Quantity.Int64, r.PricePerUnit.Decimal)
		}
		if i == 0 {
			continue
		}
		prev := res.Records[i-1]
		if !prev.TransactionDate.Valid && r.TransactionDate.Valid {
			t.Errorf("undated record %s sorted before dated %s", prev.TransactionID, r.TransactionID)
		}
		if prev.TransactionDate.Valid && r.TransactionDate.Valid && r.TransactionDate.Date.Before(prev.TransactionDate.Date) {
			t.Errorf("records out of date order at %d", i)
		}
	}

	last := res.Projection[len(res.Projection)-1]
	if last.TransactionID != "T001" || last.TransactionDate != "" || last.DayOfWeek != "" {
		t.Errorf("undated record should sort last with empty date fields: %+v", last)
	}

	byID := map[string]model.ProjectionRow{}
	for _, p := range res.Projection {
		byID[p.TransactionID] = p
	}
	checks := []struct {
		id, field, got, want string
	}{
		{"T001", "quantity", byID["T001"].Quantity, "2"},
		{"T001", "item", byID["T001"].Item, "Tea"},
		{"T002", "quantity", byID["T002"].Quantity, "2"},
		{"T002", "payment", byID["T002"].PaymentMethod, "Cash"},
		{"T002", "location", byID["T002"].Location, "In-store"},
		{"T003", "payment", byID["T003"].PaymentMethod, "Credit Card"},
		{"T003", "date", byID["T003"].TransactionDate, "15/01/2023"},
		{"T007", "total", byID["T007"].TotalSpent, "12.00"},
		{"T010", "location", byID["T010"].Location, "Takeaway"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s %s = %q, want %q", c.id, c.field, c.got, c.want)
		}
	}
	if item := byID["T003"].Item; item != "Cake" && item != "Juice" {
		t.Errorf("T003 item = %q, want Cake or Juice", item)
	}
}

func TestCleanIsDeterministicForSeed(t *testing.T) {
	var rows []model.RawTransaction
	for i := 0; i < 50; i++ {
		rows = append(rows, raw(
			"T"+strings.Repeat("0", 3)+string(rune('A'+i%26))+string(rune('a'+i/26)),
			"<nil>", "2", "3.00", "", "<nil>", "<nil>", "2023-05-01",
		))
	}

	first, err := newTestCleaner(t, 42).Clean("run-a", rows)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTestCleaner(t, 42).Clean("run-a", rows)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Projection, second.Projection) {
		t.Error("same seed produced different projections")
	}
	if !reflect.DeepEqual(first.Operations, second.Operations) {
		t.Error("same seed produced different journals")
	}
}

func TestCakeJuiceSplit(t *testing.T) {
	const n = 10000
	rows := make([]model.RawTransaction, n)
	for i := range rows {
		rows[i] = raw("T", "<nil>", "1", "3.00", "3.00", "Cash", "In-store", "2023-01-01")
	}
	res, err := newTestCleaner(t, 99).Clean("run-split", rows)
	if err != nil {
		t.Fatal(err)
	}
	cake := 0
	for _, r := range res.Records {
		switch r.Item.String {
		case "Cake":
			cake++
		case "Juice":
		default:
			t.Fatalf("unexpected item %q", r.Item.String)
		}
	}
	if ratio := float64(cake) / n; ratio < 0.47 || ratio > 0.53 {
		t.Errorf("cake ratio = %.3f, want about 0.5", ratio)
	}
}

func TestDuplicateIdentifiersReported(t *testing.T) {
	res, err := newTestCleaner(t, 1).Clean("run-dup", []model.RawTransaction{
		raw("T001", "Tea", "1", "1.50", "1.50", "Cash", "In-store", "2023-01-01"),
		raw("T001", "Tea", "2", "1.50", "3.00", "Cash", "In-store", "2023-01-02"),
		raw("<nil>", "Tea", "2", "1.50", "3.00", "Cash", "In-store", "2023-01-03"),
		raw("T002", "Tea", "2", "1.50", "3.00", "Cash", "In-store", "2023-01-04"),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []DuplicateID{{TransactionID: "T001", Count: 2}}
	if !reflect.DeepEqual(res.Report.Identifiers.Duplicates, want) {
		t.Errorf("duplicates = %v, want %v", res.Report.Identifiers.Duplicates, want)
	}
	if res.Report.Identifiers.MissingIDs != 1 {
		t.Errorf("missing ids = %d, want 1", res.Report.Identifiers.MissingIDs)
	}
	// flagged, not removed
	if res.Report.OutputRows != 4 {
		t.Errorf("output rows = %d, want 4", res.Report.OutputRows)
	}
	if res.Report.Categories[model.FindingOrderingPrecondition] != 2 {
		t.Errorf("ordering findings = %d, want 2", res.Report.Categories[model.FindingOrderingPrecondition])
	}
	if !strings.Contains(res.Report.String(), "duplicate T001: 2") {
		t.Errorf("report text missing duplicate line:\n%s", res.Report.String())
	}
}

func TestProjectRequiresLayout(t *testing.T) {
	if _, err := Project(nil, ""); err == nil {
		t.Error("expected error for empty layout")
	}
}

func TestProjectDateLayouts(t *testing.T) {
	records := []model.CleanTransaction{{
		TransactionID:   "T1",
		TransactionDate: model.NewNullDate(civil.Date{Year: 2023, Month: time.March, Day: 4}),
	}}

	tests := []struct {
		name   string
		layout string
		want   string
	}{
		{"day/month/year default", DefaultOutputDateLayout, "04/03/2023"},
		{"month/day/year override", "01/02/2006", "03/04/2023"},
		{"iso", "2006-01-02", "2023-03-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Project(records, tt.layout)
			if err != nil {
				t.Fatal(err)
			}
			if rows[0].TransactionDate != tt.want {
				t.Errorf("date = %q, want %q", rows[0].TransactionDate, tt.want)
			}
		})
	}
}

func TestCleanUsesConfiguredOutputLayout(t *testing.T) {
	c, err := NewDataCleaner(zap.NewNop(), Options{
		OutputDateLayout: "01/02/2006",
		Random:           rand.New(rand.NewPCG(1, 1)),
		Clock:            fixedClock,
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Clean("run-1", []model.RawTransaction{
		raw("T001", "Tea", "3", "1.50", "4.50", "Cash", "In-store", "2023-01-05"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Projection[0].TransactionDate; got != "01/05/2023" {
		t.Errorf("projected date = %q, want %q", got, "01/05/2023")
	}
}

func TestCleanRejectsQuantityBeyondInt64(t *testing.T) {
	c := newTestCleaner(t, 1)
	res, err := c.Clean("run-1", []model.RawTransaction{
		// quantity overflows int64 and is nulled; two numerics then missing
		raw("T1", "Tea", "99999999999999999999", "1.50", "", "Cash", "In-store", "2023-01-05"),
		// quantity nulled, then re-derived from total and price
		raw("T2", "Tea", "99999999999999999999", "1.50", "4.50", "Cash", "In-store", "2023-01-05"),
		// derived quantity overflows int64
		raw("T3", "Tea", "", "0.01", "99999999999999999999.00", "Cash", "In-store", "2023-01-05"),
		raw("T4", "Tea", "9223372036854775807", "0", "0", "Cash", "In-store", "2023-01-05"),
	})
	if err != nil {
		t.Fatal(err)
	}

	reasons := map[string]string{}
	for _, d := range res.Report.Dropped {
		reasons[d.TransactionID] = d.Reason
	}
	if reasons["T1"] != DropTwoOrMoreMissing || reasons["T3"] != DropQuantityOverflow {
		t.Errorf("drop reasons = %v", reasons)
	}

	byID := map[string]model.CleanTransaction{}
	for _, r := range res.Records {
		byID[r.TransactionID] = r
	}
	if got := byID["T2"].Quantity; !got.Valid || got.Int64 != 3 {
		t.Errorf("T2 quantity = %+v, want 3", got)
	}
	if got := byID["T4"].Quantity; !got.Valid || got.Int64 != math.MaxInt64 {
		t.Errorf("T4 quantity = %+v, want MaxInt64", got)
	}

	outOfRange := 0
	for _, op := range res.Operations {
		if op.CleaningReason == "out_of_range" {
			outOfRange++
			if op.Category != model.FindingMalformedValue || op.ColumnName != model.ColQuantity {
				t.Errorf("unexpected operation %+v", op)
			}
		}
	}
	if outOfRange != 2 {
		t.Errorf("out_of_range operations = %d, want 2", outOfRange)
	}
}

func TestQuantityInRange(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"9223372036854775807", true},
		{"9223372036854775807.4", true},
		{"9223372036854775807.5", false},
		{"9223372036854775808", false},
		{"99999999999999999999", false},
	}
	for _, tt := range tests {
		if got := QuantityInRange(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("QuantityInRange(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
