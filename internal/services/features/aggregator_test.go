package features

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"AlphaForge/internal/domain/models"
)

func testSchema() *Schema {
	return NewSchema(
		[]models.TimeWindowSpec{{Name: "post_1h", OffsetMinutes: 60}},
		[]string{"market"},
		"cat1",
	)
}

func fptr(v float64) *float64 { return &v }

func testEvent() *models.Event {
	return &models.Event{
		ID:          "ev-1",
		Ticker:      "AAPL",
		Timestamp:   time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC),
		Orientation: "long",
	}
}

func TestAggregateMeansOverNonNull(t *testing.T) {
	ev := testEvent()
	ev.Factors = []models.FactorRecord{
		{CausalStep: 1, Confidence: fptr(0.8)},
		{CausalStep: 2, Confidence: fptr(0.9)},
		{CausalStep: 3, Confidence: nil},
	}

	a := NewAggregator(testSchema(), nil)
	fv := a.Aggregate(ev)

	got := fv.Values["confidence"]
	if got.Kind != models.ValueNumber || math.Abs(got.Num-0.85) > 1e-12 {
		t.Fatalf("confidence = %+v, want 0.85", got)
	}
	if fv.Status["confidence"] != models.FieldMeasured {
		t.Fatalf("mean over measured values must be measured")
	}
	if fv.Values["factor_count"].Num != 3 {
		t.Fatalf("factor_count = %v", fv.Values["factor_count"].Num)
	}
}

func TestAggregateDefaultsWhenAllNull(t *testing.T) {
	ev := testEvent()
	ev.Factors = []models.FactorRecord{{CausalStep: 1}, {CausalStep: 2}}

	a := NewAggregator(testSchema(), map[string]float64{"surprise_factor": 0.25})
	fv := a.Aggregate(ev)

	if fv.Values["causal_certainty"].Num != 0.5 || fv.Status["causal_certainty"] != models.FieldDefaulted {
		t.Fatalf("causal_certainty = %+v status %s", fv.Values["causal_certainty"], fv.Status["causal_certainty"])
	}
	// configured override wins over the builtin
	if fv.Values["surprise_factor"].Num != 0.25 {
		t.Fatalf("surprise_factor = %v, want override 0.25", fv.Values["surprise_factor"].Num)
	}
}

func TestAggregateFlagsOr(t *testing.T) {
	ev := testEvent()
	ev.Factors = []models.FactorRecord{
		{CausalStep: 1, MentionsGuidance: true},
		{CausalStep: 2, MentionsMacro: true},
	}

	fv := NewAggregator(testSchema(), nil).Aggregate(ev)
	if !fv.Values["mentions_guidance"].Flag || !fv.Values["mentions_macro"].Flag {
		t.Fatalf("flags present in any record must survive the fold")
	}
	if fv.Values["mentions_litigation"].Flag {
		t.Fatalf("absent flag must stay false")
	}
}

func TestAggregateArraysSetVsConcat(t *testing.T) {
	ev := testEvent()
	ev.Factors = []models.FactorRecord{
		{CausalStep: 1, Entities: []string{"AAPL", "MSFT"}, Tags: []string{"earnings"}},
		{CausalStep: 2, Entities: []string{"MSFT"}, Tags: []string{"earnings"}},
	}

	fv := NewAggregator(testSchema(), nil).Aggregate(ev)
	// entities have set semantics
	if got := fv.Values["entities"].Text; got != "AAPL|MSFT" {
		t.Fatalf("entities = %q, want deduplicated AAPL|MSFT", got)
	}
	if fv.Values["entities_count"].Num != 2 {
		t.Fatalf("entities_count = %v", fv.Values["entities_count"].Num)
	}
	// tags concatenate with duplicates kept
	if got := fv.Values["tags"].Text; got != "earnings|earnings" {
		t.Fatalf("tags = %q, want concatenation with duplicates", got)
	}
}

func TestAggregateCategoricalsFromFirstCausalStep(t *testing.T) {
	ev := testEvent()
	ev.Factors = []models.FactorRecord{
		{CausalStep: 2, EventType: "later", Orientation: "short"},
		{CausalStep: 1, EventType: "earnings_beat", EventScope: "company", Orientation: "long"},
	}

	fv := NewAggregator(testSchema(), nil).Aggregate(ev)
	if fv.Values["event_type"].Text != "earnings_beat" {
		t.Fatalf("event_type = %q, want the lowest causal step's", fv.Values["event_type"].Text)
	}
	if fv.Values["orientation"].Text != "long" {
		t.Fatalf("orientation = %q", fv.Values["orientation"].Text)
	}
}

func TestAggregateNoFactorsFallsBackToEvent(t *testing.T) {
	ev := testEvent()

	fv := NewAggregator(testSchema(), nil).Aggregate(ev)
	if fv.Values["orientation"].Text != "long" {
		t.Fatalf("orientation must fall back to the event's, got %q", fv.Values["orientation"].Text)
	}
	if !fv.Values["event_type"].IsNull() || fv.Status["event_type"] != models.FieldMissing {
		t.Fatalf("event_type without records must be a missing null")
	}
}

func TestTargetsNullPropagation(t *testing.T) {
	a := NewAggregator(testSchema(), nil)
	tv := a.Targets([]models.PerformanceWindow{{
		Name:                "post_1h",
		InstrumentReturnPct: fptr(3),
		BenchmarkReturnPct:  map[string]*float64{"market": nil},
		Alpha:               map[string]*float64{"market": nil},
	}}, models.EventMarketContext{Regime: models.RegimeUnknown})

	if tv.Values["post_1h_return_pct"].Num != 3 {
		t.Fatalf("instrument return = %+v", tv.Values["post_1h_return_pct"])
	}
	if !tv.Values["post_1h_alpha_market"].IsNull() {
		t.Fatalf("null alpha must export as null, not zero")
	}
	if tv.Status["post_1h_alpha_market"] != models.FieldMissing {
		t.Fatalf("null alpha status = %s", tv.Status["post_1h_alpha_market"])
	}
	if !tv.Values["regime"].IsNull() || tv.Status["regime"] != models.FieldMissing {
		t.Fatalf("unknown regime must export as missing null")
	}
}

func TestBuildRowSchemaOrderAndDeterminism(t *testing.T) {
	ev := testEvent()
	ev.Factors = []models.FactorRecord{{CausalStep: 1, Confidence: fptr(0.7)}}

	a := NewAggregator(testSchema(), nil)
	fv := a.Aggregate(ev)
	tv := a.Targets([]models.PerformanceWindow{{
		Name:                "post_1h",
		InstrumentReturnPct: fptr(1.5),
		BenchmarkReturnPct:  map[string]*float64{"market": fptr(1)},
		Alpha:               map[string]*float64{"market": fptr(0.5)},
	}}, models.EventMarketContext{Regime: models.RegimeBull, TradingHours: true})
	dq := models.DataQualityScore{Completeness: 1}

	row := a.BuildRow(fv, tv, dq)
	cols := a.Schema().Columns()
	if len(row.Columns) != len(cols) || len(row.Values) != len(cols) {
		t.Fatalf("row width %d/%d, schema width %d", len(row.Columns), len(row.Values), len(cols))
	}
	for i := range cols {
		if row.Columns[i] != cols[i] {
			t.Fatalf("column %d = %s, want %s", i, row.Columns[i], cols[i])
		}
	}

	b1, err := row.EncodeJSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b2, err := a.BuildRow(a.Aggregate(ev), tv, dq).EncodeJSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("same inputs must encode identically")
	}
}

func TestEncodeJSONOrderAndNulls(t *testing.T) {
	row := &models.FeatureRow{
		EventID:       "ev-1",
		Ticker:        "AAPL",
		Timestamp:     time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC),
		Completeness:  0.5,
		SchemaVersion: "v1+windows:cat1",
		Columns:       []string{"zeta", "alpha"},
		Values:        []models.Value{models.Number(1), {}},
	}
	b, err := row.EncodeJSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"zeta":1,"alpha":null`) {
		t.Fatalf("columns must keep schema order and nulls: %s", s)
	}
	if !strings.Contains(s, `"event_ts":"2025-03-11T14:00:00Z"`) {
		t.Fatalf("timestamp must export as UTC RFC3339: %s", s)
	}
}

func TestEncodeJSONRejectsWidthMismatch(t *testing.T) {
	row := &models.FeatureRow{Columns: []string{"a", "b"}, Values: []models.Value{models.Number(1)}}
	if _, err := row.EncodeJSON(); err == nil {
		t.Fatalf("column/value width mismatch must fail")
	}
}

func TestSchemaLayout(t *testing.T) {
	s := testSchema()
	if s.Version() != "v1+windows:cat1" {
		t.Fatalf("version = %s", s.Version())
	}
	fc := s.FeatureColumns()
	if fc[0] != "orientation" || fc[1] != "event_type" || fc[2] != "event_scope" || fc[3] != "factor_count" {
		t.Fatalf("feature head = %v", fc[:4])
	}
	tc := s.TargetColumns()
	if tc[0] != "relative_volume" || tc[len(tc)-1] != "post_1h_relative_volatility" {
		t.Fatalf("target layout = %v", tc)
	}
	if s.Width() != len(fc)+len(tc) {
		t.Fatalf("width = %d", s.Width())
	}
}
