package features

import (
	"sort"
	"strings"

	"AlphaForge/internal/domain/models"
)

// builtinDefaults are substituted for numeric fields no record measured,
// unless overridden by configuration. Every substitution is flagged
// FieldDefaulted so it stays distinguishable from a measured value.
var builtinDefaults = map[string]float64{
	"causal_certainty":   0.5,
	"expected_magnitude": 0,
	"surprise_factor":    0.5,
	"sentiment_score":    0,
	"confidence":         0.5,
	"evidence_strength":  0.5,
}

// Aggregator folds the factor records of one event into a fixed-width
// feature vector and assembles the companion target vector and export
// row. Deterministic: same event and same metrics always produce the
// same vectors, bit for bit.
type Aggregator struct {
	schema   *Schema
	defaults map[string]float64
}

// NewAggregator builds an aggregator; overrides replace builtin numeric
// defaults per field.
func NewAggregator(schema *Schema, overrides map[string]float64) *Aggregator {
	defs := make(map[string]float64, len(builtinDefaults))
	for k, v := range builtinDefaults {
		defs[k] = v
	}
	for k, v := range overrides {
		defs[k] = v
	}
	return &Aggregator{schema: schema, defaults: defs}
}

// Schema returns the column layout the aggregator writes.
func (a *Aggregator) Schema() *Schema { return a.schema }

// Aggregate merges an event's factor records into one feature vector.
// Numerics are means over non-null values; categoricals come from the
// first record in canonical causal-step order; flags OR; arrays
// concatenate, with set semantics where the field requires it.
func (a *Aggregator) Aggregate(ev *models.Event) models.FeatureVector {
	fv := models.FeatureVector{
		EventID:   ev.ID,
		Ticker:    ev.Ticker,
		Timestamp: ev.Timestamp,
		Values:    make(map[string]models.Value, len(a.schema.FeatureColumns())),
		Status:    make(map[string]models.FieldStatus, len(a.schema.FeatureColumns())),
	}

	records := make([]models.FactorRecord, len(ev.Factors))
	copy(records, ev.Factors)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CausalStep < records[j].CausalStep
	})

	a.setCategoricals(&fv, ev, records)

	fv.Values["factor_count"] = models.Number(float64(len(records)))
	fv.Status["factor_count"] = models.FieldMeasured

	for _, field := range numericFields {
		vals := collectNumeric(records, field)
		if m := meanNonNull(vals); m != nil {
			fv.Values[field] = models.Number(*m)
			fv.Status[field] = models.FieldMeasured
		} else {
			fv.Values[field] = models.Number(a.defaults[field])
			fv.Status[field] = models.FieldDefaulted
		}
	}

	for _, field := range flagFields {
		any := false
		for _, rec := range records {
			if flagValue(rec, field) {
				any = true
				break
			}
		}
		fv.Values[field] = models.Flag(any)
		if len(records) > 0 {
			fv.Status[field] = models.FieldMeasured
		} else {
			fv.Status[field] = models.FieldDefaulted
		}
	}

	for _, af := range arrayFields {
		items := collectArray(records, af.name, af.set)
		fv.Values[af.name] = models.Text(strings.Join(items, "|"))
		fv.Values[af.name+"_count"] = models.Number(float64(len(items)))
		status := models.FieldMeasured
		if len(records) == 0 {
			status = models.FieldDefaulted
		}
		fv.Status[af.name] = status
		fv.Status[af.name+"_count"] = status
	}

	return fv
}

func (a *Aggregator) setCategoricals(fv *models.FeatureVector, ev *models.Event, records []models.FactorRecord) {
	orientation := ev.Orientation
	eventType, eventScope := "", ""
	if len(records) > 0 {
		first := records[0]
		if first.Orientation != "" {
			orientation = first.Orientation
		}
		eventType = first.EventType
		eventScope = first.EventScope
	}
	setText := func(name, v string) {
		if v == "" {
			fv.Values[name] = models.Value{}
			fv.Status[name] = models.FieldMissing
			return
		}
		fv.Values[name] = models.Text(v)
		fv.Status[name] = models.FieldMeasured
	}
	setText("orientation", orientation)
	setText("event_type", eventType)
	setText("event_scope", eventScope)
}

// Targets builds the label half from the computed windows and the
// event-level market context. Null metrics become null cells marked
// missing, never zeros.
func (a *Aggregator) Targets(windows []models.PerformanceWindow, mkt models.EventMarketContext) models.TargetVector {
	tv := models.TargetVector{
		Values: make(map[string]models.Value, len(a.schema.TargetColumns())),
		Status: make(map[string]models.FieldStatus, len(a.schema.TargetColumns())),
	}

	setNum := func(name string, p *float64) {
		tv.Values[name] = models.NumberPtr(p)
		tv.Status[name] = statusOfPtr(p == nil)
	}

	setNum("relative_volume", mkt.RelativeVolume)
	tv.Values["volume_spike"] = models.FlagPtr(mkt.VolumeSpike)
	tv.Status["volume_spike"] = statusOfPtr(mkt.VolumeSpike == nil)
	tv.Values["trading_hours"] = models.Flag(mkt.TradingHours)
	tv.Status["trading_hours"] = models.FieldMeasured
	if mkt.Regime == models.RegimeUnknown || mkt.Regime == "" {
		tv.Values["regime"] = models.Value{}
		tv.Status["regime"] = models.FieldMissing
	} else {
		tv.Values["regime"] = models.Text(mkt.Regime)
		tv.Status["regime"] = models.FieldMeasured
	}

	for _, w := range windows {
		setNum(w.Name+"_return_pct", w.InstrumentReturnPct)
		for g, ret := range w.BenchmarkReturnPct {
			setNum(w.Name+"_bench_"+g+"_return_pct", ret)
		}
		for g, alpha := range w.Alpha {
			setNum(w.Name+"_alpha_"+g, alpha)
		}
		setNum(w.Name+"_volatility", w.Volatility)
		setNum(w.Name+"_relative_volatility", w.RelativeVolatility)
	}

	return tv
}

// BuildRow lays feature and target cells out in schema order. Columns
// absent from both vectors export as null cells.
func (a *Aggregator) BuildRow(fv models.FeatureVector, tv models.TargetVector, dq models.DataQualityScore) *models.FeatureRow {
	cols := a.schema.Columns()
	row := &models.FeatureRow{
		EventID:       fv.EventID,
		Ticker:        fv.Ticker,
		Timestamp:     fv.Timestamp,
		Completeness:  dq.Completeness,
		SchemaVersion: a.schema.Version(),
		Columns:       cols,
		Values:        make([]models.Value, len(cols)),
	}
	for i, name := range cols {
		if v, ok := fv.Values[name]; ok {
			row.Values[i] = v
			continue
		}
		if v, ok := tv.Values[name]; ok {
			row.Values[i] = v
		}
	}
	return row
}

func statusOfPtr(isNil bool) models.FieldStatus {
	if isNil {
		return models.FieldMissing
	}
	return models.FieldMeasured
}

func collectNumeric(records []models.FactorRecord, field string) []*float64 {
	out := make([]*float64, 0, len(records))
	for _, rec := range records {
		switch field {
		case "causal_certainty":
			out = append(out, rec.CausalCertainty)
		case "expected_magnitude":
			out = append(out, rec.ExpectedMagnitude)
		case "surprise_factor":
			out = append(out, rec.SurpriseFactor)
		case "sentiment_score":
			out = append(out, rec.SentimentScore)
		case "confidence":
			out = append(out, rec.Confidence)
		case "evidence_strength":
			out = append(out, rec.EvidenceStrength)
		}
	}
	return out
}

func flagValue(rec models.FactorRecord, field string) bool {
	switch field {
	case "mentions_guidance":
		return rec.MentionsGuidance
	case "mentions_regulatory":
		return rec.MentionsRegulatory
	case "mentions_litigation":
		return rec.MentionsLitigation
	case "mentions_macro":
		return rec.MentionsMacro
	case "mentions_insider":
		return rec.MentionsInsider
	}
	return false
}

func collectArray(records []models.FactorRecord, field string, set bool) []string {
	var out []string
	seen := map[string]bool{}
	add := func(items []string) {
		for _, it := range items {
			if it == "" {
				continue
			}
			if set {
				if seen[it] {
					continue
				}
				seen[it] = true
			}
			out = append(out, it)
		}
	}
	for _, rec := range records {
		switch field {
		case "entities":
			add(rec.Entities)
		case "sectors":
			add(rec.Sectors)
		case "tags":
			add(rec.Tags)
		case "biases":
			add(rec.Biases)
		}
	}
	return out
}

func meanNonNull(xs []*float64) *float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if x != nil {
			sum += *x
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}
