package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind discriminates feature/target cell types.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueNumber
	ValueText
	ValueFlag
)

// Value is one cell of a feature or target vector. The zero Value is null,
// which is distinct from Number(0) and Flag(false).
type Value struct {
	Kind ValueKind
	Num  float64
	Text string
	Flag bool
}

func Number(v float64) Value { return Value{Kind: ValueNumber, Num: v} }
func Text(s string) Value    { return Value{Kind: ValueText, Text: s} }
func Flag(b bool) Value      { return Value{Kind: ValueFlag, Flag: b} }

// NumberPtr lifts a nullable float into a Value, preserving null.
func NumberPtr(p *float64) Value {
	if p == nil {
		return Value{}
	}
	return Number(*p)
}

// FlagPtr lifts a nullable bool into a Value, preserving null.
func FlagPtr(p *bool) Value {
	if p == nil {
		return Value{}
	}
	return Flag(*p)
}

// IsNull reports whether the cell carries no measured or defaulted value.
func (v Value) IsNull() bool { return v.Kind == ValueNull }

// appendJSON writes the cell in JSON form.
func (v Value) appendJSON(buf *bytes.Buffer) {
	switch v.Kind {
	case ValueNumber:
		fmt.Fprintf(buf, "%g", v.Num)
	case ValueText:
		b, _ := json.Marshal(v.Text)
		buf.Write(b)
	case ValueFlag:
		fmt.Fprintf(buf, "%t", v.Flag)
	default:
		buf.WriteString("null")
	}
}

// FieldStatus marks how a vector cell was obtained, so defaulted
// substitutes stay distinguishable from measured values.
type FieldStatus string

const (
	FieldMeasured  FieldStatus = "measured"
	FieldDefaulted FieldStatus = "defaulted"
	FieldMissing   FieldStatus = "missing"
)

// FeatureVector is the aggregated qualitative/quantitative input half of
// one training example. Status runs parallel to Values.
type FeatureVector struct {
	EventID   string
	Ticker    string
	Timestamp time.Time
	Values    map[string]Value
	Status    map[string]FieldStatus
}

// TargetVector is the label half: the computed performance measurements.
type TargetVector struct {
	Values map[string]Value
	Status map[string]FieldStatus
}

// DataQualityScore summarizes resolution completeness for one event.
type DataQualityScore struct {
	Completeness   float64
	Attempted      int
	Succeeded      int
	MissingWindows []string
}

// FeatureRow is one export row: the ordered union of feature and target
// columns plus identity and quality fields. Columns and Values run in
// schema order so downstream diffs stay stable across runs.
type FeatureRow struct {
	EventID       string
	Ticker        string
	Timestamp     time.Time
	Completeness  float64
	SchemaVersion string
	Columns       []string
	Values        []Value
}

// EncodeJSON serializes the row as a JSON object with keys in schema
// order. encoding/json sorts map keys, so the object is built by hand.
func (r *FeatureRow) EncodeJSON() ([]byte, error) {
	if len(r.Columns) != len(r.Values) {
		return nil, fmt.Errorf("feature row: %d columns, %d values", len(r.Columns), len(r.Values))
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, `"event_id":%q,"ticker":%q,"event_ts":%q,"completeness":%g,"schema_version":%q`,
		r.EventID, r.Ticker, r.Timestamp.UTC().Format(time.RFC3339), r.Completeness, r.SchemaVersion)
	for i, name := range r.Columns {
		buf.WriteByte(',')
		b, _ := json.Marshal(name)
		buf.Write(b)
		buf.WriteByte(':')
		r.Values[i].appendJSON(&buf)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
