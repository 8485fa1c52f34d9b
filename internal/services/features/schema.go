package features

import (
	"fmt"

	"AlphaForge/internal/domain/models"
)

// SchemaVersion tags the feature-column layout. Bump on any change to
// column names, order, or aggregation semantics.
const SchemaVersion = "v1"

// Numeric factor fields aggregated by mean-over-non-null. Order matters:
// it is the export column order.
var numericFields = []string{
	"causal_certainty",
	"expected_magnitude",
	"surprise_factor",
	"sentiment_score",
	"confidence",
	"evidence_strength",
}

// Presence flags OR'd across factor records.
var flagFields = []string{
	"mentions_guidance",
	"mentions_regulatory",
	"mentions_litigation",
	"mentions_macro",
	"mentions_insider",
}

// Array-valued fields and whether their semantics are a set.
var arrayFields = []struct {
	name string
	set  bool
}{
	{"entities", true},
	{"sectors", true},
	{"tags", false},
	{"biases", false},
}

// Schema is the stable, versioned column layout of one export row:
// feature columns first, then target columns. Its width is fixed by the
// window catalog and benchmark groups, so both are part of the version.
type Schema struct {
	version        string
	featureColumns []string
	targetColumns  []string
}

// NewSchema derives the column layout from the compiled window catalog
// and the benchmark group names, both in configured order.
func NewSchema(windowSpecs []models.TimeWindowSpec, groupNames []string, catalogVersion string) *Schema {
	s := &Schema{
		version: fmt.Sprintf("%s+windows:%s", SchemaVersion, catalogVersion),
	}

	s.featureColumns = append(s.featureColumns,
		"orientation", "event_type", "event_scope", "factor_count")
	s.featureColumns = append(s.featureColumns, numericFields...)
	s.featureColumns = append(s.featureColumns, flagFields...)
	for _, af := range arrayFields {
		s.featureColumns = append(s.featureColumns, af.name, af.name+"_count")
	}

	s.targetColumns = append(s.targetColumns,
		"relative_volume", "volume_spike", "trading_hours", "regime")
	for _, w := range windowSpecs {
		s.targetColumns = append(s.targetColumns, w.Name+"_return_pct")
		for _, g := range groupNames {
			s.targetColumns = append(s.targetColumns,
				fmt.Sprintf("%s_bench_%s_return_pct", w.Name, g),
				fmt.Sprintf("%s_alpha_%s", w.Name, g),
			)
		}
		s.targetColumns = append(s.targetColumns,
			w.Name+"_volatility",
			w.Name+"_relative_volatility",
		)
	}
	return s
}

// Version returns the combined schema+catalog version string.
func (s *Schema) Version() string { return s.version }

// FeatureColumns returns the feature half in order.
func (s *Schema) FeatureColumns() []string { return s.featureColumns }

// TargetColumns returns the target half in order.
func (s *Schema) TargetColumns() []string { return s.targetColumns }

// Columns returns the full ordered union: features, then targets.
func (s *Schema) Columns() []string {
	out := make([]string, 0, len(s.featureColumns)+len(s.targetColumns))
	out = append(out, s.featureColumns...)
	out = append(out, s.targetColumns...)
	return out
}

// Width is the total column count.
func (s *Schema) Width() int { return len(s.featureColumns) + len(s.targetColumns) }
