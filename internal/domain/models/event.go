package models

import "time"

// Event is one market-moving event produced by the upstream extraction
// step. Read-only input: the pipeline never mutates it.
type Event struct {
	ID          string         `json:"id"`
	Ticker      string         `json:"ticker"`
	Timestamp   time.Time      `json:"timestamp"`
	Orientation string         `json:"orientation"`
	Factors     []FactorRecord `json:"factors"`
}

// FactorRecord is one causal-factor assessment of an event. A business
// event may decompose into several of these; the aggregator folds them
// into a single feature vector. Numeric assessments are pointers so
// "unknown" stays distinct from a measured zero.
type FactorRecord struct {
	CausalStep  int    `json:"causal_step"`
	EventType   string `json:"event_type"`
	EventScope  string `json:"event_scope"`
	Orientation string `json:"orientation"`

	CausalCertainty   *float64 `json:"causal_certainty"`
	ExpectedMagnitude *float64 `json:"expected_magnitude"`
	SurpriseFactor    *float64 `json:"surprise_factor"`
	SentimentScore    *float64 `json:"sentiment_score"`
	Confidence        *float64 `json:"confidence"`
	EvidenceStrength  *float64 `json:"evidence_strength"`

	MentionsGuidance   bool `json:"mentions_guidance"`
	MentionsRegulatory bool `json:"mentions_regulatory"`
	MentionsLitigation bool `json:"mentions_litigation"`
	MentionsMacro      bool `json:"mentions_macro"`
	MentionsInsider    bool `json:"mentions_insider"`

	Entities []string `json:"entities"`
	Sectors  []string `json:"sectors"`
	Tags     []string `json:"tags"`
	Biases   []string `json:"biases"`
}

// EventStatus tracks an event through the pipeline.
type EventStatus string

const (
	StatusPending   EventStatus = "pending"
	StatusResolving EventStatus = "resolving"
	StatusComplete  EventStatus = "complete"
	StatusPartial   EventStatus = "partially-complete"
	StatusFailed    EventStatus = "failed"
)

// EventResult is the per-event outcome reported to the batch summary
// and kept queryable on the status API.
type EventResult struct {
	EventID      string      `json:"event_id"`
	Ticker       string      `json:"ticker"`
	Status       EventStatus `json:"status"`
	Completeness float64     `json:"completeness"`
	Reason       string      `json:"reason,omitempty"`
	Err          error       `json:"-"`
}
