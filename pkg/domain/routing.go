package domain

// CandidateSource indicates which scoring pass produced a candidate's score.
type CandidateSource string

const (
	SourceKeyword    CandidateSource = "keyword"
	SourceClassifier CandidateSource = "classifier"
)

// RoutingCandidate is one scored handler for a query. Candidates are
// transient: created per request, never persisted.
type RoutingCandidate struct {
	HandlerID   string          `json:"handler_id"`
	Score       float64         `json:"score"`
	MatchedTags []string        `json:"matched_tags,omitempty"`
	Source      CandidateSource `json:"source"`
}

// Decision reasons attached to a RoutingDecision.
const (
	ReasonHighConfidence = "high_confidence"
	ReasonLowConfidence  = "low_confidence"
	ReasonNarrowMargin   = "narrow_margin"
	ReasonNoMatch        = "no_match"
)

// RoutingDecision is the router's verdict for a single query. An empty
// ChosenHandlerID means the decision is ambiguous and the caller should ask
// a clarifying question using Alternatives. A confidence of zero always
// implies an empty ChosenHandlerID.
type RoutingDecision struct {
	ChosenHandlerID string             `json:"chosen_handler_id,omitempty"`
	Confidence      float64            `json:"confidence"`
	Alternatives    []RoutingCandidate `json:"alternatives,omitempty"`
	DecisionReason  string             `json:"decision_reason"`
	// Degraded reports that the classifier failed and scores were capped to
	// keyword-only confidence.
	Degraded bool `json:"degraded,omitempty"`
}

// Ambiguous reports whether the router declined to pick a handler.
func (d *RoutingDecision) Ambiguous() bool {
	return d.ChosenHandlerID == ""
}
