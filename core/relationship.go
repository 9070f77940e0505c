package core

import "fmt"

// RelationType classifies how directly two entities are connected.
type RelationType string

const (
	// RelationStrong marks a direct relationship explicitly stated in the
	// text (relative, friend, married, ...).
	RelationStrong RelationType = "STRONG"
	// RelationWeak marks an indirect relationship (colleague, collaborator,
	// same organization, ...).
	RelationWeak RelationType = "WEAK"
)

// Relationship records a discovered connection between two named entities.
// Deterministic extraction fills every field; dialogue-derived records may
// carry only Source and Description (the generated text does not name a
// target or a confidence).
type Relationship struct {
	Source      string       `json:"source"`
	Target      string       `json:"target,omitempty"`
	Type        RelationType `json:"type,omitempty"`
	Description string       `json:"description"`
	Confidence  float64      `json:"confidence,omitempty"`
}

// Validate checks the enumerated type and the confidence range for fully
// populated records.
func (r Relationship) Validate() error {
	if r.Type != "" && r.Type != RelationStrong && r.Type != RelationWeak {
		return fmt.Errorf("invalid relation type %q", r.Type)
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}

	return nil
}

// Visualization carries the advisor's latest rendering suggestion for the
// relationship graph. Last write wins; suggestions are not accumulated.
type Visualization struct {
	Suggestion string `json:"suggestion"`
}
