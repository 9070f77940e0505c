package core

import "testing"

func TestSession_AppendAndClone(t *testing.T) {
	s := NewSession("s1", "who knows whom", []string{"e1", "e2"})

	if s.Status != StatusInitializing {
		t.Fatalf("new session status = %s", s.Status)
	}

	s.AppendMessage(NewMessage("RelationshipAnalyst", "Coordinator", "A and B are friends"))
	s.AppendMessage(NewUserMessage("Coordinator", "tell me more"))

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.AppendMessage(NewMessage("Summarizer", "Coordinator", "done"))
	if len(s.GetMessages()) != 2 {
		t.Errorf("original should not see clone's append, got %d messages", len(s.GetMessages()))
	}

	msgs := s.GetMessages()
	msgs[0].Content = "changed"
	if s.GetMessages()[0].Content == "changed" {
		t.Error("messages slice should be copied on read")
	}
}

func TestSession_History(t *testing.T) {
	s := NewSession("s2", "q", nil)
	s.AppendMessage(NewUserMessage("Coordinator", "first"))
	s.AppendMessage(NewMessage("RelationshipAnalyst", "Coordinator", "second"))

	h := s.History()
	if len(h) != 2 || h[0] != "first" || h[1] != "second" {
		t.Fatalf("unexpected history %v", h)
	}
}

func TestSession_CommitDerived(t *testing.T) {
	s := NewSession("s3", "q", nil)
	rels := []Relationship{{Source: "A", Target: "B", Type: RelationWeak, Description: "colleague relation", Confidence: 0.6}}

	s.CommitDerived(rels, "a summary", &Visualization{Suggestion: "thicker edges"})

	if len(s.Relationships) != 1 || s.Summary != "a summary" {
		t.Fatalf("derived state not applied: %+v", s)
	}
	if s.Visualization == nil || s.Visualization.Suggestion != "thicker edges" {
		t.Fatalf("visualization not applied: %+v", s.Visualization)
	}
}

func TestSession_CommitDerivedReplacesPriorResults(t *testing.T) {
	s := NewSession("s4", "q", nil)
	s.CommitDerived(
		[]Relationship{{Source: "A", Description: "friend relation"}},
		"first summary",
		&Visualization{Suggestion: "force-directed graph"},
	)

	// A later run without a visualization must not inherit the old one.
	s.CommitDerived(
		[]Relationship{{Source: "B", Description: "colleague relation"}},
		"second summary",
		nil,
	)

	if s.Visualization != nil {
		t.Fatalf("visualization should be cleared, got %+v", s.Visualization)
	}
	if s.Summary != "second summary" {
		t.Fatalf("summary not replaced: %q", s.Summary)
	}
	if len(s.Relationships) != 1 || s.Relationships[0].Source != "B" {
		t.Fatalf("relationships not replaced: %+v", s.Relationships)
	}
}

func TestSessionStatus_Terminal(t *testing.T) {
	terminal := []SessionStatus{StatusCompleted, StatusFailed, StatusCancelled, StatusLoaded}
	for _, st := range terminal {
		if !st.Terminal() {
			t.Errorf("%s should be terminal", st)
		}
	}
	for _, st := range []SessionStatus{StatusInitializing, StatusProcessing} {
		if st.Terminal() {
			t.Errorf("%s should not be terminal", st)
		}
	}
}

func TestRelationship_Validate(t *testing.T) {
	valid := Relationship{Source: "A", Target: "B", Type: RelationStrong, Description: "friend relation", Confidence: 0.8}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid relationship rejected: %v", err)
	}

	if err := (Relationship{Type: "MEDIUM", Confidence: 0.5}).Validate(); err == nil {
		t.Error("unknown type should be rejected")
	}

	if err := (Relationship{Type: RelationWeak, Confidence: 1.2}).Validate(); err == nil {
		t.Error("confidence > 1 should be rejected")
	}

	// Dialogue-derived records carry only source + description.
	partial := Relationship{Source: "A", Description: "mentioned together"}
	if err := partial.Validate(); err != nil {
		t.Errorf("partial record should validate: %v", err)
	}
}

func TestRunToken(t *testing.T) {
	tok := NewRunToken("s1", 3)
	if tok.Cancelled() {
		t.Fatal("fresh token should not be cancelled")
	}
	tok.Cancel()
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatal("token should report cancelled")
	}
	if tok.Generation() != 3 || tok.SessionID() != "s1" {
		t.Fatalf("token identity lost: %s gen %d", tok.SessionID(), tok.Generation())
	}
}
