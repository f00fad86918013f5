package status

import "testing"

func TestTransitionAllowsSelfEdges(t *testing.T) {
	for _, s := range []Status{New, InProgress, Review, Rebasing, Merging, Done, Canceled} {
		if err := Transition(s, s); err != nil {
			t.Errorf("expected self-edge %s -> %s to be allowed, got %v", s, s, err)
		}
	}
}

func TestTransitionAllowsDocumentedEdges(t *testing.T) {
	cases := []struct{ from, to Status }{
		{New, InProgress},
		{New, Rebasing},
		{InProgress, Rebasing},
		{Review, InProgress},
		{Review, Rebasing},
		{Review, Merging},
		{Review, Canceled},
		{InProgress, Review},
		{Rebasing, Review},
		{Merging, Done},
		{Merging, Review},
	}
	for _, c := range cases {
		if err := Transition(c.from, c.to); err != nil {
			t.Errorf("expected %s -> %s to be allowed, got %v", c.from, c.to, err)
		}
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	err := Transition(New, Done)
	if err == nil {
		t.Fatal("expected New -> Done to be rejected")
	}
	rejected, ok := err.(Rejected)
	if !ok {
		t.Fatalf("expected Rejected error type, got %T", err)
	}
	if rejected.From != New || rejected.To != Done {
		t.Errorf("unexpected rejected edge: %+v", rejected)
	}
}

func TestTransitionRejectsReverseOfOneWayEdge(t *testing.T) {
	if err := Transition(Done, Merging); err == nil {
		t.Error("expected Done -> Merging to be rejected (terminal state)")
	}
	if err := Transition(Canceled, Review); err == nil {
		t.Error("expected Canceled -> Review to be rejected (terminal state)")
	}
}

func TestParseAcceptsLegacyCommittingAlias(t *testing.T) {
	s, err := Parse("Committing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != InProgress {
		t.Errorf("expected Committing to alias InProgress, got %s", s)
	}
}

func TestParseRejectsUnknownStatus(t *testing.T) {
	if _, err := Parse("Bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestCanTransitionMatchesTransition(t *testing.T) {
	if !CanTransition(New, InProgress) {
		t.Error("expected CanTransition(New, InProgress) to be true")
	}
	if CanTransition(New, Done) {
		t.Error("expected CanTransition(New, Done) to be false")
	}
}
