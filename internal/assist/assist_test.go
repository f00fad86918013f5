package assist

import "testing"

func TestFailureTrackerObserveExceedsAfterIdenticalStreakLimit(t *testing.T) {
	tracker := NewFailureTracker(2)

	if tracker.Observe("same") {
		t.Error("expected first observation not to exceed the streak limit")
	}
	if tracker.Observe("same") {
		t.Error("expected second observation not to exceed the streak limit")
	}
	if !tracker.Observe("same") {
		t.Error("expected third identical observation to exceed the streak limit")
	}
}

func TestFailureTrackerObserveResetsStreakForNewFingerprint(t *testing.T) {
	tracker := NewFailureTracker(2)
	tracker.Observe("same")
	tracker.Observe("same")

	if tracker.Observe("other") {
		t.Error("expected a new fingerprint to reset the streak")
	}
}

func TestFailureTrackerObserveIsCaseAndWhitespaceInsensitive(t *testing.T) {
	tracker := NewFailureTracker(1)
	tracker.Observe("Build Failed")

	if !tracker.Observe("  build failed  ") {
		t.Error("expected normalized fingerprints to be treated as identical")
	}
}

func TestFailureTrackerObserveEmptyFingerprintResetsWithoutExceeding(t *testing.T) {
	tracker := NewFailureTracker(1)
	tracker.Observe("anything")

	if tracker.Observe("") {
		t.Error("expected an empty fingerprint never to exceed the limit")
	}
	if tracker.Observe("anything") {
		t.Error("expected the streak to have been reset by the empty observation")
	}
}

func TestFormatDetailLinesReturnsBulletedNonEmptyLines(t *testing.T) {
	got := FormatDetailLines("line one\n\nline two")
	want := "- line one\n- line two"
	if got != want {
		t.Errorf("FormatDetailLines = %q, want %q", got, want)
	}
}
