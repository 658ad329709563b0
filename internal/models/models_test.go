package models

import "testing"

func TestParseVerdict_AcceptsClosedSet(t *testing.T) {
	valid := []string{"pending", "AC", "WA", "TLE", "MLE", "RE", "CE", "IE"}
	for _, s := range valid {
		v, err := ParseVerdict(s)
		if err != nil {
			t.Errorf("ParseVerdict(%q) returned unexpected error: %v", s, err)
		}
		if string(v) != s {
			t.Errorf("ParseVerdict(%q) = %q, want %q", s, v, s)
		}
	}
}

func TestParseVerdict_RejectsUnknownStrings(t *testing.T) {
	invalid := []string{"", "ac", "accepted", "SKIPPED", "AC "}
	for _, s := range invalid {
		if _, err := ParseVerdict(s); err == nil {
			t.Errorf("ParseVerdict(%q) should have been rejected as outside the closed enum", s)
		}
	}
}

func TestVerdict_IsTerminal(t *testing.T) {
	if VerdictPending.IsTerminal() {
		t.Errorf("pending must not be terminal")
	}
	for _, v := range []Verdict{VerdictAccepted, VerdictWrongAns, VerdictTimeLim, VerdictMemLim, VerdictRuntime, VerdictCompile, VerdictInternal} {
		if !v.IsTerminal() {
			t.Errorf("%s must be terminal", v)
		}
	}
}

func TestVerdict_IsNonAC(t *testing.T) {
	if VerdictPending.IsNonAC() {
		t.Errorf("pending is not terminal, so it cannot be a non-AC terminal verdict")
	}
	if VerdictAccepted.IsNonAC() {
		t.Errorf("AC must not be considered a non-AC verdict")
	}
	if !VerdictWrongAns.IsNonAC() {
		t.Errorf("WA must be considered a non-AC terminal verdict")
	}
}

func TestVerdict_ScanAndValue(t *testing.T) {
	var v Verdict
	if err := v.Scan(nil); err != nil {
		t.Fatalf("unexpected error scanning nil: %v", err)
	}
	if v != VerdictPending {
		t.Errorf("scanning nil should default to pending, got %s", v)
	}

	if err := v.Scan("AC"); err != nil {
		t.Fatalf("unexpected error scanning string: %v", err)
	}
	if v != VerdictAccepted {
		t.Errorf("expected AC after scanning, got %s", v)
	}

	dv, err := v.Value()
	if err != nil {
		t.Fatalf("unexpected error from Value: %v", err)
	}
	if dv != "AC" {
		t.Errorf("expected driver value %q, got %v", "AC", dv)
	}
}
