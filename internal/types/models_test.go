package types

import "testing"

func TestCallEventCompleted(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{"completed", true},
		{"Completed", true},
		{" COMPLETED ", true},
		{"missed", false},
		{"", false},
	}
	for _, tc := range cases {
		ev := CallEvent{Status: tc.status}
		if got := ev.Completed(); got != tc.want {
			t.Errorf("Completed(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestCallEventPhonePrefersClientNumber(t *testing.T) {
	ev := CallEvent{ClientNumber: "+9198765", DIDNumber: "+918000"}
	if got := ev.Phone(); got != "+9198765" {
		t.Errorf("Phone = %q", got)
	}
	ev.ClientNumber = "  "
	if got := ev.Phone(); got != "+918000" {
		t.Errorf("Phone fallback = %q", got)
	}
}

func TestCallRecordStartedAt(t *testing.T) {
	rec := CallRecord{Date: "2025-11-06", Time: "14:02"}
	if got := rec.StartedAt(); got != "2025-11-06 14:02" {
		t.Errorf("StartedAt = %q", got)
	}
	if got := (CallRecord{}).StartedAt(); got != "" {
		t.Errorf("empty StartedAt = %q", got)
	}
}
