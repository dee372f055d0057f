package models

import "testing"

func TestStatusForwardPath(t *testing.T) {
	cases := []struct {
		from, to ReportStatus
		want     bool
	}{
		{StatusReported, StatusUnderReview, true},
		{StatusUnderReview, StatusResolved, true},
		{StatusUnderReview, StatusDismissed, true},

		// No self-transitions.
		{StatusReported, StatusReported, false},
		{StatusUnderReview, StatusUnderReview, false},

		// No skipping under_review.
		{StatusReported, StatusResolved, false},
		{StatusReported, StatusDismissed, false},

		// Terminal states are final.
		{StatusResolved, StatusUnderReview, false},
		{StatusResolved, StatusDismissed, false},
		{StatusDismissed, StatusReported, false},

		// No moving backwards.
		{StatusUnderReview, StatusReported, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusReported.Terminal() || StatusUnderReview.Terminal() {
		t.Error("non-terminal states reported as terminal")
	}
	if !StatusResolved.Terminal() || !StatusDismissed.Terminal() {
		t.Error("terminal states not reported as terminal")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []ReportStatus{StatusReported, StatusUnderReview, StatusResolved, StatusDismissed} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus("pending") {
		t.Error("ValidStatus accepted unknown state")
	}
}
