package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRatingDirection(t *testing.T) {
	parties := Parties{ClientID: uuid.New(), ProviderID: uuid.New()}

	dir, ratee, err := parties.RatingDirection(parties.ClientID)
	if err != nil || dir != DirectionClientToProvider || ratee != parties.ProviderID {
		t.Fatalf("client rating: got %s %s %v", dir, ratee, err)
	}

	dir, ratee, err = parties.RatingDirection(parties.ProviderID)
	if err != nil || dir != DirectionProviderToClient || ratee != parties.ClientID {
		t.Fatalf("provider rating: got %s %s %v", dir, ratee, err)
	}

	if _, _, err := parties.RatingDirection(uuid.New()); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant for outsider, got %v", err)
	}
}

func TestStatusPredicates(t *testing.T) {
	cases := []struct {
		name string
		got  bool
		want bool
	}{
		{"pending accepts quotes", RequestPending.AcceptsQuotes(), true},
		{"quoting accepts quotes", RequestQuoting.AcceptsQuotes(), true},
		{"accepted closed", RequestAccepted.AcceptsQuotes(), false},
		{"cancelled closed", RequestCancelled.AcceptsQuotes(), false},
		{"open quote live", QuoteOpen.IsTerminal(), false},
		{"rejected quote terminal", QuoteRejected.IsTerminal(), true},
		{"scheduled job live", JobScheduled.IsTerminal(), false},
		{"in progress job live", JobInProgress.IsTerminal(), false},
		{"completed job terminal", JobCompleted.IsTerminal(), true},
		{"cancelled job terminal", JobCancelled.IsTerminal(), true},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestSentinelMatchesCopies(t *testing.T) {
	wrapped := ErrJobTerminal.WithOp("jobs.Cancel")
	if !errors.Is(wrapped, ErrJobTerminal) {
		t.Fatalf("expected op copy to match sentinel")
	}
	if errors.Is(wrapped, ErrQuoteNotOpen) {
		t.Fatalf("different codes must not match")
	}
}
