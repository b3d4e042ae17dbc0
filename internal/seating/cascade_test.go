package seating

import (
	"reflect"
	"testing"
)

func seatedParty(t *testing.T) Tables {
	t.Helper()
	tables := Tables{
		mustTable(t, "t1", "Head", 4, TableShapeRound),
		mustTable(t, "t2", "Family", 4, TableShapeRound),
	}
	tables = mustAssign(t, tables, "g1", "t1", 1).Tables
	tables = mustAssign(t, tables, "c1", "t2", 3).Tables
	tables = mustAssign(t, tables, "c2", "t2", 4).Tables
	tables = mustAssign(t, tables, "g9", "t1", 2).Tables
	return tables
}

func TestOnGuestDeletedClearsWholeParty(t *testing.T) {
	tables := seatedParty(t)

	cleared := OnGuestDeleted(tables, "g1", []AttendeeID{"c1", "c2"})

	if count := countSeatsHolding(cleared, "g1", "c1", "c2"); count != 0 {
		t.Fatalf("expected no seat to reference the deleted party, got %d", count)
	}
	if occupantOf(t, cleared, "t1", 2) != "g9" {
		t.Fatalf("unrelated occupants must stay seated")
	}
	if countSeatsHolding(tables, "g1", "c1", "c2") != 3 {
		t.Fatalf("input tables must not be mutated")
	}
}

func TestOnGuestRsvpChangedWithdrawal(t *testing.T) {
	tables := Tables{
		mustTable(t, "t1", "Head", 2, TableShapeRound),
		mustTable(t, "t2", "Family", 2, TableShapeRound),
	}
	tables = mustAssign(t, tables, "g1", "t1", 1).Tables
	tables = mustAssign(t, tables, "c1", "t2", 2).Tables

	cleared := OnGuestRsvpChanged(tables, "g1", []AttendeeID{"c1"}, true, false)
	if count := countSeatsHolding(cleared, "g1", "c1"); count != 0 {
		t.Fatalf("expected both seats cleared, got %d", count)
	}
}

func TestOnGuestRsvpChangedIgnoresOtherTransitions(t *testing.T) {
	tables := seatedParty(t)
	tests := []struct {
		name         string
		wasAttending bool
		isAttending  bool
	}{
		{name: "pending-to-declined", wasAttending: false, isAttending: false},
		{name: "becoming-attending", wasAttending: false, isAttending: true},
		{name: "still-attending", wasAttending: true, isAttending: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := OnGuestRsvpChanged(tables, "g1", []AttendeeID{"c1", "c2"}, tt.wasAttending, tt.isAttending)
			if !reflect.DeepEqual(result, tables) {
				t.Fatalf("expected tables unchanged")
			}
		})
	}
}

func TestClearAttendeesReportsClearedIDs(t *testing.T) {
	tables := seatedParty(t)
	updated, cleared := ClearAttendees(tables, "c2", "nobody", "g1")
	if !reflect.DeepEqual(cleared, []AttendeeID{"g1", "c2"}) {
		t.Fatalf("unexpected cleared ids: %v", cleared)
	}
	if countSeatsHolding(updated, "g1", "c2") != 0 {
		t.Fatalf("expected seats cleared")
	}

	same, none := ClearAttendees(tables, "nobody")
	if none != nil || !reflect.DeepEqual(same, tables) {
		t.Fatalf("clearing unseated ids must be a no-op")
	}
}
