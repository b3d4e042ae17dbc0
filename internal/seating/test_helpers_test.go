package seating

import "testing"

func mustTable(t *testing.T, id, name string, capacity int, shape TableShape) Table {
	t.Helper()
	table, err := CreateTable(TableID(id), name, capacity, shape)
	if err != nil {
		t.Fatalf("unexpected create table error: %v", err)
	}
	return table
}

func mustAssign(t *testing.T, tables Tables, attendeeID string, tableID string, seatID int) AssignResult {
	t.Helper()
	result, err := AssignAttendeeToSeat(tables, AttendeeID(attendeeID), TableID(tableID), SeatID(seatID))
	if err != nil {
		t.Fatalf("unexpected assign error: %v", err)
	}
	return result
}

func mustStableCompanion(t *testing.T, id, name string) Companion {
	t.Helper()
	companionID, err := StableCompanionID(id)
	if err != nil {
		t.Fatalf("unexpected companion id error: %v", err)
	}
	return Companion{ID: companionID, Name: name}
}

func mustPendingCompanion(t *testing.T, id, name string) Companion {
	t.Helper()
	companionID, err := PendingCompanionID(id)
	if err != nil {
		t.Fatalf("unexpected companion id error: %v", err)
	}
	return Companion{ID: companionID, Name: name}
}

func occupantOf(t *testing.T, tables Tables, tableID string, seatID int) AttendeeID {
	t.Helper()
	seat, err := tables.Seat(SeatRef{TableID: TableID(tableID), SeatID: SeatID(seatID)})
	if err != nil {
		t.Fatalf("unexpected seat lookup error: %v", err)
	}
	return seat.Occupant
}

func countSeatsHolding(tables Tables, ids ...AttendeeID) int {
	targets := make(map[AttendeeID]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}
	count := 0
	for _, table := range tables {
		for _, seat := range table.Seats {
			if _, ok := targets[seat.Occupant]; ok && seat.Occupied() {
				count++
			}
		}
	}
	return count
}
