package seating

import "fmt"

// CheckInvariants verifies that no attendee holds two seats, every occupant is
// a live attendee, and every table's seats are addressed consistently.
func CheckInvariants(tables Tables, attendees []Attendee) error {
	live := attendeeSet(attendees)
	seen := make(map[AttendeeID]SeatRef)
	tableIDs := make(map[TableID]struct{}, len(tables))
	var violations []string

	for _, table := range tables {
		if _, duplicate := tableIDs[table.ID]; duplicate {
			violations = append(violations, fmt.Sprintf("table %q appears more than once", table.ID))
		}
		tableIDs[table.ID] = struct{}{}

		seatIDs := make(map[SeatID]struct{}, len(table.Seats))
		for _, seat := range table.Seats {
			ref := SeatRef{TableID: table.ID, SeatID: seat.ID}
			if seat.TableID != table.ID {
				violations = append(violations, fmt.Sprintf("seat %s/%d references table %q", table.ID, seat.ID, seat.TableID))
			}
			if _, duplicate := seatIDs[seat.ID]; duplicate {
				violations = append(violations, fmt.Sprintf("seat %s/%d appears more than once", table.ID, seat.ID))
			}
			seatIDs[seat.ID] = struct{}{}
			if !seat.Occupied() {
				continue
			}
			if previous, duplicate := seen[seat.Occupant]; duplicate {
				violations = append(violations, fmt.Sprintf("attendee %q occupies %s/%d and %s/%d",
					seat.Occupant, previous.TableID, previous.SeatID, table.ID, seat.ID))
			} else {
				seen[seat.Occupant] = ref
			}
			if _, ok := live[seat.Occupant]; !ok {
				violations = append(violations, fmt.Sprintf("seat %s/%d holds unknown attendee %q", table.ID, seat.ID, seat.Occupant))
			}
		}
	}

	if len(violations) > 0 {
		return &InvariantError{Violations: violations}
	}
	return nil
}

// Reconcile clears occupants that are not live attendees and keeps only the
// first seat of an attendee found in more than one. It returns the cleared ids.
func Reconcile(tables Tables, attendees []Attendee) (Tables, []AttendeeID) {
	live := attendeeSet(attendees)
	seen := make(map[AttendeeID]struct{})

	var updated Tables
	var cleared []AttendeeID
	for tableIndex, table := range tables {
		var seats []Seat
		for seatIndex, seat := range table.Seats {
			if !seat.Occupied() {
				continue
			}
			_, isLive := live[seat.Occupant]
			_, isDuplicate := seen[seat.Occupant]
			if isLive && !isDuplicate {
				seen[seat.Occupant] = struct{}{}
				continue
			}
			if seats == nil {
				seats = cloneSeats(table.Seats)
			}
			seats[seatIndex].Occupant = ""
			cleared = append(cleared, seat.Occupant)
		}
		if seats == nil {
			continue
		}
		if updated == nil {
			updated = make(Tables, len(tables))
			copy(updated, tables)
		}
		updated[tableIndex] = table.withSeats(seats)
	}
	if updated == nil {
		return tables, nil
	}
	return updated, cleared
}
