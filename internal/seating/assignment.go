package seating

// AssignResult carries the tables after an assignment and the attendee that
// previously occupied the target seat, if any.
type AssignResult struct {
	Tables    Tables
	Displaced AttendeeID
	Changed   bool
}

// UnassignResult carries the tables after clearing a seat and the attendee removed from it.
type UnassignResult struct {
	Tables  Tables
	Removed AttendeeID
}

// AssignAttendeeToSeat seats attendeeID at the target, vacating its previous
// seat. A different occupant of the target is displaced rather than rejected.
// Assigning an attendee to the seat it already holds returns tables unchanged.
func AssignAttendeeToSeat(tables Tables, attendeeID AttendeeID, tableID TableID, seatID SeatID) (AssignResult, error) {
	if attendeeID == "" {
		return AssignResult{Tables: tables}, newValidationError("attendee_id", "empty")
	}
	target := SeatRef{TableID: tableID, SeatID: seatID}
	targetTable, targetSeat, err := tables.locate(target)
	if err != nil {
		return AssignResult{Tables: tables}, err
	}
	current := tables[targetTable].Seats[targetSeat]
	if current.Occupant == attendeeID {
		return AssignResult{Tables: tables}, nil
	}

	source, hasSource := tables.FindAttendee(attendeeID)
	updated := make(Tables, len(tables))
	copy(updated, tables)
	if hasSource {
		sourceTable, sourceSeat, _ := updated.locate(source)
		updated[sourceTable] = updated[sourceTable].withSeats(cloneSeats(updated[sourceTable].Seats))
		updated[sourceTable].Seats[sourceSeat].Occupant = ""
	}
	if !hasSource || source.TableID != tableID {
		updated[targetTable] = updated[targetTable].withSeats(cloneSeats(updated[targetTable].Seats))
	}
	updated[targetTable].Seats[targetSeat].Occupant = attendeeID

	return AssignResult{Tables: updated, Displaced: current.Occupant, Changed: true}, nil
}

// UnassignSeat clears the occupant of a seat. Clearing an empty seat is a no-op.
func UnassignSeat(tables Tables, tableID TableID, seatID SeatID) (UnassignResult, error) {
	tableIndex, seatIndex, err := tables.locate(SeatRef{TableID: tableID, SeatID: seatID})
	if err != nil {
		return UnassignResult{Tables: tables}, err
	}
	removed := tables[tableIndex].Seats[seatIndex].Occupant
	if removed == "" {
		return UnassignResult{Tables: tables}, nil
	}
	seats := cloneSeats(tables[tableIndex].Seats)
	seats[seatIndex].Occupant = ""
	return UnassignResult{
		Tables:  tables.replaceTable(tableIndex, tables[tableIndex].withSeats(seats)),
		Removed: removed,
	}, nil
}

// MoveAttendee moves an attendee between two seats. Both seats must exist;
// the source is vacated only if it still holds the attendee.
func MoveAttendee(tables Tables, attendeeID AttendeeID, from, to SeatRef) (AssignResult, error) {
	fromSeat, err := tables.Seat(from)
	if err != nil {
		return AssignResult{Tables: tables}, err
	}
	if _, err := tables.Seat(to); err != nil {
		return AssignResult{Tables: tables}, err
	}
	if from == to && fromSeat.Occupant == attendeeID {
		return AssignResult{Tables: tables}, nil
	}
	return AssignAttendeeToSeat(tables, attendeeID, to.TableID, to.SeatID)
}

func cloneSeats(seats []Seat) []Seat {
	cloned := make([]Seat, len(seats))
	copy(cloned, seats)
	return cloned
}
