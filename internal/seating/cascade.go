package seating

// OnGuestRsvpChanged clears every seat held by the guest or its companions
// when the guest stops attending. Other transitions leave seating untouched;
// becoming attending never seats anyone.
func OnGuestRsvpChanged(tables Tables, guestID GuestID, companionIDs []AttendeeID, wasAttending, isAttending bool) Tables {
	if !wasAttending || isAttending {
		return tables
	}
	cleared, _ := ClearAttendees(tables, partyIDs(guestID, companionIDs)...)
	return cleared
}

// OnGuestDeleted clears every seat held by the guest or its companions,
// regardless of the guest's previous RSVP.
func OnGuestDeleted(tables Tables, guestID GuestID, companionIDs []AttendeeID) Tables {
	cleared, _ := ClearAttendees(tables, partyIDs(guestID, companionIDs)...)
	return cleared
}

func partyIDs(guestID GuestID, companionIDs []AttendeeID) []AttendeeID {
	ids := make([]AttendeeID, 0, 1+len(companionIDs))
	ids = append(ids, AttendeeID(guestID))
	return append(ids, companionIDs...)
}

// ClearAttendees empties every seat occupied by one of ids and returns the
// ids that were actually seated, in table then seat order.
func ClearAttendees(tables Tables, ids ...AttendeeID) (Tables, []AttendeeID) {
	if len(ids) == 0 {
		return tables, nil
	}
	targets := make(map[AttendeeID]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			targets[id] = struct{}{}
		}
	}

	var updated Tables
	var cleared []AttendeeID
	for tableIndex, table := range tables {
		var seats []Seat
		for seatIndex, seat := range table.Seats {
			if _, hit := targets[seat.Occupant]; !hit || !seat.Occupied() {
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
