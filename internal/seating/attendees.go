package seating

import "fmt"

// DeriveAttendees expands attending guests into seatable units: each guest's
// primary attendee followed by its companions in stored order. Companions
// whose id is still pending are skipped until the plan promotes them.
func DeriveAttendees(guests []Guest) []Attendee {
	attendees := make([]Attendee, 0, len(guests))
	for _, guest := range guests {
		if !guest.IsAttending() {
			continue
		}
		attendees = append(attendees, Attendee{
			ID:           AttendeeID(guest.ID),
			Name:         guest.Name,
			Kind:         AttendeeKindPrimary,
			OwnerGuestID: guest.ID,
		})
		for index, companion := range guest.Companions {
			attendeeID, ok := companion.ID.AttendeeID()
			if !ok {
				continue
			}
			attendees = append(attendees, Attendee{
				ID:           attendeeID,
				Name:         companionDisplayName(guest, companion, index),
				Kind:         AttendeeKindCompanion,
				OwnerGuestID: guest.ID,
			})
		}
	}
	return attendees
}

func companionDisplayName(guest Guest, companion Companion, index int) string {
	if companion.Name != "" {
		return companion.Name
	}
	return fmt.Sprintf("%s's Guest %d", guest.Name, index+1)
}

// UnassignedAttendees returns the attendees that occupy no seat.
func UnassignedAttendees(attendees []Attendee, tables Tables) []Attendee {
	occupied := tables.OccupiedIDs()
	unassigned := make([]Attendee, 0, len(attendees))
	for _, attendee := range attendees {
		if _, seated := occupied[attendee.ID]; !seated {
			unassigned = append(unassigned, attendee)
		}
	}
	return unassigned
}

// AttendeeIDsForGuest lists the ids a guest can occupy seats under: the
// primary id and each stable companion id. Cascade callers pass the companion
// part of this list.
func AttendeeIDsForGuest(guest Guest) []AttendeeID {
	ids := make([]AttendeeID, 0, 1+len(guest.Companions))
	ids = append(ids, AttendeeID(guest.ID))
	ids = append(ids, CompanionAttendeeIDs(guest)...)
	return ids
}

// CompanionAttendeeIDs lists the stable companion ids of a guest.
func CompanionAttendeeIDs(guest Guest) []AttendeeID {
	ids := make([]AttendeeID, 0, len(guest.Companions))
	for _, companion := range guest.Companions {
		if attendeeID, ok := companion.ID.AttendeeID(); ok {
			ids = append(ids, attendeeID)
		}
	}
	return ids
}

func attendeeSet(attendees []Attendee) map[AttendeeID]struct{} {
	set := make(map[AttendeeID]struct{}, len(attendees))
	for _, attendee := range attendees {
		set[attendee.ID] = struct{}{}
	}
	return set
}
