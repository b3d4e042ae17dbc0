package seating

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidGuestID indicates that a guest identifier is empty or exceeds storage bounds.
	ErrInvalidGuestID = errors.New("seating: invalid guest id")
	// ErrInvalidTableID indicates that a table identifier is empty or exceeds storage bounds.
	ErrInvalidTableID = errors.New("seating: invalid table id")
	// ErrInvalidAttendeeID indicates that an attendee identifier is empty or exceeds storage bounds.
	ErrInvalidAttendeeID = errors.New("seating: invalid attendee id")
	// ErrInvalidCompanionID indicates that a companion identifier is empty or exceeds storage bounds.
	ErrInvalidCompanionID = errors.New("seating: invalid companion id")
	// ErrPendingCompanionID indicates that a provisional companion id reached a place that requires a stable one.
	ErrPendingCompanionID = errors.New("seating: companion id is still pending")
)

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// GuestID represents a validated guest identifier.
type GuestID string

// NewGuestID validates raw input and returns a GuestID.
func NewGuestID(rawInput string) (GuestID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidGuestID)
	if err != nil {
		return "", err
	}
	return GuestID(value), nil
}

// String returns the underlying string identifier.
func (id GuestID) String() string {
	return string(id)
}

// TableID represents a validated table identifier.
type TableID string

// NewTableID validates raw input and returns a TableID.
func NewTableID(rawInput string) (TableID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidTableID)
	if err != nil {
		return "", err
	}
	return TableID(value), nil
}

// String returns the underlying string identifier.
func (id TableID) String() string {
	return string(id)
}

// AttendeeID identifies a seatable unit. It equals the guest id for a primary
// attendee and the stable companion id for a companion.
type AttendeeID string

// NewAttendeeID validates raw input and returns an AttendeeID.
func NewAttendeeID(rawInput string) (AttendeeID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidAttendeeID)
	if err != nil {
		return "", err
	}
	return AttendeeID(value), nil
}

// String returns the underlying string identifier.
func (id AttendeeID) String() string {
	return string(id)
}

// SeatID is the 1-based position of a seat within its table.
type SeatID int

// CompanionID is a two-phase identifier. A companion is created with a pending
// id on the client and receives a stable id once the owning plan commits it.
// Only stable ids may ever be referenced by a seat.
type CompanionID struct {
	value   string
	pending bool
}

// PendingCompanionID wraps a provisional, client-side companion identifier.
func PendingCompanionID(rawInput string) (CompanionID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidCompanionID)
	if err != nil {
		return CompanionID{}, err
	}
	return CompanionID{value: value, pending: true}, nil
}

// StableCompanionID wraps a committed companion identifier.
func StableCompanionID(rawInput string) (CompanionID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidCompanionID)
	if err != nil {
		return CompanionID{}, err
	}
	return CompanionID{value: value}, nil
}

// IsPending reports whether the identifier has not been promoted yet.
func (id CompanionID) IsPending() bool {
	return id.pending
}

// IsZero reports whether the identifier was never set.
func (id CompanionID) IsZero() bool {
	return id.value == ""
}

// String returns the raw identifier value.
func (id CompanionID) String() string {
	return id.value
}

// AttendeeID returns the attendee id for a stable companion.
func (id CompanionID) AttendeeID() (AttendeeID, bool) {
	if id.pending || id.value == "" {
		return "", false
	}
	return AttendeeID(id.value), true
}

// MarshalJSON encodes stable ids as plain strings. Pending ids cannot be
// persisted and fail to encode.
func (id CompanionID) MarshalJSON() ([]byte, error) {
	if id.pending {
		return nil, fmt.Errorf("%w: %s", ErrPendingCompanionID, id.value)
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON decodes a persisted companion id, which is always stable.
func (id *CompanionID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := StableCompanionID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// RSVPStatus represents the attendance confirmation status of a guest.
type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "pending"
	RSVPAttending RSVPStatus = "attending"
	RSVPDeclined  RSVPStatus = "declined"
)

// ParseRSVPStatus normalises user input into an RSVPStatus. Empty input maps to pending.
func ParseRSVPStatus(value string) (RSVPStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(RSVPPending):
		return RSVPPending, nil
	case string(RSVPAttending):
		return RSVPAttending, nil
	case string(RSVPDeclined):
		return RSVPDeclined, nil
	default:
		return "", newValidationError("rsvp_status", fmt.Sprintf("unknown status %q", value))
	}
}

// Companion is a guest's plus one. It cannot exist without its owning guest.
type Companion struct {
	ID             CompanionID `json:"id"`
	Name           string      `json:"name"`
	MealPreference string      `json:"meal_preference"`
	Notes          string      `json:"notes"`
}

// Guest is a top-level invitee.
type Guest struct {
	ID             GuestID     `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	RSVPStatus     RSVPStatus  `json:"rsvp_status"`
	MealPreference string      `json:"meal_preference"`
	Notes          string      `json:"notes"`
	Companions     []Companion `json:"plus_ones"`
}

// IsAttending reports whether the guest currently yields attendees.
func (g Guest) IsAttending() bool {
	return g.RSVPStatus == RSVPAttending
}

// AttendeeKind distinguishes primary guests from their companions.
type AttendeeKind string

const (
	AttendeeKindPrimary   AttendeeKind = "primary"
	AttendeeKindCompanion AttendeeKind = "companion"
)

// Attendee is a derived, ephemeral seatable unit.
type Attendee struct {
	ID           AttendeeID   `json:"id"`
	Name         string       `json:"name"`
	Kind         AttendeeKind `json:"kind"`
	OwnerGuestID GuestID      `json:"owner_guest_id"`
}

// TableShape controls how seats are laid out around a table.
type TableShape string

const (
	TableShapeRound       TableShape = "round"
	TableShapeRectangular TableShape = "rectangular"
)

// ParseTableShape normalises user input into a TableShape. Empty input maps to round.
func ParseTableShape(value string) (TableShape, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(TableShapeRound):
		return TableShapeRound, nil
	case string(TableShapeRectangular):
		return TableShapeRectangular, nil
	default:
		return "", newValidationError("shape", fmt.Sprintf("unknown shape %q", value))
	}
}

// Seat is a single unit of table capacity holding at most one attendee.
type Seat struct {
	ID       SeatID     `json:"id"`
	TableID  TableID    `json:"table_id"`
	Occupant AttendeeID `json:"occupant_attendee_id,omitempty"`
}

// Occupied reports whether an attendee sits in the seat.
func (s Seat) Occupied() bool {
	return s.Occupant != ""
}

// SeatRef addresses one seat of one table.
type SeatRef struct {
	TableID TableID `json:"table_id"`
	SeatID  SeatID  `json:"seat_id"`
}

// Table owns an ordered list of seats; its capacity is the seat count.
type Table struct {
	ID    TableID    `json:"id"`
	Name  string     `json:"name"`
	Shape TableShape `json:"shape"`
	Seats []Seat     `json:"seats"`
}

// Capacity returns the number of seats at the table.
func (t Table) Capacity() int {
	return len(t.Seats)
}

// OccupiedCount returns the number of occupied seats.
func (t Table) OccupiedCount() int {
	count := 0
	for _, seat := range t.Seats {
		if seat.Occupied() {
			count++
		}
	}
	return count
}

// seatIndex returns the slice position of the seat with the given id.
func (t Table) seatIndex(seatID SeatID) int {
	for index, seat := range t.Seats {
		if seat.ID == seatID {
			return index
		}
	}
	return -1
}

// withSeats returns a copy of the table sharing metadata but owning the provided seats.
func (t Table) withSeats(seats []Seat) Table {
	return Table{ID: t.ID, Name: t.Name, Shape: t.Shape, Seats: seats}
}

// Tables is the ordered collection of tables of a plan. It is treated as an
// immutable value: operations return new collections.
type Tables []Table

func (tables Tables) indexOf(tableID TableID) int {
	for index, table := range tables {
		if table.ID == tableID {
			return index
		}
	}
	return -1
}

// Table returns the table with the given id.
func (tables Tables) Table(tableID TableID) (Table, bool) {
	index := tables.indexOf(tableID)
	if index < 0 {
		return Table{}, false
	}
	return tables[index], true
}

// Seat returns the seat addressed by ref.
func (tables Tables) Seat(ref SeatRef) (Seat, error) {
	tableIndex, seatIndex, err := tables.locate(ref)
	if err != nil {
		return Seat{}, err
	}
	return tables[tableIndex].Seats[seatIndex], nil
}

// FindAttendee returns the seat currently occupied by attendeeID.
func (tables Tables) FindAttendee(attendeeID AttendeeID) (SeatRef, bool) {
	if attendeeID == "" {
		return SeatRef{}, false
	}
	for _, table := range tables {
		for _, seat := range table.Seats {
			if seat.Occupant == attendeeID {
				return SeatRef{TableID: table.ID, SeatID: seat.ID}, true
			}
		}
	}
	return SeatRef{}, false
}

// OccupiedIDs returns the set of attendee ids currently seated.
func (tables Tables) OccupiedIDs() map[AttendeeID]struct{} {
	occupied := make(map[AttendeeID]struct{})
	for _, table := range tables {
		for _, seat := range table.Seats {
			if seat.Occupied() {
				occupied[seat.Occupant] = struct{}{}
			}
		}
	}
	return occupied
}

func (tables Tables) locate(ref SeatRef) (int, int, error) {
	tableIndex := tables.indexOf(ref.TableID)
	if tableIndex < 0 {
		return -1, -1, newNotFoundError(resourceTable, ref.TableID.String())
	}
	seatIndex := tables[tableIndex].seatIndex(ref.SeatID)
	if seatIndex < 0 {
		return -1, -1, newNotFoundError(resourceSeat, fmt.Sprintf("%s/%d", ref.TableID, ref.SeatID))
	}
	return tableIndex, seatIndex, nil
}

// replaceTable returns a new collection with the table at index replaced.
func (tables Tables) replaceTable(index int, table Table) Tables {
	updated := make(Tables, len(tables))
	copy(updated, tables)
	updated[index] = table
	return updated
}
