package seating

import (
	"fmt"
	"strings"
)

// DefaultTableCapacity is the seat count offered when a table is added.
const DefaultTableCapacity = 8

const nearlyFullPercent = 80

// CapacityStatus summarises how full a table is.
type CapacityStatus string

const (
	CapacityAvailable  CapacityStatus = "available"
	CapacityNearlyFull CapacityStatus = "nearly_full"
	CapacityFull       CapacityStatus = "full"
)

// CapacityStatus derives the fill level from the seat occupancy.
func (t Table) CapacityStatus() CapacityStatus {
	capacity := t.Capacity()
	if capacity == 0 {
		return CapacityAvailable
	}
	occupied := t.OccupiedCount()
	switch {
	case occupied >= capacity:
		return CapacityFull
	case occupied*100 >= capacity*nearlyFullPercent:
		return CapacityNearlyFull
	default:
		return CapacityAvailable
	}
}

// CreateTable builds a table with seats 1..capacity, all empty.
func CreateTable(id TableID, name string, capacity int, shape TableShape) (Table, error) {
	if strings.TrimSpace(id.String()) == "" {
		return Table{}, newValidationError("id", "empty")
	}
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Table{}, newValidationError("name", "empty")
	}
	if capacity < 1 {
		return Table{}, newValidationError("capacity", fmt.Sprintf("must be at least 1, got %d", capacity))
	}
	parsedShape, err := ParseTableShape(string(shape))
	if err != nil {
		return Table{}, err
	}
	seats := make([]Seat, capacity)
	for index := range seats {
		seats[index] = Seat{ID: SeatID(index + 1), TableID: id}
	}
	return Table{ID: id, Name: trimmedName, Shape: parsedShape, Seats: seats}, nil
}

// ResizeResult carries the resized table and the attendees whose seats were removed.
type ResizeResult struct {
	Table   Table
	Evicted []AttendeeID
}

// ResizeTable grows or shrinks a table. Shrinking removes the highest seat ids
// first; occupants of removed seats are reported in removal order.
func ResizeTable(table Table, newCapacity int) (ResizeResult, error) {
	if newCapacity < 1 {
		return ResizeResult{}, newValidationError("capacity", fmt.Sprintf("must be at least 1, got %d", newCapacity))
	}
	current := len(table.Seats)
	if newCapacity == current {
		return ResizeResult{Table: table}, nil
	}
	if newCapacity > current {
		seats := make([]Seat, current, newCapacity)
		copy(seats, table.Seats)
		nextID := highestSeatID(table.Seats) + 1
		for len(seats) < newCapacity {
			seats = append(seats, Seat{ID: nextID, TableID: table.ID})
			nextID++
		}
		return ResizeResult{Table: table.withSeats(seats)}, nil
	}

	kept := make([]Seat, current)
	copy(kept, table.Seats)
	var evicted []AttendeeID
	for len(kept) > newCapacity {
		highest := 0
		for index := range kept {
			if kept[index].ID > kept[highest].ID {
				highest = index
			}
		}
		if kept[highest].Occupied() {
			evicted = append(evicted, kept[highest].Occupant)
		}
		kept = append(kept[:highest], kept[highest+1:]...)
	}
	return ResizeResult{Table: table.withSeats(kept), Evicted: evicted}, nil
}

func highestSeatID(seats []Seat) SeatID {
	var highest SeatID
	for _, seat := range seats {
		if seat.ID > highest {
			highest = seat.ID
		}
	}
	return highest
}

// TablesResult carries a new table collection and the attendees that lost their seat.
type TablesResult struct {
	Tables  Tables
	Evicted []AttendeeID
}

// AddTable appends a table, rejecting duplicate ids.
func (tables Tables) AddTable(table Table) (Tables, error) {
	if tables.indexOf(table.ID) >= 0 {
		return tables, newValidationError("id", fmt.Sprintf("table %q already exists", table.ID))
	}
	updated := make(Tables, len(tables), len(tables)+1)
	copy(updated, tables)
	return append(updated, table), nil
}

// Resize applies ResizeTable to the table with the given id.
func (tables Tables) Resize(tableID TableID, newCapacity int) (TablesResult, error) {
	index := tables.indexOf(tableID)
	if index < 0 {
		return TablesResult{Tables: tables}, newNotFoundError(resourceTable, tableID.String())
	}
	resized, err := ResizeTable(tables[index], newCapacity)
	if err != nil {
		return TablesResult{Tables: tables}, err
	}
	if len(resized.Table.Seats) == len(tables[index].Seats) {
		return TablesResult{Tables: tables}, nil
	}
	return TablesResult{Tables: tables.replaceTable(index, resized.Table), Evicted: resized.Evicted}, nil
}

// DeleteTable removes a table; its occupants return to the unassigned pool.
func DeleteTable(tables Tables, tableID TableID) (TablesResult, error) {
	index := tables.indexOf(tableID)
	if index < 0 {
		return TablesResult{Tables: tables}, newNotFoundError(resourceTable, tableID.String())
	}
	var evicted []AttendeeID
	for _, seat := range tables[index].Seats {
		if seat.Occupied() {
			evicted = append(evicted, seat.Occupant)
		}
	}
	updated := make(Tables, 0, len(tables)-1)
	updated = append(updated, tables[:index]...)
	updated = append(updated, tables[index+1:]...)
	return TablesResult{Tables: updated, Evicted: evicted}, nil
}

// RenameTable changes a table name without touching occupancy.
func RenameTable(tables Tables, tableID TableID, name string) (Tables, error) {
	index := tables.indexOf(tableID)
	if index < 0 {
		return tables, newNotFoundError(resourceTable, tableID.String())
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return tables, newValidationError("name", "empty")
	}
	renamed := tables[index]
	renamed.Name = trimmed
	return tables.replaceTable(index, renamed), nil
}

// SetTableShape changes a table shape without touching occupancy.
func SetTableShape(tables Tables, tableID TableID, shape TableShape) (Tables, error) {
	index := tables.indexOf(tableID)
	if index < 0 {
		return tables, newNotFoundError(resourceTable, tableID.String())
	}
	parsed, err := ParseTableShape(string(shape))
	if err != nil {
		return tables, err
	}
	reshaped := tables[index]
	reshaped.Shape = parsed
	return tables.replaceTable(index, reshaped), nil
}

// Stats aggregates seating progress.
type Stats struct {
	TotalSeats        int `json:"total_seats"`
	OccupiedSeats     int `json:"occupied_seats"`
	UnseatedAttendees int `json:"unseated_attendees"`
}

// ComputeStats derives seat totals and the number of attendees still unseated.
func ComputeStats(tables Tables, attendees []Attendee) Stats {
	stats := Stats{}
	for _, table := range tables {
		stats.TotalSeats += table.Capacity()
		stats.OccupiedSeats += table.OccupiedCount()
	}
	stats.UnseatedAttendees = len(UnassignedAttendees(attendees, tables))
	return stats
}

// PresetTable is a quick-add table template.
type PresetTable struct {
	Name        string
	Capacity    int
	Description string
}

// PresetTables lists the common tables offered for quick add.
func PresetTables() []PresetTable {
	return []PresetTable{
		{Name: "Head Table", Capacity: 8, Description: "For the wedding party"},
		{Name: "Family Table", Capacity: 10, Description: "Close family members"},
		{Name: "Friends Table", Capacity: 8, Description: "College friends"},
	}
}
