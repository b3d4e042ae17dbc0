package seating

import (
	"fmt"
	"math"
)

// Seat layout constants, in pixels, relative to a square table frame.
const (
	frameCenterX = 140.0
	frameCenterY = 140.0

	roundMinRadius      = 80.0
	roundMaxRadius      = 180.0
	roundMinSeatSpacing = 50.0
	roundMinTableRadius = 60.0
	roundTableRatio     = 0.6

	rectMinWidth      = 200.0
	rectMaxWidth      = 500.0
	rectSeatSpacing   = 40.0
	rectBaseHeight    = 80.0
	rectMaxHeight     = 150.0
	rectHeightRatio   = 0.3
	rectSeatOffset    = 30.0
	defaultGridCell   = 320.0
	defaultGridColumn = 3

	// SeatHitRadius is the distance from a seat centre within which a pointer
	// position resolves to that seat.
	SeatHitRadius = 20.0
)

// Point is a 2D pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the component-wise sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

func (p Point) distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Dimensions describes the drawn table: width/height for rectangular tables,
// seat ring radius and table radius for round ones.
type Dimensions struct {
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Radius      float64 `json:"radius"`
	TableRadius float64 `json:"table_radius"`
}

// ComputeSeatLayout returns the centre of the seat at the 0-based seatIndex.
// Round tables spread seats evenly on a circle starting at 12 o'clock;
// rectangular tables put ceil(n/2) seats on the top side and the rest below.
func ComputeSeatLayout(shape TableShape, seatIndex, totalSeats int) (Point, error) {
	if totalSeats < 1 {
		return Point{}, newValidationError("total_seats", fmt.Sprintf("must be at least 1, got %d", totalSeats))
	}
	if seatIndex < 0 || seatIndex >= totalSeats {
		return Point{}, newValidationError("seat_index", fmt.Sprintf("%d outside 0..%d", seatIndex, totalSeats-1))
	}
	switch shape {
	case TableShapeRectangular:
		return rectangularSeat(seatIndex, totalSeats), nil
	case TableShapeRound, "":
		return roundSeat(seatIndex, totalSeats), nil
	default:
		return Point{}, newValidationError("shape", fmt.Sprintf("unknown shape %q", shape))
	}
}

func roundSeat(seatIndex, totalSeats int) Point {
	radius := roundRadius(totalSeats)
	angleStep := 2 * math.Pi / float64(totalSeats)
	angle := float64(seatIndex)*angleStep - math.Pi/2
	return Point{
		X: frameCenterX + radius*math.Cos(angle),
		Y: frameCenterY + radius*math.Sin(angle),
	}
}

func roundRadius(totalSeats int) float64 {
	required := roundMinSeatSpacing * float64(totalSeats) / (2 * math.Pi)
	return math.Max(roundMinRadius, math.Min(roundMaxRadius, required))
}

func rectangularSides(totalSeats int) (int, int) {
	top := (totalSeats + 1) / 2
	return top, totalSeats - top
}

func rectangularSize(totalSeats int) (float64, float64) {
	top, bottom := rectangularSides(totalSeats)
	longest := top
	if bottom > longest {
		longest = bottom
	}
	width := math.Min(rectMaxWidth, math.Max(rectMinWidth, float64(longest+1)*rectSeatSpacing))
	height := math.Max(rectBaseHeight, math.Min(rectMaxHeight, width*rectHeightRatio))
	return width, height
}

func rectangularSeat(seatIndex, totalSeats int) Point {
	top, bottom := rectangularSides(totalSeats)
	width, height := rectangularSize(totalSeats)
	left := frameCenterX - width/2
	if seatIndex < top {
		spacing := width / float64(top+1)
		return Point{
			X: left + spacing*float64(seatIndex+1),
			Y: frameCenterY - height/2 - rectSeatOffset,
		}
	}
	spacing := width / float64(bottom+1)
	return Point{
		X: left + spacing*float64(seatIndex-top+1),
		Y: frameCenterY + height/2 + rectSeatOffset,
	}
}

// ComputeTableDimensions returns the drawn size of a table with totalSeats seats.
func ComputeTableDimensions(shape TableShape, totalSeats int) Dimensions {
	if totalSeats < 1 {
		return Dimensions{Width: rectMinWidth, Height: rectBaseHeight, Radius: roundMinRadius, TableRadius: roundMinTableRadius}
	}
	if shape == TableShapeRectangular {
		width, height := rectangularSize(totalSeats)
		return Dimensions{Width: width, Height: height}
	}
	radius := roundRadius(totalSeats)
	return Dimensions{Radius: radius, TableRadius: math.Max(roundMinTableRadius, radius*roundTableRatio)}
}

// SeatPosition pairs a seat with its computed centre.
type SeatPosition struct {
	Ref    SeatRef `json:"seat"`
	Center Point   `json:"center"`
}

// LayoutTable computes the centre of every seat of a table in frame coordinates.
func LayoutTable(table Table) ([]SeatPosition, error) {
	positions := make([]SeatPosition, 0, len(table.Seats))
	for index, seat := range table.Seats {
		center, err := ComputeSeatLayout(table.Shape, index, len(table.Seats))
		if err != nil {
			return nil, err
		}
		positions = append(positions, SeatPosition{
			Ref:    SeatRef{TableID: table.ID, SeatID: seat.ID},
			Center: center,
		})
	}
	return positions, nil
}

// HitTester resolves a pointer position to a seat.
type HitTester interface {
	HitTest(point Point) (SeatRef, bool)
}

// Board holds the rendered seat hit-targets of every table on the canvas.
type Board struct {
	targets []SeatPosition
}

// NewBoard places each table's frame at its origin and precomputes seat
// centres. Tables without an explicit origin are laid out on a grid.
func NewBoard(tables Tables, origins map[TableID]Point) (*Board, error) {
	board := &Board{}
	for index, table := range tables {
		origin, ok := origins[table.ID]
		if !ok {
			origin = Point{
				X: float64(index%defaultGridColumn) * defaultGridCell,
				Y: float64(index/defaultGridColumn) * defaultGridCell,
			}
		}
		positions, err := LayoutTable(table)
		if err != nil {
			return nil, err
		}
		for _, position := range positions {
			board.targets = append(board.targets, SeatPosition{
				Ref:    position.Ref,
				Center: origin.Add(position.Center),
			})
		}
	}
	return board, nil
}

// HitTest returns the seat whose centre is nearest to point, if it lies within SeatHitRadius.
func (b *Board) HitTest(point Point) (SeatRef, bool) {
	if b == nil {
		return SeatRef{}, false
	}
	best := -1
	bestDistance := SeatHitRadius
	for index, target := range b.targets {
		distance := point.distance(target.Center)
		if distance <= bestDistance {
			best = index
			bestDistance = distance
		}
	}
	if best < 0 {
		return SeatRef{}, false
	}
	return b.targets[best].Ref, true
}

// Targets returns the seat hit-targets in table order.
func (b *Board) Targets() []SeatPosition {
	if b == nil {
		return nil
	}
	targets := make([]SeatPosition, len(b.targets))
	copy(targets, b.targets)
	return targets
}
