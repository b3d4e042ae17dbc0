package seating

import (
	"errors"
	"math"
	"testing"
)

const geometryTolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < geometryTolerance
}

func TestComputeSeatLayoutRoundStartsAtTop(t *testing.T) {
	first, err := ComputeSeatLayout(TableShapeRound, 0, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(first.X, 140) || !approxEqual(first.Y, 140-80) {
		t.Fatalf("unexpected first seat position: %#v", first)
	}

	quarter, err := ComputeSeatLayout(TableShapeRound, 2, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(quarter.X, 140+80) || !approxEqual(quarter.Y, 140) {
		t.Fatalf("unexpected quarter seat position: %#v", quarter)
	}
}

func TestComputeSeatLayoutRoundSeatsAreEquidistant(t *testing.T) {
	total := 30
	radius := roundRadius(total)
	if !approxEqual(radius, math.Min(roundMaxRadius, 50*30/(2*math.Pi))) {
		t.Fatalf("unexpected radius %f", radius)
	}
	for index := 0; index < total; index++ {
		point, err := ComputeSeatLayout(TableShapeRound, index, total)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		distance := math.Hypot(point.X-140, point.Y-140)
		if !approxEqual(distance, radius) {
			t.Fatalf("seat %d at distance %f, want %f", index, distance, radius)
		}
	}
}

func TestComputeSeatLayoutRectangularSplitsSides(t *testing.T) {
	total := 7
	top, bottom := 0, 0
	var topY, bottomY float64
	for index := 0; index < total; index++ {
		point, err := ComputeSeatLayout(TableShapeRectangular, index, total)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if point.Y < 140 {
			top++
			topY = point.Y
		} else {
			bottom++
			bottomY = point.Y
		}
	}
	if top != 4 || bottom != 3 {
		t.Fatalf("expected ceil/floor split 4/3, got %d/%d", top, bottom)
	}
	dimensions := ComputeTableDimensions(TableShapeRectangular, total)
	if !approxEqual(topY, 140-dimensions.Height/2-30) || !approxEqual(bottomY, 140+dimensions.Height/2+30) {
		t.Fatalf("unexpected side offsets: top=%f bottom=%f", topY, bottomY)
	}
	if dimensions.Width != 200 || dimensions.Height != 80 {
		t.Fatalf("unexpected dimensions: %#v", dimensions)
	}
}

func TestComputeSeatLayoutIsDeterministic(t *testing.T) {
	for _, shape := range []TableShape{TableShapeRound, TableShapeRectangular} {
		first, _ := ComputeSeatLayout(shape, 3, 10)
		second, _ := ComputeSeatLayout(shape, 3, 10)
		if first != second {
			t.Fatalf("expected deterministic layout for %s", shape)
		}
	}
}

func TestComputeSeatLayoutRejectsOutOfRange(t *testing.T) {
	if _, err := ComputeSeatLayout(TableShapeRound, 0, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ComputeSeatLayout(TableShapeRound, 4, 4); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ComputeSeatLayout("hexagon", 0, 4); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBoardHitTest(t *testing.T) {
	tables := Tables{
		mustTable(t, "t1", "Head", 4, TableShapeRound),
		mustTable(t, "t2", "Family", 6, TableShapeRectangular),
	}
	origins := map[TableID]Point{"t2": {X: 400, Y: 0}}
	board, err := NewBoard(tables, origins)
	if err != nil {
		t.Fatalf("unexpected board error: %v", err)
	}

	seatCenter, _ := ComputeSeatLayout(TableShapeRectangular, 4, 6)
	ref, ok := board.HitTest(Point{X: 400 + seatCenter.X + 5, Y: seatCenter.Y - 5})
	if !ok || ref != (SeatRef{TableID: "t2", SeatID: 5}) {
		t.Fatalf("expected hit on t2 seat 5, got %#v ok=%v", ref, ok)
	}

	if _, ok := board.HitTest(Point{X: 140, Y: 140}); ok {
		t.Fatalf("table centre must not resolve to a seat")
	}
	if len(board.Targets()) != 10 {
		t.Fatalf("expected 10 hit-targets, got %d", len(board.Targets()))
	}
}
