package seating

import "sync"

// DragState is the state of the interactive assignment machine.
type DragState string

const (
	DragStateIdle     DragState = "idle"
	DragStateDragging DragState = "dragging"
)

// DragEventType enumerates feedback published to renderers.
type DragEventType string

const (
	DragEventStarted   DragEventType = "drag-started"
	DragEventMoved     DragEventType = "drag-moved"
	DragEventDropped   DragEventType = "drag-dropped"
	DragEventCancelled DragEventType = "drag-cancelled"
)

const defaultDragEventBuffer = 16

// DragSnapshot is the observable state of a DragController.
type DragSnapshot struct {
	State    DragState
	Attendee *Attendee
	Source   *SeatRef
	Position Point
	Hovered  *SeatRef
}

// DragEvent is published on every transition and pointer move.
type DragEvent struct {
	Type     DragEventType
	Snapshot DragSnapshot
	Target   *SeatRef
}

// DropResult reports the outcome of releasing a drag.
type DropResult struct {
	Tables    Tables
	Target    *SeatRef
	Displaced AttendeeID
	Changed   bool
	Cancelled bool
}

// DragController translates press/move/release pointer events into
// assignment calls. It is owned by the component that starts the drag; tables
// are never mutated while dragging.
type DragController struct {
	mu          sync.Mutex
	hitTester   HitTester
	state       DragState
	dragged     Attendee
	source      *SeatRef
	position    Point
	hovered     *SeatRef
	subscribers map[int64]chan DragEvent
	nextID      int64
}

// NewDragController constructs an idle controller resolving pointer positions with hitTester.
func NewDragController(hitTester HitTester) *DragController {
	return &DragController{
		hitTester:   hitTester,
		state:       DragStateIdle,
		subscribers: make(map[int64]chan DragEvent),
	}
}

// SetHitTester swaps the seat hit-targets, typically after the board is re-rendered.
func (c *DragController) SetHitTester(hitTester HitTester) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hitTester = hitTester
}

// Subscribe returns a stream of drag feedback events and a cleanup func.
// Slow subscribers miss events rather than block the controller.
func (c *DragController) Subscribe() (<-chan DragEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	stream := make(chan DragEvent, defaultDragEventBuffer)
	c.subscribers[id] = stream
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
			close(stream)
		})
	}
	return stream, cleanup
}

// Snapshot returns the current observable state.
func (c *DragController) Snapshot() DragSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// IsSeatHovered reports whether ref is the candidate seat under the pointer.
func (c *DragController) IsSeatHovered(ref SeatRef) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered != nil && *c.hovered == ref
}

// Press starts dragging an attendee picked from the unassigned list (from nil)
// or from the seat it occupies.
func (c *DragController) Press(attendee Attendee, from *SeatRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == DragStateDragging {
		return ErrDragInProgress
	}
	if attendee.ID == "" {
		return newValidationError("attendee_id", "empty")
	}
	c.state = DragStateDragging
	c.dragged = attendee
	c.source = copyRef(from)
	c.hovered = nil
	c.publishLocked(DragEvent{Type: DragEventStarted, Snapshot: c.snapshotLocked()})
	return nil
}

// Move records the pointer position and refreshes the hovered seat. It is
// ignored while idle.
func (c *DragController) Move(point Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != DragStateDragging {
		return
	}
	c.position = point
	c.hovered = nil
	if ref, ok := c.hitTestLocked(point); ok {
		c.hovered = &ref
	}
	c.publishLocked(DragEvent{Type: DragEventMoved, Snapshot: c.snapshotLocked()})
}

// Release ends the drag at point. Landing on a seat assigns the dragged
// attendee there; landing anywhere else cancels and leaves tables unchanged,
// including for an attendee dragged out of a seat. The controller is idle
// afterwards in every case.
func (c *DragController) Release(tables Tables, point Point) (DropResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != DragStateDragging {
		c.resetLocked()
		return DropResult{Tables: tables, Cancelled: true}, nil
	}
	c.position = point
	attendee := c.dragged

	target, ok := c.hitTestLocked(point)
	if !ok {
		c.publishLocked(DragEvent{Type: DragEventCancelled, Snapshot: c.snapshotLocked()})
		c.resetLocked()
		return DropResult{Tables: tables, Cancelled: true}, nil
	}

	result, err := AssignAttendeeToSeat(tables, attendee.ID, target.TableID, target.SeatID)
	if err != nil {
		c.publishLocked(DragEvent{Type: DragEventCancelled, Snapshot: c.snapshotLocked(), Target: &target})
		c.resetLocked()
		return DropResult{Tables: tables, Cancelled: true}, err
	}
	c.publishLocked(DragEvent{Type: DragEventDropped, Snapshot: c.snapshotLocked(), Target: &target})
	c.resetLocked()
	return DropResult{Tables: result.Tables, Target: &target, Displaced: result.Displaced, Changed: result.Changed}, nil
}

// Cancel abandons the current drag without touching any table.
func (c *DragController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != DragStateDragging {
		return
	}
	c.publishLocked(DragEvent{Type: DragEventCancelled, Snapshot: c.snapshotLocked()})
	c.resetLocked()
}

// ClickSeat is the click shortcut on an occupied seat: it unassigns the seat
// immediately without entering the drag machine.
func (c *DragController) ClickSeat(tables Tables, ref SeatRef) (UnassignResult, error) {
	c.mu.Lock()
	dragging := c.state == DragStateDragging
	c.mu.Unlock()
	if dragging {
		return UnassignResult{Tables: tables}, ErrDragInProgress
	}
	return UnassignSeat(tables, ref.TableID, ref.SeatID)
}

func (c *DragController) hitTestLocked(point Point) (SeatRef, bool) {
	if c.hitTester == nil {
		return SeatRef{}, false
	}
	return c.hitTester.HitTest(point)
}

func (c *DragController) resetLocked() {
	c.state = DragStateIdle
	c.dragged = Attendee{}
	c.source = nil
	c.hovered = nil
}

func (c *DragController) snapshotLocked() DragSnapshot {
	snapshot := DragSnapshot{
		State:    c.state,
		Position: c.position,
		Source:   copyRef(c.source),
		Hovered:  copyRef(c.hovered),
	}
	if c.state == DragStateDragging {
		attendee := c.dragged
		snapshot.Attendee = &attendee
	}
	return snapshot
}

func (c *DragController) publishLocked(event DragEvent) {
	for _, stream := range c.subscribers {
		select {
		case stream <- event:
		default:
		}
	}
}

func copyRef(ref *SeatRef) *SeatRef {
	if ref == nil {
		return nil
	}
	copied := *ref
	return &copied
}
