package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/seating"
	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("plan store is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingPlanID     = errors.New("plan identifier is required")
	errServiceClosed     = errors.New("plan service is closed")
	errIDGeneration      = errors.New("plan: id generation failed")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "plan.service.new"
	opView            = "plan.view"
	opAddTable        = "plan.add_table"
	opAddPresets      = "plan.add_presets"
	opUpdateTable     = "plan.update_table"
	opDeleteTable     = "plan.delete_table"
	opAssignSeat      = "plan.assign_seat"
	opUnassignSeat    = "plan.unassign_seat"
	opMoveAttendee    = "plan.move_attendee"
	opDropAttendee    = "plan.drop_attendee"
	opUpsertGuest     = "plan.upsert_guest"
	opSetGuestRSVP    = "plan.set_guest_rsvp"
	opDeleteGuest     = "plan.delete_guest"
	opRemoveCompanion = "plan.remove_companion"
	opFlush           = "plan.flush"
	opClose           = "plan.close"
)

const (
	resourceAttendee  = "attendee"
	resourceGuest     = "guest"
	resourceCompanion = "companion"
	resourceTable     = "table"

	defaultSaveTimeout = 5 * time.Second
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ChangeListener receives every applied change after it is committed. Calls
// are serialised and arrive in commit order, so versions for a plan are
// strictly increasing. A listener must not call back into the Service.
type ChangeListener func(Change)

// Change describes one committed mutation. Released lists the attendees that
// lost a seat and returned to the unassigned pool: a displaced occupant, the
// occupants of removed seats, or everyone cleared by a guest cascade.
type Change struct {
	PlanID    string               `json:"plan_id"`
	Version   int64                `json:"version"`
	Operation string               `json:"operation"`
	Applied   bool                 `json:"applied"`
	Table     *seating.Table       `json:"table,omitempty"`
	Tables    []seating.Table      `json:"tables,omitempty"`
	Guest     *seating.Guest       `json:"guest,omitempty"`
	Seat      *seating.SeatRef     `json:"seat,omitempty"`
	Released  []seating.AttendeeID `json:"released,omitempty"`
}

// View is a read model of a plan. Its slices are shared with the service and
// must not be modified.
type View struct {
	PlanID     string             `json:"plan_id"`
	Version    int64              `json:"version"`
	Guests     []seating.Guest    `json:"guests"`
	Tables     seating.Tables     `json:"tables"`
	Attendees  []seating.Attendee `json:"attendees"`
	Unassigned []seating.Attendee `json:"unassigned"`
	Stats      seating.Stats      `json:"stats"`
}

type ServiceConfig struct {
	Store       Store
	IDProvider  IDProvider
	Logger      *zap.Logger
	SaveTimeout time.Duration
	Listener    ChangeListener
}

// Service owns the guests and tables of every plan it has loaded. Mutations
// are serialised; each one runs the seating engine on copies, checks the
// invariants, commits in memory and queues the snapshot for persistence.
type Service struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	store    Store
	ids      IDProvider
	logger   *zap.Logger
	listener ChangeListener
	worker   *saveWorker
	plans    map[string]*planState
	closed   bool
}

type planState struct {
	version int64
	guests  []seating.Guest
	tables  seating.Tables
}

func (p planState) attendees() []seating.Attendee {
	return seating.DeriveAttendees(p.guests)
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	timeout := cfg.SaveTimeout
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	return &Service{
		store:    cfg.Store,
		ids:      cfg.IDProvider,
		logger:   logger,
		listener: cfg.Listener,
		worker:   newSaveWorker(cfg.Store, timeout, logger),
		plans:    make(map[string]*planState),
	}, nil
}

// View returns the current guests, tables and derived seating views of a plan.
func (s *Service) View(ctx context.Context, planID string) (View, error) {
	if planID == "" {
		return View{}, newServiceError(opView, "missing_plan_id", errMissingPlanID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.stateLocked(ctx, opView, planID)
	if err != nil {
		return View{}, err
	}
	attendees := state.attendees()
	guests := state.guests
	if guests == nil {
		guests = []seating.Guest{}
	}
	tables := state.tables
	if tables == nil {
		tables = seating.Tables{}
	}
	return View{
		PlanID:     planID,
		Version:    state.version,
		Guests:     guests,
		Tables:     tables,
		Attendees:  attendees,
		Unassigned: seating.UnassignedAttendees(attendees, state.tables),
		Stats:      seating.ComputeStats(state.tables, attendees),
	}, nil
}

// AddTable creates an empty table with a generated id.
func (s *Service) AddTable(ctx context.Context, planID string, draft TableDraft) (Change, error) {
	if err := validateDraft(draft); err != nil {
		return Change{}, err
	}
	capacity := seating.DefaultTableCapacity
	if draft.Capacity != nil {
		capacity = *draft.Capacity
	}
	return s.mutate(ctx, opAddTable, planID, func(state *planState) (Change, error) {
		table, err := s.newTable(opAddTable, draft.Name, capacity, seating.TableShape(draft.Shape))
		if err != nil {
			return Change{}, err
		}
		tables, err := state.tables.AddTable(table)
		if err != nil {
			return Change{}, err
		}
		state.tables = tables
		return Change{Applied: true, Table: &table}, nil
	})
}

// AddPresetTables adds one table per preset.
func (s *Service) AddPresetTables(ctx context.Context, planID string) (Change, error) {
	return s.mutate(ctx, opAddPresets, planID, func(state *planState) (Change, error) {
		tables := state.tables
		created := make([]seating.Table, 0, len(seating.PresetTables()))
		for _, preset := range seating.PresetTables() {
			table, err := s.newTable(opAddPresets, preset.Name, preset.Capacity, seating.TableShapeRound)
			if err != nil {
				return Change{}, err
			}
			if tables, err = tables.AddTable(table); err != nil {
				return Change{}, err
			}
			created = append(created, table)
		}
		state.tables = tables
		return Change{Applied: true, Tables: created}, nil
	})
}

// UpdateTable renames, reshapes and resizes a table in one step. Either every
// requested edit is applied or none is.
func (s *Service) UpdateTable(ctx context.Context, planID, rawTableID string, update TableUpdate) (Change, error) {
	if err := validateDraft(update); err != nil {
		return Change{}, err
	}
	tableID, err := parseTableID(rawTableID)
	if err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opUpdateTable, planID, func(state *planState) (Change, error) {
		tables := state.tables
		if _, ok := tables.Table(tableID); !ok {
			return Change{}, &seating.NotFoundError{Kind: resourceTable, ID: tableID.String()}
		}
		var err error
		if update.Name != nil {
			if tables, err = seating.RenameTable(tables, tableID, *update.Name); err != nil {
				return Change{}, err
			}
		}
		if update.Shape != nil {
			if tables, err = seating.SetTableShape(tables, tableID, seating.TableShape(*update.Shape)); err != nil {
				return Change{}, err
			}
		}
		var released []seating.AttendeeID
		if update.Capacity != nil {
			resized, err := tables.Resize(tableID, *update.Capacity)
			if err != nil {
				return Change{}, err
			}
			tables = resized.Tables
			released = resized.Evicted
		}
		table, _ := tables.Table(tableID)
		state.tables = tables
		applied := update.Name != nil || update.Shape != nil || update.Capacity != nil
		return Change{Applied: applied, Table: &table, Released: released}, nil
	})
}

// DeleteTable removes a table and returns its occupants to the unassigned pool.
func (s *Service) DeleteTable(ctx context.Context, planID, rawTableID string) (Change, error) {
	tableID, err := parseTableID(rawTableID)
	if err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opDeleteTable, planID, func(state *planState) (Change, error) {
		table, _ := state.tables.Table(tableID)
		result, err := seating.DeleteTable(state.tables, tableID)
		if err != nil {
			return Change{}, err
		}
		state.tables = result.Tables
		return Change{Applied: true, Table: &table, Released: result.Evicted}, nil
	})
}

// AssignSeat seats a live attendee, displacing any other occupant.
func (s *Service) AssignSeat(ctx context.Context, planID, rawAttendeeID string, ref seating.SeatRef) (Change, error) {
	attendeeID, err := parseAttendeeID(rawAttendeeID)
	if err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opAssignSeat, planID, func(state *planState) (Change, error) {
		if _, err := requireAttendee(*state, attendeeID); err != nil {
			return Change{}, err
		}
		result, err := seating.AssignAttendeeToSeat(state.tables, attendeeID, ref.TableID, ref.SeatID)
		if err != nil {
			return Change{}, err
		}
		state.tables = result.Tables
		return Change{Applied: result.Changed, Seat: &ref, Released: single(result.Displaced)}, nil
	})
}

// UnassignSeat clears a seat.
func (s *Service) UnassignSeat(ctx context.Context, planID string, ref seating.SeatRef) (Change, error) {
	return s.mutate(ctx, opUnassignSeat, planID, func(state *planState) (Change, error) {
		result, err := seating.UnassignSeat(state.tables, ref.TableID, ref.SeatID)
		if err != nil {
			return Change{}, err
		}
		state.tables = result.Tables
		return Change{Applied: result.Removed != "", Seat: &ref, Released: single(result.Removed)}, nil
	})
}

// MoveAttendee moves a live attendee between two existing seats.
func (s *Service) MoveAttendee(ctx context.Context, planID, rawAttendeeID string, from, to seating.SeatRef) (Change, error) {
	attendeeID, err := parseAttendeeID(rawAttendeeID)
	if err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opMoveAttendee, planID, func(state *planState) (Change, error) {
		if _, err := requireAttendee(*state, attendeeID); err != nil {
			return Change{}, err
		}
		result, err := seating.MoveAttendee(state.tables, attendeeID, from, to)
		if err != nil {
			return Change{}, err
		}
		state.tables = result.Tables
		return Change{Applied: result.Changed, Seat: &to, Released: single(result.Displaced)}, nil
	})
}

// DropAttendee replays a pointer drag against the default board layout: the
// attendee is picked up (from its seat when from is set) and released at
// point. A release away from every seat leaves the plan untouched.
func (s *Service) DropAttendee(ctx context.Context, planID, rawAttendeeID string, from *seating.SeatRef, point seating.Point) (Change, error) {
	attendeeID, err := parseAttendeeID(rawAttendeeID)
	if err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opDropAttendee, planID, func(state *planState) (Change, error) {
		attendee, err := requireAttendee(*state, attendeeID)
		if err != nil {
			return Change{}, err
		}
		board, err := seating.NewBoard(state.tables, nil)
		if err != nil {
			return Change{}, err
		}
		controller := seating.NewDragController(board)
		if err := controller.Press(attendee, from); err != nil {
			return Change{}, err
		}
		result, err := controller.Release(state.tables, point)
		if err != nil {
			return Change{}, err
		}
		if result.Cancelled {
			return Change{}, nil
		}
		state.tables = result.Tables
		return Change{Applied: result.Changed, Seat: result.Target, Released: single(result.Displaced)}, nil
	})
}

// UpsertGuest creates a guest (generated id when rawGuestID is empty) or
// replaces an existing one. Pending companions receive stable ids. Leaving
// attending status or dropping a companion clears the affected seats.
func (s *Service) UpsertGuest(ctx context.Context, planID, rawGuestID string, draft GuestDraft) (Change, error) {
	if err := validateDraft(draft); err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opUpsertGuest, planID, func(state *planState) (Change, error) {
		guestID, err := s.resolveGuestID(opUpsertGuest, rawGuestID)
		if err != nil {
			return Change{}, err
		}
		index := guestIndex(state.guests, guestID)
		var existing *seating.Guest
		if index >= 0 {
			current := state.guests[index]
			existing = &current
		} else if attendeeIDInUse(state.guests, seating.AttendeeID(guestID)) {
			return Change{}, &seating.ValidationError{Field: "id", Reason: "already used by a companion"}
		}

		guest, err := buildGuest(guestID, draft, existing, s.ids)
		if errors.Is(err, errIDGeneration) {
			s.logError(opUpsertGuest, "id_generation_failed", err, zap.String("plan_id", planID))
			return Change{}, newServiceError(opUpsertGuest, "id_generation_failed", err)
		}
		if err != nil {
			return Change{}, err
		}

		before := state.tables
		tables := state.tables
		if existing != nil {
			tables = seating.OnGuestRsvpChanged(tables, guestID, seating.CompanionAttendeeIDs(*existing),
				existing.IsAttending(), guest.IsAttending())
			if removed := removedCompanionIDs(*existing, guest); len(removed) > 0 {
				tables, _ = seating.ClearAttendees(tables, removed...)
			}
			state.guests = replaceGuest(state.guests, index, guest)
		} else {
			state.guests = appendGuest(state.guests, guest)
		}
		state.tables = tables
		return Change{Applied: true, Guest: &guest, Released: releasedAttendees(before, tables)}, nil
	})
}

// SetGuestRSVP changes a guest's attendance status and applies the cascade.
func (s *Service) SetGuestRSVP(ctx context.Context, planID, rawGuestID, rawStatus string) (Change, error) {
	guestID, err := parseGuestID(rawGuestID)
	if err != nil {
		return Change{}, err
	}
	status, err := seating.ParseRSVPStatus(rawStatus)
	if err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opSetGuestRSVP, planID, func(state *planState) (Change, error) {
		index := guestIndex(state.guests, guestID)
		if index < 0 {
			return Change{}, &seating.NotFoundError{Kind: resourceGuest, ID: guestID.String()}
		}
		previous := state.guests[index]
		if previous.RSVPStatus == status {
			return Change{Guest: &previous}, nil
		}
		updated := previous
		updated.RSVPStatus = status
		before := state.tables
		state.tables = seating.OnGuestRsvpChanged(state.tables, guestID, seating.CompanionAttendeeIDs(previous),
			previous.IsAttending(), updated.IsAttending())
		state.guests = replaceGuest(state.guests, index, updated)
		return Change{Applied: true, Guest: &updated, Released: releasedAttendees(before, state.tables)}, nil
	})
}

// DeleteGuest removes a guest with its companions and clears their seats.
func (s *Service) DeleteGuest(ctx context.Context, planID, rawGuestID string) (Change, error) {
	guestID, err := parseGuestID(rawGuestID)
	if err != nil {
		return Change{}, err
	}
	return s.mutate(ctx, opDeleteGuest, planID, func(state *planState) (Change, error) {
		index := guestIndex(state.guests, guestID)
		if index < 0 {
			return Change{}, &seating.NotFoundError{Kind: resourceGuest, ID: guestID.String()}
		}
		guest := state.guests[index]
		before := state.tables
		state.tables = seating.OnGuestDeleted(state.tables, guestID, seating.CompanionAttendeeIDs(guest))
		state.guests = removeGuest(state.guests, index)
		return Change{Applied: true, Guest: &guest, Released: releasedAttendees(before, state.tables)}, nil
	})
}

// RemoveCompanion deletes one companion of a guest and clears its seat.
func (s *Service) RemoveCompanion(ctx context.Context, planID, rawGuestID, rawCompanionID string) (Change, error) {
	guestID, err := parseGuestID(rawGuestID)
	if err != nil {
		return Change{}, err
	}
	companionID, err := seating.StableCompanionID(rawCompanionID)
	if err != nil {
		return Change{}, &seating.ValidationError{Field: "companion_id", Reason: err.Error()}
	}
	return s.mutate(ctx, opRemoveCompanion, planID, func(state *planState) (Change, error) {
		index := guestIndex(state.guests, guestID)
		if index < 0 {
			return Change{}, &seating.NotFoundError{Kind: resourceGuest, ID: guestID.String()}
		}
		guest := state.guests[index]
		companions := make([]seating.Companion, 0, len(guest.Companions))
		found := false
		for _, companion := range guest.Companions {
			if companion.ID == companionID {
				found = true
				continue
			}
			companions = append(companions, companion)
		}
		if !found {
			return Change{}, &seating.NotFoundError{Kind: resourceCompanion, ID: companionID.String()}
		}
		guest.Companions = companions
		attendeeID, _ := companionID.AttendeeID()
		tables, released := seating.ClearAttendees(state.tables, attendeeID)
		state.tables = tables
		state.guests = replaceGuest(state.guests, index, guest)
		return Change{Applied: true, Guest: &guest, Released: released}, nil
	})
}

// Flush waits until every committed change has been handed to the store.
func (s *Service) Flush(ctx context.Context) error {
	if err := s.worker.flush(ctx); err != nil {
		s.logError(opFlush, "timeout", err)
		return newServiceError(opFlush, "timeout", err)
	}
	return nil
}

// Close rejects further mutations and drains the persistence queue.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if err := s.worker.close(ctx); err != nil {
		s.logError(opClose, "drain_timeout", err)
		return newServiceError(opClose, "drain_timeout", err)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, operation, planID string, apply func(state *planState) (Change, error)) (Change, error) {
	if planID == "" {
		return Change{}, newServiceError(operation, "missing_plan_id", errMissingPlanID)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Change{}, newServiceError(operation, "service_closed", errServiceClosed)
	}
	current, err := s.stateLocked(ctx, operation, planID)
	if err != nil {
		s.mu.Unlock()
		return Change{}, err
	}

	next := *current
	change, err := apply(&next)
	if err != nil {
		s.mu.Unlock()
		return Change{}, err
	}
	change.PlanID = planID
	change.Operation = operation
	if !change.Applied {
		change.Version = current.version
		s.mu.Unlock()
		return change, nil
	}
	if err := seating.CheckInvariants(next.tables, next.attendees()); err != nil {
		s.logError(operation, "invariant_violated", err, zap.String("plan_id", planID))
		s.mu.Unlock()
		return Change{}, newServiceError(operation, "invariant_violated", err)
	}

	next.version = current.version + 1
	s.plans[planID] = &next
	change.Version = next.version
	s.worker.enqueue(Snapshot{PlanID: planID, Version: next.version, Guests: next.guests, Tables: next.tables})
	listener := s.listener
	// notifyMu is taken before mu is released so listeners see commit order.
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if listener != nil {
		listener(change)
	}
	return change, nil
}

func (s *Service) stateLocked(ctx context.Context, operation, planID string) (*planState, error) {
	if state, ok := s.plans[planID]; ok {
		return state, nil
	}
	snapshot, found, err := s.store.Load(ctx, planID)
	if err != nil {
		s.logError(operation, "load_failed", err, zap.String("plan_id", planID))
		return nil, newServiceError(operation, "load_failed", err)
	}
	state := &planState{}
	if found {
		tables, cleared := seating.Reconcile(snapshot.Tables, seating.DeriveAttendees(snapshot.Guests))
		if len(cleared) > 0 {
			s.loggerOrDefault().Warn("cleared stale seat assignments",
				zap.String("plan_id", planID),
				zap.Strings("attendee_ids", attendeeStrings(cleared)))
		}
		state.version = snapshot.Version
		state.guests = snapshot.Guests
		state.tables = tables
	}
	s.plans[planID] = state
	return state, nil
}

func (s *Service) newTable(operation, name string, capacity int, shape seating.TableShape) (seating.Table, error) {
	rawID, err := s.ids.NewID()
	if err != nil {
		s.logError(operation, "id_generation_failed", err)
		return seating.Table{}, newServiceError(operation, "id_generation_failed", err)
	}
	tableID, err := seating.NewTableID(rawID)
	if err != nil {
		return seating.Table{}, newServiceError(operation, "id_generation_failed", err)
	}
	return seating.CreateTable(tableID, name, capacity, shape)
}

func (s *Service) resolveGuestID(operation, rawGuestID string) (seating.GuestID, error) {
	if rawGuestID != "" {
		return parseGuestID(rawGuestID)
	}
	rawID, err := s.ids.NewID()
	if err != nil {
		s.logError(operation, "id_generation_failed", err)
		return "", newServiceError(operation, "id_generation_failed", err)
	}
	return seating.GuestID(rawID), nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("plan service error", attrs...)
}

func requireAttendee(state planState, attendeeID seating.AttendeeID) (seating.Attendee, error) {
	for _, attendee := range state.attendees() {
		if attendee.ID == attendeeID {
			return attendee, nil
		}
	}
	return seating.Attendee{}, &seating.NotFoundError{Kind: resourceAttendee, ID: attendeeID.String()}
}

func attendeeIDInUse(guests []seating.Guest, attendeeID seating.AttendeeID) bool {
	for _, guest := range guests {
		for _, id := range seating.AttendeeIDsForGuest(guest) {
			if id == attendeeID {
				return true
			}
		}
	}
	return false
}

// releasedAttendees lists occupants of before that hold no seat in after, in
// table then seat order.
func releasedAttendees(before, after seating.Tables) []seating.AttendeeID {
	stillSeated := after.OccupiedIDs()
	var released []seating.AttendeeID
	for _, table := range before {
		for _, seat := range table.Seats {
			if !seat.Occupied() {
				continue
			}
			if _, ok := stillSeated[seat.Occupant]; !ok {
				released = append(released, seat.Occupant)
			}
		}
	}
	return released
}

func single(id seating.AttendeeID) []seating.AttendeeID {
	if id == "" {
		return nil
	}
	return []seating.AttendeeID{id}
}

func attendeeStrings(ids []seating.AttendeeID) []string {
	values := make([]string, len(ids))
	for index, id := range ids {
		values[index] = id.String()
	}
	return values
}

func parseTableID(raw string) (seating.TableID, error) {
	tableID, err := seating.NewTableID(raw)
	if err != nil {
		return "", &seating.ValidationError{Field: "table_id", Reason: err.Error()}
	}
	return tableID, nil
}

func parseGuestID(raw string) (seating.GuestID, error) {
	guestID, err := seating.NewGuestID(raw)
	if err != nil {
		return "", &seating.ValidationError{Field: "guest_id", Reason: err.Error()}
	}
	return guestID, nil
}

func parseAttendeeID(raw string) (seating.AttendeeID, error) {
	attendeeID, err := seating.NewAttendeeID(raw)
	if err != nil {
		return "", &seating.ValidationError{Field: "attendee_id", Reason: err.Error()}
	}
	return attendeeID, nil
}
