package plan

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/seatplan/internal/seating"
)

func TestUpsertGuestPromotesPendingCompanions(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()

	change := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "", GuestDraft{
		Name:       "Ada",
		RSVPStatus: "attending",
		Companions: []CompanionDraft{{ID: "tmp-1", Pending: true}, {Name: "Grace"}},
	}))
	guest := change.Guest
	if guest == nil || len(guest.Companions) != 2 {
		t.Fatalf("unexpected guest: %#v", guest)
	}
	for _, companion := range guest.Companions {
		if companion.ID.IsPending() || companion.ID.String() == "tmp-1" {
			t.Fatalf("expected promoted stable id, got %#v", companion.ID)
		}
	}

	view := mustView(t, service)
	if len(view.Attendees) != 3 {
		t.Fatalf("expected primary plus two companions, got %#v", view.Attendees)
	}
	if view.Attendees[1].Name != "Ada's Guest 1" || view.Attendees[2].Name != "Grace" {
		t.Fatalf("unexpected companion names: %#v", view.Attendees)
	}

	again := mustChange(t)(service.UpsertGuest(ctx, testPlanID, guest.ID.String(), GuestDraft{
		Name:       "Ada",
		RSVPStatus: "attending",
		Companions: []CompanionDraft{{ID: guest.Companions[0].ID.String()}},
	}))
	if again.Guest.Companions[0].ID != guest.Companions[0].ID {
		t.Fatalf("stable companion id must survive edits")
	}
}

func TestUpsertGuestRejectsInvalidDrafts(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	tests := []struct {
		name  string
		draft GuestDraft
		field string
	}{
		{name: "missing-name", draft: GuestDraft{}, field: "name"},
		{name: "bad-email", draft: GuestDraft{Name: "Ada", Email: "nope"}, field: "email"},
		{name: "bad-status", draft: GuestDraft{Name: "Ada", RSVPStatus: "maybe"}, field: "rsvp_status"},
		{
			name:  "foreign-companion",
			draft: GuestDraft{Name: "Ada", Companions: []CompanionDraft{{ID: "someone-else"}}},
			field: "plus_ones[0].id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.UpsertGuest(context.Background(), testPlanID, "", tt.draft)
			var validationErr *seating.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if validationErr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, validationErr.Field)
			}
		})
	}
	if view := mustView(t, service); len(view.Guests) != 0 || view.Version != 0 {
		t.Fatalf("rejected drafts must not change the plan: %#v", view)
	}
}

func TestRsvpWithdrawalClearsPartySeats(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()

	head := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head", Capacity: intPtr(2)})).Table
	family := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Family", Capacity: intPtr(2)})).Table
	guest := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "", GuestDraft{
		Name:       "Ada",
		RSVPStatus: "attending",
		Companions: []CompanionDraft{{Pending: true, ID: "c-tmp"}},
	})).Guest
	companionID, _ := guest.Companions[0].ID.AttendeeID()

	mustChange(t)(service.AssignSeat(ctx, testPlanID, guest.ID.String(), seatRef(head.ID, 1)))
	mustChange(t)(service.AssignSeat(ctx, testPlanID, companionID.String(), seatRef(family.ID, 2)))

	change := mustChange(t)(service.SetGuestRSVP(ctx, testPlanID, guest.ID.String(), "declined"))
	if !reflect.DeepEqual(change.Released, []seating.AttendeeID{seating.AttendeeID(guest.ID), companionID}) {
		t.Fatalf("unexpected released attendees: %v", change.Released)
	}

	view := mustView(t, service)
	if occupant(t, view, seatRef(head.ID, 1)) != "" || occupant(t, view, seatRef(family.ID, 2)) != "" {
		t.Fatalf("expected both seats cleared")
	}
	if len(view.Attendees) != 0 || view.Stats.OccupiedSeats != 0 {
		t.Fatalf("declined guest must yield no attendees: %#v", view)
	}

	noop := mustChange(t)(service.SetGuestRSVP(ctx, testPlanID, guest.ID.String(), "declined"))
	if noop.Applied {
		t.Fatalf("setting the same status must be a no-op")
	}
}

func TestAssignSeatRequiresLiveAttendee(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()
	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head"})).Table
	if table.Capacity() != seating.DefaultTableCapacity || table.Shape != seating.TableShapeRound {
		t.Fatalf("unexpected defaults: %#v", table)
	}
	pending := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "", GuestDraft{Name: "Bob"})).Guest

	_, err := service.AssignSeat(ctx, testPlanID, pending.ID.String(), seatRef(table.ID, 1))
	var notFound *seating.NotFoundError
	if !errors.As(err, &notFound) || notFound.Kind != resourceAttendee {
		t.Fatalf("expected attendee not found, got %v", err)
	}
	if _, err := service.AssignSeat(ctx, testPlanID, "ghost", seatRef(table.ID, 1)); !errors.Is(err, seating.ErrNotFound) {
		t.Fatalf("expected not found for unknown attendee, got %v", err)
	}
}

func TestAssignDisplacesAndSelfAssignIsNoOp(t *testing.T) {
	var mu sync.Mutex
	var events []Change
	service := newTestService(t, openTestStore(t), func(change Change) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, change)
	})
	ctx := context.Background()
	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head Table", Capacity: intPtr(4)})).Table
	first := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g1", GuestDraft{Name: "Ada", RSVPStatus: "attending"})).Guest
	second := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g2", GuestDraft{Name: "Bob", RSVPStatus: "attending"})).Guest

	mustChange(t)(service.AssignSeat(ctx, testPlanID, first.ID.String(), seatRef(table.ID, 2)))
	replaced := mustChange(t)(service.AssignSeat(ctx, testPlanID, second.ID.String(), seatRef(table.ID, 2)))
	if !reflect.DeepEqual(replaced.Released, []seating.AttendeeID{"g1"}) {
		t.Fatalf("expected g1 displaced, got %v", replaced.Released)
	}

	versionBefore := mustView(t, service).Version
	self := mustChange(t)(service.AssignSeat(ctx, testPlanID, "g2", seatRef(table.ID, 2)))
	if self.Applied || self.Version != versionBefore {
		t.Fatalf("self assign must not bump the version: %#v", self)
	}

	view := mustView(t, service)
	if len(view.Unassigned) != 1 || view.Unassigned[0].ID != "g1" {
		t.Fatalf("expected g1 unassigned, got %#v", view.Unassigned)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 5 {
		t.Fatalf("expected five applied change events, got %d", len(events))
	}
	if events[4].Operation != opAssignSeat || events[4].Version != versionBefore {
		t.Fatalf("unexpected last event: %#v", events[4])
	}
}

func TestUpdateTableResizeEvictsAndIsAtomic(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()
	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head", Capacity: intPtr(4)})).Table
	for index, id := range []string{"g1", "g3", "g4"} {
		mustChange(t)(service.UpsertGuest(ctx, testPlanID, id, GuestDraft{Name: id, RSVPStatus: "attending"}))
		seat := []int{1, 3, 4}[index]
		mustChange(t)(service.AssignSeat(ctx, testPlanID, id, seatRef(table.ID, seat)))
	}

	_, err := service.UpdateTable(ctx, testPlanID, table.ID.String(), TableUpdate{Name: stringPtr("   "), Capacity: intPtr(2)})
	if !errors.Is(err, seating.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if view := mustView(t, service); view.Tables[0].Capacity() != 4 {
		t.Fatalf("failed update must not resize the table")
	}

	change := mustChange(t)(service.UpdateTable(ctx, testPlanID, table.ID.String(), TableUpdate{
		Name:     stringPtr("Sweetheart"),
		Shape:    stringPtr("rectangular"),
		Capacity: intPtr(2),
	}))
	if !reflect.DeepEqual(change.Released, []seating.AttendeeID{"g4", "g3"}) {
		t.Fatalf("unexpected evicted: %v", change.Released)
	}
	if change.Table.Name != "Sweetheart" || change.Table.Shape != seating.TableShapeRectangular || change.Table.Capacity() != 2 {
		t.Fatalf("unexpected table: %#v", change.Table)
	}
	view := mustView(t, service)
	if len(view.Unassigned) != 2 {
		t.Fatalf("expected evicted attendees unassigned, got %#v", view.Unassigned)
	}
	if _, err := service.UpdateTable(ctx, testPlanID, "missing", TableUpdate{}); !errors.Is(err, seating.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteGuestAndCompanionCascades(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()
	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Family", Capacity: intPtr(6)})).Table
	guest := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g1", GuestDraft{
		Name:       "Ada",
		RSVPStatus: "attending",
		Companions: []CompanionDraft{{Pending: true, ID: "a"}, {Pending: true, ID: "b"}, {Pending: true, ID: "c"}},
	})).Guest
	ids := seating.AttendeeIDsForGuest(*guest)
	for index, id := range ids {
		mustChange(t)(service.AssignSeat(ctx, testPlanID, id.String(), seatRef(table.ID, index+1)))
	}

	removed := mustChange(t)(service.RemoveCompanion(ctx, testPlanID, "g1", ids[1].String()))
	if !reflect.DeepEqual(removed.Released, []seating.AttendeeID{ids[1]}) {
		t.Fatalf("unexpected released: %v", removed.Released)
	}
	if len(removed.Guest.Companions) != 2 {
		t.Fatalf("expected companion removed from guest")
	}

	edited := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g1", GuestDraft{
		Name:       "Ada",
		RSVPStatus: "attending",
		Companions: []CompanionDraft{{ID: ids[3].String()}},
	}))
	if !reflect.DeepEqual(edited.Released, []seating.AttendeeID{ids[2]}) {
		t.Fatalf("dropping a companion must clear its seat, got %v", edited.Released)
	}

	deleted := mustChange(t)(service.DeleteGuest(ctx, testPlanID, "g1"))
	if !reflect.DeepEqual(deleted.Released, []seating.AttendeeID{ids[0], ids[3]}) {
		t.Fatalf("unexpected released on delete: %v", deleted.Released)
	}
	view := mustView(t, service)
	if view.Stats.OccupiedSeats != 0 || len(view.Guests) != 0 {
		t.Fatalf("expected empty plan after delete: %#v", view)
	}
	if _, err := service.DeleteGuest(ctx, testPlanID, "g1"); !errors.Is(err, seating.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDropAttendeeUsesDefaultBoard(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()
	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head"})).Table
	mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g1", GuestDraft{Name: "Ada", RSVPStatus: "attending"}))

	top, err := seating.ComputeSeatLayout(seating.TableShapeRound, 0, seating.DefaultTableCapacity)
	if err != nil {
		t.Fatalf("unexpected layout error: %v", err)
	}
	dropped := mustChange(t)(service.DropAttendee(ctx, testPlanID, "g1", nil, top))
	if !dropped.Applied || dropped.Seat == nil || *dropped.Seat != seatRef(table.ID, 1) {
		t.Fatalf("unexpected drop: %#v", dropped)
	}

	source := seatRef(table.ID, 1)
	missed := mustChange(t)(service.DropAttendee(ctx, testPlanID, "g1", &source, seating.Point{X: -500, Y: -500}))
	if missed.Applied {
		t.Fatalf("drop outside every seat must be cancelled")
	}
	if occupant(t, mustView(t, service), source) != "g1" {
		t.Fatalf("cancelled drag must keep the original seat")
	}
}

func TestServicePersistsAndReloads(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	service := newTestService(t, store, nil)
	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head", Capacity: intPtr(2)})).Table
	mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g1", GuestDraft{Name: "Ada", RSVPStatus: "attending"}))
	mustChange(t)(service.AssignSeat(ctx, testPlanID, "g1", seatRef(table.ID, 2)))
	if err := service.Flush(ctx); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}

	reloaded := newTestService(t, store, nil)
	view := mustView(t, reloaded)
	if view.Version != 3 {
		t.Fatalf("expected version 3, got %d", view.Version)
	}
	if occupant(t, view, seatRef(table.ID, 2)) != "g1" {
		t.Fatalf("expected persisted assignment")
	}
}

func TestServiceReconcilesStaleSnapshotOnLoad(t *testing.T) {
	store := openTestStore(t)
	table, err := seating.CreateTable("t1", "Head", 2, seating.TableShapeRound)
	if err != nil {
		t.Fatalf("unexpected table error: %v", err)
	}
	table.Seats[0].Occupant = "removed-guest"
	if err := store.Save(context.Background(), Snapshot{PlanID: testPlanID, Version: 7, Tables: seating.Tables{table}}); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	view := mustView(t, newTestService(t, store, nil))
	if view.Version != 7 || view.Stats.OccupiedSeats != 0 {
		t.Fatalf("expected stale occupant cleared: %#v", view)
	}
}

func TestServiceErrorsCarryCodes(t *testing.T) {
	if _, err := NewService(ServiceConfig{IDProvider: &sequenceIDs{}}); err == nil {
		t.Fatalf("expected missing store error")
	}
	service, err := NewService(ServiceConfig{Store: openTestStore(t), IDProvider: failingIDs{}})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	ctx := context.Background()
	_, err = service.AddTable(ctx, testPlanID, TableDraft{Name: "Head"})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "plan.add_table.id_generation_failed" {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.View(ctx, ""); err == nil {
		t.Fatalf("expected missing plan id error")
	}
	if err := service.Close(ctx); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	_, err = service.AddPresetTables(ctx, testPlanID)
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "plan.add_presets.service_closed" {
		t.Fatalf("expected closed service error, got %v", err)
	}
}

func TestAddPresetTables(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	change := mustChange(t)(service.AddPresetTables(context.Background(), testPlanID))
	if len(change.Tables) != 3 {
		t.Fatalf("expected three preset tables, got %d", len(change.Tables))
	}
	view := mustView(t, service)
	if view.Stats.TotalSeats != 26 {
		t.Fatalf("expected 26 preset seats, got %d", view.Stats.TotalSeats)
	}
}

func TestUpsertGuestWithoutStatusKeepsExistingStatus(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()
	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head", Capacity: intPtr(2)})).Table
	mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g1", GuestDraft{Name: "Ada", RSVPStatus: "attending"}))
	mustChange(t)(service.AssignSeat(ctx, testPlanID, "g1", seatRef(table.ID, 1)))

	edited := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g1", GuestDraft{Name: "Ada Lovelace", Phone: "555-0100"}))
	if edited.Guest.RSVPStatus != seating.RSVPAttending {
		t.Fatalf("expected status kept, got %s", edited.Guest.RSVPStatus)
	}
	if len(edited.Released) != 0 {
		t.Fatalf("editing contact details must not release seats, got %v", edited.Released)
	}
	if occupant(t, mustView(t, service), seatRef(table.ID, 1)) != "g1" {
		t.Fatalf("expected guest to stay seated")
	}

	fresh := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "g2", GuestDraft{Name: "Bob"}))
	if fresh.Guest.RSVPStatus != seating.RSVPPending {
		t.Fatalf("new guest without status must be pending, got %s", fresh.Guest.RSVPStatus)
	}
}

func TestEnumFieldsAcceptAnyCasing(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)
	ctx := context.Background()

	table := mustChange(t)(service.AddTable(ctx, testPlanID, TableDraft{Name: "Head", Shape: "Rectangular"})).Table
	if table.Shape != seating.TableShapeRectangular {
		t.Fatalf("expected rectangular table, got %s", table.Shape)
	}
	updated := mustChange(t)(service.UpdateTable(ctx, testPlanID, table.ID.String(), TableUpdate{Shape: stringPtr(" ROUND ")})).Table
	if updated.Shape != seating.TableShapeRound {
		t.Fatalf("expected round table, got %s", updated.Shape)
	}
	guest := mustChange(t)(service.UpsertGuest(ctx, testPlanID, "", GuestDraft{Name: "Ada", RSVPStatus: "Attending"})).Guest
	if guest.RSVPStatus != seating.RSVPAttending {
		t.Fatalf("expected attending guest, got %s", guest.RSVPStatus)
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "unknown-shape", run: func() error {
			_, err := service.AddTable(ctx, testPlanID, TableDraft{Name: "Oval", Shape: "oval"})
			return err
		}},
		{name: "unknown-update-shape", run: func() error {
			_, err := service.UpdateTable(ctx, testPlanID, table.ID.String(), TableUpdate{Shape: stringPtr("Hexagon")})
			return err
		}},
		{name: "unknown-status", run: func() error {
			_, err := service.UpsertGuest(ctx, testPlanID, "", GuestDraft{Name: "Bob", RSVPStatus: "Maybe"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, seating.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestListenerReceivesChangesInVersionOrder(t *testing.T) {
	var mu sync.Mutex
	var versions []int64
	service := newTestService(t, openTestStore(t), func(change Change) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, change.Version)
	})
	ctx := context.Background()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for writer := 0; writer < writers; writer++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := service.AddTable(ctx, testPlanID, TableDraft{Name: "Table", Capacity: intPtr(1)}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected add table error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(versions) != writers*perWriter {
		t.Fatalf("expected %d events, got %d", writers*perWriter, len(versions))
	}
	for index, version := range versions {
		if version != int64(index+1) {
			t.Fatalf("event %d carried version %d; events must arrive in commit order", index, version)
		}
	}
}
