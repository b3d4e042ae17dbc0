package plan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/seating"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testPlanID = "plan-1"

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDs) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%03d", p.next), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "plan.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	store, err := NewGormStore(db, func() time.Time { return time.Unix(1700000000, 0) })
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func newTestService(t *testing.T, store Store, listener ChangeListener) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Store:      store,
		IDProvider: &sequenceIDs{},
		Listener:   listener,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() {
		_ = service.Close(context.Background())
	})
	return service
}

func mustChange(t *testing.T) func(Change, error) Change {
	t.Helper()
	return func(change Change, err error) Change {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected service error: %v", err)
		}
		return change
	}
}

func intPtr(value int) *int {
	return &value
}

func stringPtr(value string) *string {
	return &value
}

func seatRef(tableID seating.TableID, seatID int) seating.SeatRef {
	return seating.SeatRef{TableID: tableID, SeatID: seating.SeatID(seatID)}
}

func occupant(t *testing.T, view View, ref seating.SeatRef) seating.AttendeeID {
	t.Helper()
	seat, err := view.Tables.Seat(ref)
	if err != nil {
		t.Fatalf("unexpected seat lookup error: %v", err)
	}
	return seat.Occupant
}

func mustView(t *testing.T, service *Service) View {
	t.Helper()
	view, err := service.View(context.Background(), testPlanID)
	if err != nil {
		t.Fatalf("unexpected view error: %v", err)
	}
	return view
}
