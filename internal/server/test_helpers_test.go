package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/auth"
	"github.com/MarcoPoloResearchLab/seatplan/internal/plan"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
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

type testServer struct {
	handler    http.Handler
	plans      *plan.Service
	dispatcher *RealtimeDispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&plan.SnapshotRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	store, err := plan.NewGormStore(db, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	plans, err := plan.NewService(plan.ServiceConfig{
		Store:      store,
		IDProvider: &sequenceIDs{},
		Listener:   dispatcher.PublishChange,
	})
	if err != nil {
		t.Fatalf("failed to create plan service: %v", err)
	}
	t.Cleanup(func() {
		_ = plans.Close(context.Background())
	})

	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator:  stubSessionValidator{claims: auth.SessionClaims{PlannerID: "local:ada"}},
		Planners:          stubPlanResolver{planID: testPlanID},
		PlanService:       plans,
		Realtime:          dispatcher,
		Logger:            zap.NewNop(),
		HeartbeatInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return &testServer{handler: handler, plans: plans, dispatcher: dispatcher}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

type changeResponse struct {
	Version   int64    `json:"version"`
	Operation string   `json:"operation"`
	Applied   bool     `json:"applied"`
	Released  []string `json:"released"`
	Table     *struct {
		ID    string `json:"id"`
		Shape string `json:"shape"`
		Seats []struct {
			ID int `json:"id"`
		} `json:"seats"`
	} `json:"table"`
	Guest *struct {
		ID       string `json:"id"`
		PlusOnes []struct {
			ID string `json:"id"`
		} `json:"plus_ones"`
	} `json:"guest"`
}
