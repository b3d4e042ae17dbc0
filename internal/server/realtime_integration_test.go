package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPlanStreamEmitsPlanChangeEvents(t *testing.T) {
	testServer := newTestServer(t)
	server := httptest.NewServer(testServer.handler)
	t.Cleanup(server.Close)

	streamRequest, err := http.NewRequest(http.MethodGet, server.URL+"/plan/stream?access_token=ignored", http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	if contentType := streamResp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type: %q", contentType)
	}

	streamReader := bufio.NewReader(streamResp.Body)

	createResp, err := http.Post(server.URL+"/tables", "application/json", strings.NewReader(`{"name":"Head","capacity":2}`))
	if err != nil {
		t.Fatalf("create table request failed: %v", err)
	}
	_ = createResp.Body.Close()
	if createResp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", createResp.StatusCode)
	}

	type eventPayload struct {
		PlanID    string `json:"plan_id"`
		Version   int64  `json:"version"`
		Operation string `json:"operation"`
	}

	currentEventType := ""
	deadline := time.After(5 * time.Second)
	type readResult struct {
		line string
		err  error
	}
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for realtime event")
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") || currentEventType != RealtimeEventPlanChanged {
				continue
			}
			var payload eventPayload
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &payload); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			if payload.PlanID != testPlanID || payload.Version != 1 || payload.Operation != "plan.add_table" {
				t.Fatalf("unexpected plan change event: %#v", payload)
			}
			return
		}
	}
}

func TestShutdownEndsOpenPlanStreams(t *testing.T) {
	testServer := newTestServer(t)
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	server := httptest.NewUnstartedServer(testServer.handler)
	server.Config = NewHTTPServer("", testServer.handler, baseCtx)
	server.Start()
	t.Cleanup(server.Close)

	streamResp, err := http.Get(server.URL + "/plan/stream?access_token=ignored")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}

	drained := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, streamResp.Body)
		drained <- err
	}()

	cancelBase()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Config.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown must not wait on open streams: %v", err)
	}

	select {
	case err := <-drained:
		if err != nil {
			t.Fatalf("expected stream to end cleanly, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream stayed open after shutdown")
	}
}
