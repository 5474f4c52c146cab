package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"planktovision/internal/pipeline"
	"planktovision/internal/policy"
)

func waitForClients(t *testing.T, hub *AnalysisHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients (have %d)", want, hub.ClientCount())
}

func TestHubBroadcastsAnalysis(t *testing.T) {
	logger := log.New(os.Stderr, "[test] ", log.Ltime)
	hub := NewAnalysisHub(logger)

	srv := httptest.NewServer(NewHandler(hub, logger))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	result := &pipeline.Result{
		ID:              "live-1",
		Timestamp:       time.Now().UTC(),
		TotalDetections: 2,
		PerClass: []pipeline.ClassStat{
			{Class: "algae", Count: 2, Percentage: 100.0, AvgConfidence: 0.8, Safety: policy.TierCaution},
		},
		OverallVerdict: pipeline.Verdict{Verdict: policy.TierCaution, Reason: "One or more cautionary classes detected."},
		AnnotatedURL:   "/static/results/annotated_live.png",
	}
	hub.BroadcastAnalysis(NewAnalysisMessage(result))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var msg AnalysisMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid broadcast JSON: %v", err)
	}
	if msg.Type != "analysis" || msg.ID != "live-1" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.TotalDetections != 2 {
		t.Errorf("expected 2 detections, got %d", msg.TotalDetections)
	}
}

// Broadcasts run on the request goroutine that finished the analysis, so
// several can target the same connection at once while the keepalive ticker
// pings it. All writes must be serialized per connection.
func TestHubConcurrentBroadcasts(t *testing.T) {
	logger := log.New(os.Stderr, "[test] ", log.Ltime)
	hub := NewAnalysisHub(logger)

	srv := httptest.NewServer(NewHandler(hub, logger))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	const (
		workers   = 8
		perWorker = 200
	)
	payload, err := json.Marshal(NewAnalysisMessage(&pipeline.Result{ID: "burst", TotalDetections: 1}))
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				hub.Broadcast(payload)
			}
		}()
	}

	// Pings are answered by the default handler inside ReadMessage, so only
	// the data frames are counted here.
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for received := 0; received < workers*perWorker; received++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read failed after %d messages: %v", received, err)
		}
	}
	wg.Wait()

	if hub.ClientCount() != 1 {
		t.Errorf("client dropped during concurrent broadcasts (have %d)", hub.ClientCount())
	}
}

func TestHubUnregisterOnClose(t *testing.T) {
	logger := log.New(os.Stderr, "[test] ", log.Ltime)
	hub := NewAnalysisHub(logger)

	srv := httptest.NewServer(NewHandler(hub, logger))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)

	if err := hub.Ping(conn); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered after close, got %v", err)
	}
}
