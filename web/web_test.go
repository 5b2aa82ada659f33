package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/beamscope/camera"
	"github.com/hazyhaar/beamscope/dbopen"
	"github.com/hazyhaar/beamscope/pipeline"
	"github.com/hazyhaar/beamscope/store"
	_ "modernc.org/sqlite"
)

// newTestServer builds a server over an in-memory store and an idle
// pipeline (sim camera, never started).
func newTestServer(t *testing.T) (*Server, *store.Store, *pipeline.Pipeline) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.NewStore(db)
	cam := camera.NewSim(camera.SimConfig{Width: 64, Height: 48}, nil)
	p := pipeline.New(cam, nil, func() (*store.Store, error) { return st, nil }, nil, pipeline.Config{}, nil)
	return New(st, p, nil, nil), st, p
}

func seedRows(t *testing.T, st *store.Store, n int) {
	t.Helper()
	rows := make([]store.Measurement, n)
	for i := range rows {
		rows[i] = store.Measurement{
			Timestamp: fmt.Sprintf("2026-08-28 10:00:%02d", i),
			CX:        float64(100 + i),
			CY:        float64(200 + i),
			Temps:     [4]float64{21.5, 22.5, 23.5, 24.5},
		}
	}
	if err := st.InsertBatch(context.Background(), rows); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.mu.Lock()
		got := len(h.clients)
		h.mu.Unlock()
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("hub clients: got %d, want %d", got, n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestSetMode(t *testing.T) {
	s, _, p := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/set_mode?mode=trigger")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if p.State().Mode() != pipeline.Triggered {
		t.Fatal("mode not switched to triggered")
	}

	resp, err = http.Get(ts.URL + "/api/set_mode?mode=continuous")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if p.State().Mode() != pipeline.Continuous {
		t.Fatal("mode not switched back to continuous")
	}

	resp, err = http.Get(ts.URL + "/api/set_mode?mode=bogus")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus mode: status %d, want 400", resp.StatusCode)
	}
}

func TestLatestDataColumnsOldestFirst(t *testing.T) {
	s, st, _ := newTestServer(t)
	seedRows(t, st, 3)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/latest_data")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out struct {
		Timestamps []string  `json:"timestamps"`
		CX         []float64 `json:"cx"`
		CY         []float64 `json:"cy"`
		Temp1      []float64 `json:"temp1"`
		Temp4      []float64 `json:"temp4"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Timestamps) != 3 {
		t.Fatalf("rows: got %d, want 3", len(out.Timestamps))
	}
	if out.Timestamps[0] != "2026-08-28 10:00:00" || out.Timestamps[2] != "2026-08-28 10:00:02" {
		t.Fatalf("not oldest-first: %v", out.Timestamps)
	}
	if out.CX[0] != 100 || out.CX[2] != 102 {
		t.Fatalf("cx column: %v", out.CX)
	}
	if len(out.Temp1) != 3 || len(out.Temp4) != 3 {
		t.Fatal("temperature columns missing or short")
	}
	if out.Temp4[0] != 24.5 {
		t.Fatalf("temp4: got %v", out.Temp4[0])
	}
}

func TestDownloadCSV(t *testing.T) {
	s, st, _ := newTestServer(t)
	seedRows(t, st, 5)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/download")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/csv" {
		t.Errorf("content type: %q", got)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "beamscope_") {
		t.Errorf("content disposition: %q", cd)
	}

	recs, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(recs) != 6 { // header + 5 rows
		t.Fatalf("records: got %d, want 6", len(recs))
	}
	if recs[0][0] != "Timestamp" || recs[0][1] != "CenterX" || recs[0][6] != "T4" {
		t.Fatalf("header: %v", recs[0])
	}
	if recs[1][1] != "104.00" { // newest first
		t.Fatalf("first data row cx: %q", recs[1][1])
	}
}

func TestDownloadCSVRange(t *testing.T) {
	s, st, _ := newTestServer(t)
	seedRows(t, st, 5)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := ts.URL + "/download?from=" + strings.ReplaceAll("2026-08-28 10:00:01", " ", "%20") +
		"&to=" + strings.ReplaceAll("2026-08-28 10:00:03", " ", "%20")
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	recs, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(recs) != 4 { // header + rows :01 :02 :03
		t.Fatalf("records: got %d, want 4", len(recs))
	}
}

func TestStreamDeliversPublishedFrames(t *testing.T) {
	s, _, p := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/mjpeg_stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() { defer close(done); s.handleStream(rec, req) }()

	// Let the session subscribe, then publish two versions.
	time.Sleep(20 * time.Millisecond)
	p.Broadcaster().Publish([]byte("jpeg-one"))
	p.Broadcaster().Publish([]byte("jpeg-two"))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("content type: %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "--imagingsource") {
		t.Fatal("boundary missing from stream")
	}
	if !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Fatal("part header missing")
	}
	if !strings.Contains(body, "jpeg-one") && !strings.Contains(body, "jpeg-two") {
		t.Fatal("no payload delivered")
	}
}

func TestLiveFeedDeliversMeasurements(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens just after the upgrade response, so wait for
	// the hub to see the client before notifying.
	waitForClients(t, s.Hub(), 1)
	s.Hub().Notify(store.Measurement{
		Timestamp: "2026-08-28 12:00:00",
		CX:        123.45,
		CY:        67.89,
	})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["cx"] != 123.45 {
		t.Fatalf("cx: got %v", got["cx"])
	}
	if got["timestamp"] != "2026-08-28 12:00:00" {
		t.Fatalf("timestamp: got %v", got["timestamp"])
	}
}

func TestHubCloseAllDisconnectsClients(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForClients(t, s.Hub(), 1)
	s.Shutdown()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // connection closed as expected
		}
	}
}
