package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/app"
	"github.com/ayusman/controlmaps/internal/capability"
	"github.com/ayusman/controlmaps/internal/maps"
	"github.com/ayusman/controlmaps/internal/store"
	"github.com/ayusman/controlmaps/testdata"
)

func uploadBody(t *testing.T, kinds string) (*bytes.Buffer, string) {
	t.Helper()

	img := testdata.Subject(60, 80)
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		t.Fatalf("IMEncode() error = %v", err)
	}
	defer buf.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "subject.png")
	part.Write(buf.GetBytes())
	mw.WriteField("maps", kinds)
	mw.Close()

	return &body, mw.FormDataContentType()
}

func TestAPI_MapsWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "history.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a := app.New(app.Config{Capabilities: capability.None(), Store: s})
	defer a.Close()

	srv := New(Config{Store: s, Generator: a, OutputRoot: filepath.Join(tmpDir, "runs")})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Upload an image
	body, contentType := uploadBody(t, "depth,edges")
	resp, err := client.Post(ts.URL+"/api/maps", contentType, body)
	if err != nil {
		t.Fatalf("POST /api/maps error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var created maps.ResultSet
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	if len(created.Maps) != 2 {
		t.Fatalf("len(maps) = %d, want 2", len(created.Maps))
	}

	// 2. Fetch an artifact
	resp, _ = client.Get(ts.URL + "/artifacts/" + created.RunID + "/" + created.Maps[0].Filename)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET artifact status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 3. List runs
	resp, _ = client.Get(ts.URL + "/api/runs")
	var listed struct {
		Runs []struct {
			ID string `json:"id"`
		} `json:"runs"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Runs) != 1 || listed.Runs[0].ID != created.RunID {
		t.Fatalf("runs = %+v, want [%s]", listed.Runs, created.RunID)
	}

	// 4. Get the run
	resp, _ = client.Get(ts.URL + "/api/runs/" + created.RunID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/runs/%s status = %d, want %d", created.RunID, resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 5. Delete the run
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/"+created.RunID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 6. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/runs/" + created.RunID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_EventsFeed(t *testing.T) {
	tmpDir := t.TempDir()

	a := app.New(app.Config{Capabilities: capability.None()})
	defer a.Close()

	srv := New(Config{Generator: a, OutputRoot: tmpDir})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Events().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	body, contentType := uploadBody(t, "edges")
	resp, err := ts.Client().Post(ts.URL+"/api/maps", contentType, body)
	if err != nil {
		t.Fatalf("POST /api/maps error = %v", err)
	}
	var created maps.ResultSet
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var statuses []maps.Status
	for i := 0; i < 2; i++ {
		var e maps.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if e.RunID != created.RunID || e.Kind != maps.KindEdges {
			t.Errorf("event = %+v", e)
		}
		statuses = append(statuses, e.Status)
	}

	if statuses[0] != maps.StatusStarted || statuses[1] != maps.StatusSucceeded {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
