package moonraker

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRunScript(t *testing.T) {
	var gotScript string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/printer/gcode/script" || r.Method != "POST" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		var payload map[string]string
		if err := json.Unmarshal(b, &payload); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		gotScript = payload["script"]
		_, _ = w.Write([]byte(`{"result": "ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if err := c.RunScript("M109 S215"); err != nil {
		t.Fatalf("RunScript failed: %v", err)
	}
	if gotScript != "M109 S215" {
		t.Fatalf("unexpected script sent: %q", gotScript)
	}
}

func TestRunScriptRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Unknown command: FOO"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	err := c.RunScript("FOO")
	if err == nil {
		t.Fatal("expected error for rejected script")
	}
	var ge *GCodeError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GCodeError, got %T: %v", err, err)
	}
	if ge.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status code: %d", ge.StatusCode)
	}
	if ge.Script != "FOO" {
		t.Fatalf("unexpected script in error: %q", ge.Script)
	}
}

func TestRunScriptKlippyDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	err := c.RunScript("G28")
	if !errors.Is(err, ErrKlippyNotReady) {
		t.Fatalf("expected ErrKlippyNotReady, got %v", err)
	}
}

func TestServerUnreachable(t *testing.T) {
	// Grab a port that is guaranteed closed.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, 2*time.Second)
	_, err := c.Info()
	if !errors.Is(err, ErrServerUnreachable) {
		t.Fatalf("expected ErrServerUnreachable, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/server/info" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"result": {"klippy_state": "ready", "klippy_connected": true}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	info, err := c.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.KlippyState != "ready" || !info.KlippyConnected {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestQueryExtruder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/printer/objects/query" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"result": {"eventtime": 1234.5, "status": {"extruder": {"temperature": 214.6, "target": 215.0}}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	ext, err := c.QueryExtruder()
	if err != nil {
		t.Fatalf("QueryExtruder failed: %v", err)
	}
	if ext.Temperature != 214.6 || ext.Target != 215.0 {
		t.Fatalf("unexpected extruder status: %+v", ext)
	}
}
