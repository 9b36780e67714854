package moonraker

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeMoonrakerWS serves /websocket, answers server.info with the given
// klippy state, and pushes the provided gcode responses after the first
// request.
func fakeMoonrakerWS(t *testing.T, klippyState string, gcodeResponses []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req struct {
				ID     int64  `json:"id"`
				Method string `json:"method"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Method == "server.info" {
				resp := map[string]interface{}{
					"jsonrpc": "2.0",
					"id":      req.ID,
					"result": map[string]interface{}{
						"klippy_state":     klippyState,
						"klippy_connected": klippyState != "disconnected",
					},
				}
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
				for _, line := range gcodeResponses {
					notif := map[string]interface{}{
						"jsonrpc": "2.0",
						"method":  "notify_gcode_response",
						"params":  []json.RawMessage{mustMarshal(line)},
					}
					if err := conn.WriteJSON(notif); err != nil {
						return
					}
				}
			}
		}
	}))
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func TestKlippyReady(t *testing.T) {
	srv := fakeMoonrakerWS(t, "ready", nil)
	defer srv.Close()

	l, err := DialListener(srv.URL)
	if err != nil {
		t.Fatalf("DialListener failed: %v", err)
	}
	defer l.Close()

	if err := l.KlippyReady(5 * time.Second); err != nil {
		t.Fatalf("KlippyReady failed: %v", err)
	}
}

func TestKlippyNotReady(t *testing.T) {
	srv := fakeMoonrakerWS(t, "shutdown", nil)
	defer srv.Close()

	l, err := DialListener(srv.URL)
	if err != nil {
		t.Fatalf("DialListener failed: %v", err)
	}
	defer l.Close()

	err = l.KlippyReady(5 * time.Second)
	if !errors.Is(err, ErrKlippyNotReady) {
		t.Fatalf("expected ErrKlippyNotReady, got %v", err)
	}
}

func TestGCodeResponses(t *testing.T) {
	srv := fakeMoonrakerWS(t, "ready", []string{"ok", "!! Move out of range"})
	defer srv.Close()

	l, err := DialListener(srv.URL)
	if err != nil {
		t.Fatalf("DialListener failed: %v", err)
	}
	defer l.Close()

	if err := l.KlippyReady(5 * time.Second); err != nil {
		t.Fatalf("KlippyReady failed: %v", err)
	}

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case line := <-l.Responses():
			got = append(got, line)
		case <-timeout:
			t.Fatalf("timed out waiting for responses, got %v", got)
		}
	}
	if got[0] != "ok" || got[1] != "!! Move out of range" {
		t.Fatalf("unexpected responses: %v", got)
	}
}

func TestResponsesClosedAfterClose(t *testing.T) {
	srv := fakeMoonrakerWS(t, "ready", nil)
	defer srv.Close()

	l, err := DialListener(srv.URL)
	if err != nil {
		t.Fatalf("DialListener failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The read loop closes the channel on exit; a ranging consumer must
	// terminate instead of blocking forever.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-l.Responses():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("responses channel never closed")
		}
	}
}

func TestDialListenerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := DialListener(addr)
	if !errors.Is(err, ErrServerUnreachable) {
		t.Fatalf("expected ErrServerUnreachable, got %v", err)
	}
}
