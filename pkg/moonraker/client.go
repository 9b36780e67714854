// Package moonraker is a thin client for the Moonraker printer API. It
// covers exactly the surface the calibration needs: blocking G-code script
// execution, printer object queries, and the websocket notification stream.
package moonraker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client communicates with a Moonraker server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:7125". The timeout bounds a single request including
// the body; G-code scripts block until they finish, so it must cover the
// longest script (heating included).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send issues a request and returns the raw response body. Non-2xx
// responses are mapped to errors; 502/503 mean Klipper itself is down.
func (c *Client) Send(method, path string, body []byte) ([]byte, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"server": c.baseURL,
	}).Debug("sending request")

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && !urlErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
		}
		return nil, pkgerrors.Wrap(err, "request failed")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: got %d: %s", ErrKlippyNotReady, resp.StatusCode, string(b))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: string(b)}
	}

	return b, nil
}

// Get is a helper for GET requests.
func (c *Client) Get(path string) ([]byte, error) {
	return c.Send("GET", path, nil)
}

// RunScript executes a G-code script and blocks until the last command in
// it has been processed. Moonraker holds the request open for the whole
// script, which is what makes the trial scripts a synchronization barrier.
func (c *Client) RunScript(script string) error {
	body, err := json.Marshal(map[string]string{"script": script})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal script")
	}

	_, err = c.Send("POST", "/printer/gcode/script", body)
	if err != nil {
		// Keep transport-level sentinels intact; a rejected script becomes
		// a GCodeError carrying the script for diagnosis.
		var se *statusError
		if errors.As(err, &se) {
			return &GCodeError{Script: script, StatusCode: se.code, Response: se.body}
		}
		return err
	}
	return nil
}

// ServerInfo is the subset of /server/info the calibration cares about.
type ServerInfo struct {
	KlippyState     string `json:"klippy_state"`
	KlippyConnected bool   `json:"klippy_connected"`
}

// Info returns the server state, including whether Klipper is ready.
func (c *Client) Info() (*ServerInfo, error) {
	b, err := c.Get("/server/info")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get server info")
	}

	var resp struct {
		Result ServerInfo `json:"result"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal server info")
	}

	return &resp.Result, nil
}

// ExtruderStatus is the live extruder heater state.
type ExtruderStatus struct {
	Temperature float64 `json:"temperature"`
	Target      float64 `json:"target"`
}

// QueryExtruder fetches the extruder temperature and target.
func (c *Client) QueryExtruder() (*ExtruderStatus, error) {
	b, err := c.Get("/printer/objects/query?extruder=temperature,target")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query extruder")
	}

	var resp struct {
		Result struct {
			Status struct {
				Extruder ExtruderStatus `json:"extruder"`
			} `json:"status"`
		} `json:"result"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal extruder status")
	}

	return &resp.Result.Status.Extruder, nil
}

// ToolheadStatus is the subset of the toolhead object used by the status
// command.
type ToolheadStatus struct {
	Position    []float64 `json:"position"`
	PrintTime   float64   `json:"print_time"`
	HomedAxes   string    `json:"homed_axes"`
	MaxVelocity float64   `json:"max_velocity"`
}

// QueryToolhead fetches the toolhead state.
func (c *Client) QueryToolhead() (*ToolheadStatus, error) {
	b, err := c.Get("/printer/objects/query?toolhead=position,print_time,homed_axes,max_velocity")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query toolhead")
	}

	var resp struct {
		Result struct {
			Status struct {
				Toolhead ToolheadStatus `json:"toolhead"`
			} `json:"status"`
		} `json:"result"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal toolhead status")
	}

	return &resp.Result.Status.Toolhead, nil
}

// statusError is an HTTP-level failure before any endpoint-specific
// interpretation.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("got %d: %s", e.code, e.body)
}
