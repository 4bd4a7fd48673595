package httpd_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lightsheet/fastmc/httpd"
	"github.com/lightsheet/fastmc/nidaq"
	"github.com/lightsheet/fastmc/pco"
	"github.com/lightsheet/fastmc/timing"
)

func newTestServer() (*nidaq.Sim, *httptest.Server) {
	dev := nidaq.NewSim()
	s := httpd.NewServer(pco.Edge42(), nidaq.DefaultResources(), dev, nil)
	return dev, httptest.NewServer(s.Routes())
}

func stackRequest() timing.Request {
	return timing.Request{
		NumStacks:   2,
		StackDelay:  0.1,
		Exposure:    10e-3,
		ReadoutMode: "fast",
		MultiD:      true,
		ZStart:      -10,
		ZEnd:        10,
		ZStep:       1,
		ImageHeight: 2048,
		ImageWidth:  2060,
	}
}

func post(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestPreview(t *testing.T) {
	dev, srv := newTestServer()
	defer srv.Close()
	resp := post(t, srv.URL+"/preview", stackRequest())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Summary struct {
			TimePoints int `json:"timePoints"`
		} `json:"summary"`
		Timing timing.Timing `json:"timing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Timing.FramesPerStack != 21 {
		t.Errorf("expected 21 frames per stack, got %d", out.Timing.FramesPerStack)
	}
	if out.Summary.TimePoints != 42 {
		t.Errorf("expected 42 time points, got %d", out.Summary.TimePoints)
	}
	if len(dev.Channels()) != 0 {
		t.Error("preview must not touch hardware")
	}
}

func TestPreviewRejectsBadRequest(t *testing.T) {
	_, srv := newTestServer()
	defer srv.Close()
	req := stackRequest()
	req.Exposure = 50e-6
	resp := post(t, srv.URL+"/preview", req)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for an invalid request, got %d", resp.StatusCode)
	}
}

func TestAcquire(t *testing.T) {
	dev, srv := newTestServer()
	defer srv.Close()
	resp := post(t, srv.URL+"/acquire", stackRequest())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if dev.OpenCount() != 0 {
		t.Errorf("%d channels left open after acquire", dev.OpenCount())
	}
	if len(dev.Channels()) == 0 {
		t.Error("expected acquire to create channels")
	}
}

func TestLockStatus(t *testing.T) {
	_, srv := newTestServer()
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/lock")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Locked bool `json:"locked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Locked {
		t.Error("expected the lock free at rest")
	}
}
