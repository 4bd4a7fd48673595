/*Package httpd exposes the acquisition core over HTTP.

This enables a server-client architecture: the operator's tooling can
preview the derived timing, confirm it, and launch the run from any
language with an HTTP library.  POST /preview is the confirmation step;
POST /acquire runs a session and is guarded by a lock so only one
acquisition can hold the hardware channels at a time.
*/
package httpd

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/lightsheet/fastmc/nidaq"
	"github.com/lightsheet/fastmc/pco"
	"github.com/lightsheet/fastmc/report"
	"github.com/lightsheet/fastmc/session"
	"github.com/lightsheet/fastmc/timing"
)

// Server wires the acquisition core to HTTP routes
type Server struct {
	// Limits is the hardware limits table
	Limits pco.Limits

	// Resources names the hardware channels
	Resources nidaq.Resources

	// Device creates the hardware channels
	Device nidaq.Device

	// Recorder, when non-nil, writes timing sidecars after runs
	Recorder *report.Recorder

	lock Locker
}

// NewServer returns a server over the given device
func NewServer(lim pco.Limits, res nidaq.Resources, dev nidaq.Device, rec *report.Recorder) *Server {
	return &Server{Limits: lim, Resources: res, Device: dev, Recorder: rec}
}

// Routes returns the chi router for the server
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/preview", s.Preview)
	r.Post("/acquire", s.Acquire)
	r.Get("/lock", s.LockStatus)
	return r
}

type previewResponse struct {
	Summary session.Summary `json:"summary"`
	Timing  timing.Timing   `json:"timing"`
}

// Preview derives the timing for a request and returns the summary the
// operator confirms before acquiring.  No hardware is touched.
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	var req timing.Request
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := timing.Derive(req, s.Limits)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(previewResponse{Summary: session.Summarize(req, t), Timing: t})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Acquire runs one acquisition.  The caller is assumed to have previewed
// and confirmed; there is no interactive gate on this path.  Returns 423
// while another acquisition holds the hardware.
func (s *Server) Acquire(w http.ResponseWriter, r *http.Request) {
	var req timing.Request
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.lock.TryAcquire() {
		http.Error(w, "an acquisition is already running", http.StatusLocked)
		return
	}
	defer s.lock.Release()
	sess := &session.Session{
		Req:       req,
		Limits:    s.Limits,
		Resources: s.Resources,
		Device:    s.Device,
		Recorder:  s.Recorder,
	}
	res, err := sess.Run()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// LockStatus returns whether an acquisition is running as JSON
func (s *Server) LockStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(struct {
		Locked bool `json:"locked"`
	}{s.lock.Locked()})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
