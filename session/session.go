/*Package session orchestrates one complete acquisition: validate the
request, derive the timing, obtain the operator's go/no-go, build the
trigger hierarchy, run it, and release every hardware channel no matter
how the run ends.

A session is a single logical thread of control.  The hardware channels
run concurrently on the device, but the session only issues sequential
configure/arm/start/stop/close calls and one blocking wait, which is
bounded by the derived duration so a device malfunction cannot hang it.
There are no retries: a failed configuration step surfaces immediately,
since retrying a partially configured trigger hierarchy risks duplicate or
missed edges.  Construct a fresh session instead.
*/
package session

import (
	"fmt"
	"log"
	"time"

	"github.com/lightsheet/fastmc/nidaq"
	"github.com/lightsheet/fastmc/pco"
	"github.com/lightsheet/fastmc/report"
	"github.com/lightsheet/fastmc/timing"
	"github.com/lightsheet/fastmc/trigger"
	"github.com/lightsheet/fastmc/util"
	"github.com/lightsheet/fastmc/waveform"
)

// masterDuty is the duty cycle of the stack trigger pulse.  Subordinates
// fire on the rising edge; the width only needs to be comfortably above
// the trigger input's minimum.
const masterDuty = 0.2

// Summary presents the computed totals to the operator before any
// hardware channel exists
type Summary struct {
	// MultiD is true for a z stack acquisition
	MultiD bool `json:"multiD"`

	// TimePoints is the frame count to enter in the camera software
	TimePoints int `json:"timePoints"`

	// TotalDuration is the complete acquisition duration, seconds
	TotalDuration float64 `json:"totalDuration"`

	// FramesPerStack counts frames in one stack
	FramesPerStack int `json:"framesPerStack"`

	// VolumesPerSecond is the stack rate; meaningful when MultiD
	VolumesPerSecond float64 `json:"volumesPerSecond"`

	// FramesPerSecond is the trigger frequency; meaningful when not MultiD
	FramesPerSecond float64 `json:"framesPerSecond"`

	// ReadoutLimited is true when sensor readout caps the frame rate
	ReadoutLimited bool `json:"readoutLimited"`

	// CablingHint reminds the operator which BNC route the selected
	// illumination mode requires
	CablingHint string `json:"cablingHint,omitempty"`
}

// Summarize builds the operator-facing totals from a request and its
// derived timing
func Summarize(req timing.Request, t timing.Timing) Summary {
	s := Summary{
		MultiD:           req.MultiD,
		TimePoints:       req.NumStacks * t.FramesPerStack,
		TotalDuration:    util.Round(t.TotalDuration, 1e-4),
		FramesPerStack:   t.FramesPerStack,
		VolumesPerSecond: util.Round(1/t.StackDuration, 1e-3),
		FramesPerSecond:  util.Round(t.TriggerFreq, 1e-3),
		ReadoutLimited:   t.ReadoutLimited,
	}
	led, _ := timing.ValidateLEDMode(req.LEDTrigger)
	switch led {
	case timing.LEDHardware:
		s.CablingHint = "verify BNC cable connects Cam Exp Out to LED In"
	case timing.LEDFraction, timing.LEDTime:
		s.CablingHint = "verify BNC cable connects USER1 OUT to LED In"
	}
	return s
}

// Confirmer obtains the operator's go/no-go before hardware is touched
type Confirmer interface {
	// Confirm presents the summary and reports whether to proceed.  A
	// false, nil return is a clean abort, not a failure.
	Confirm(Summary) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface
type ConfirmFunc func(Summary) (bool, error)

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(s Summary) (bool, error) {
	return f(s)
}

// Result reports how a run ended
type Result struct {
	// Aborted is true when the operator declined the confirmation; no
	// hardware was touched
	Aborted bool `json:"aborted"`

	// Timing is the derived timing the run executed
	Timing timing.Timing `json:"timing"`

	// Elapsed is the wall time spent between starting the master and
	// stopping the channels
	Elapsed time.Duration `json:"elapsed"`
}

// Session holds everything needed to execute one acquisition.  Device and
// Resources are injected so the session runs identically against the real
// driver binding or the simulator.
type Session struct {
	// Req is the acquisition request
	Req timing.Request

	// Limits is the hardware limits table used for validation
	Limits pco.Limits

	// Resources names the hardware channels to use
	Resources nidaq.Resources

	// Device creates the hardware channels
	Device nidaq.Device

	// Confirm gates the run on operator approval.  nil skips the gate.
	Confirm Confirmer

	// Recorder, when non-nil and enabled, writes a timing sidecar after a
	// successful run
	Recorder *report.Recorder
}

// Run executes the acquisition.  Every hardware channel that was created
// is closed before Run returns, on every path: success, configuration
// failure, write failure, and wait timeout.
func (s *Session) Run() (res Result, err error) {
	t, err := timing.Derive(s.Req, s.Limits)
	if err != nil {
		return res, err
	}
	res.Timing = t

	led, err := timing.ValidateLEDMode(s.Req.LEDTrigger)
	if err != nil {
		return res, err
	}

	// synthesize before any channel exists so a bad request cannot leave
	// configured hardware behind
	var ledBuf waveform.Digital
	switch led {
	case timing.LEDFraction:
		ledBuf = waveform.LEDFraction(s.Req, t)
	case timing.LEDTime:
		ledBuf, err = waveform.LEDPeriodic(s.Req, t)
		if err != nil {
			return res, err
		}
	}

	if s.Confirm != nil {
		ok, cerr := s.Confirm.Confirm(Summarize(s.Req, t))
		if cerr != nil {
			return res, cerr
		}
		if !ok {
			res.Aborted = true
			return res, nil
		}
	}

	h := trigger.NewHierarchy(s.Device, s.Resources)
	defer func() {
		if cerr := h.CloseAll(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = h.CreateMaster(1/t.StackDuration, masterDuty, s.Req.NumStacks); err != nil {
		return res, err
	}
	if s.Req.MultiD {
		ramp := waveform.GalvoRamp(s.Req, t, s.Limits)
		if err = h.CreateGalvo(ramp.Samples, ramp.Rate, s.Limits.GalvoMinV, s.Limits.GalvoMaxV); err != nil {
			return res, err
		}
	}
	if s.Req.RFFreq > 0 {
		// the sine rides a 1 V offset, so the drive spans 0 to 2 V
		mod := waveform.ModulatorSine(s.Req, t)
		if err = h.CreateModulator(mod.Samples, mod.Rate, 0, 2); err != nil {
			return res, err
		}
	}
	switch led {
	case timing.LEDFraction:
		// replayed on every master edge, same clocking as the galvo
		if err = h.CreateGate(s.Resources.LEDLine, ledBuf.Samples, ledBuf.Rate, true); err != nil {
			return res, err
		}
	case timing.LEDTime:
		// spans the whole timeline, consumes only the first edge
		if err = h.CreateGate(s.Resources.LEDLine, ledBuf.Samples, ledBuf.Rate, false); err != nil {
			return res, err
		}
	}
	if err = h.CreateCameraTrigger(t.TriggerFreq, t.DutyCycle, t.FramesPerStack, s.Req.MultiD, s.Req.StackDelay); err != nil {
		return res, err
	}

	if err = h.ArmSubordinates(); err != nil {
		return res, err
	}
	if err = h.StartMaster(); err != nil {
		return res, err
	}

	timeout := t.TotalDuration
	if s.Req.NumStacks == 1 {
		// the master programs 2 pulses for a single stack; the wait must
		// span both period boundaries
		timeout = 2 * t.StackDuration
	}
	start := time.Now()
	waitErr := h.Wait(util.SecsToDuration(timeout))
	res.Elapsed = time.Since(start)

	if serr := h.StopAll(); serr != nil && waitErr == nil {
		waitErr = serr
	}
	if waitErr != nil {
		return res, fmt.Errorf("acquisition did not complete: %w", waitErr)
	}

	if s.Recorder != nil && s.Recorder.Enabled {
		if rerr := s.Recorder.Record(s.Req, t); rerr != nil {
			// the acquisition itself succeeded; the sidecar is best effort
			log.Println("recording timing sidecar:", rerr)
		}
	}
	return res, nil
}
