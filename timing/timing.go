/*Package timing derives all trigger frequencies, duty cycles and durations
for an acquisition from the requested parameters and the physical limits of
the hardware.

Derive is a pure function: it validates the request, then computes every
derived quantity in one pass so the results are always internally
consistent.  Nothing here touches hardware; a request that fails Derive is
rejected before any channel exists.
*/
package timing

import (
	"errors"
	"fmt"
	"math"

	"github.com/lightsheet/fastmc/pco"
)

// LEDMode selects how the illumination is gated
type LEDMode int

const (
	// LEDNone disables light control
	LEDNone LEDMode = iota

	// LEDHardware gates the LED from the camera's exposure output over BNC
	LEDHardware

	// LEDFraction gates the LED on for a fraction of each stack
	LEDFraction

	// LEDTime pulses the LED for a fixed on-time at a fixed frequency over
	// the whole acquisition, inter-stack delays included
	LEDTime
)

// ErrLEDMode is generated when an LED trigger mode string is not recognized
var ErrLEDMode = errors.New(`LED trigger mode must be a member of {"", hardware, software_fraction, software_time}`)

// ValidateLEDMode ensures that an LED trigger mode is valid.
// s is a member of {"", hardware, software_fraction, software_time};
// the empty string means no light control.
func ValidateLEDMode(s string) (LEDMode, error) {
	switch s {
	case "":
		return LEDNone, nil
	case "hardware":
		return LEDHardware, nil
	case "software_fraction":
		return LEDFraction, nil
	case "software_time":
		return LEDTime, nil
	default:
		return -1, ErrLEDMode
	}
}

// FormatLEDMode converts an LED trigger mode to its string representation
func FormatLEDMode(m LEDMode) string {
	switch m {
	case LEDHardware:
		return "hardware"
	case LEDFraction:
		return "software_fraction"
	case LEDTime:
		return "software_time"
	default:
		return ""
	}
}

// Request is the immutable set of user-supplied acquisition parameters.
// Field units are seconds, micron and pixels.  A Request is inert until it
// passes Derive; derived values are never stored back onto it.
type Request struct {
	// NumStacks is the number of 3D stacks if MultiD, number of frames if
	// not
	NumStacks int `yaml:"NumStacks" json:"numStacks"`

	// StackDelay is the time between acquiring any 2 stacks, seconds
	StackDelay float64 `yaml:"StackDelay" json:"stackDelay"`

	// Exposure is the requested exposure time, seconds.  The effective
	// exposure is slightly less due to system delay.
	Exposure float64 `yaml:"Exposure" json:"exposure"`

	// ReadoutMode is the camera readout mode, fast or slow
	ReadoutMode string `yaml:"ReadoutMode" json:"readoutMode"`

	// MultiD selects multidimensional (z stack) acquisition
	MultiD bool `yaml:"MultiD" json:"multiD"`

	// ZStart, ZEnd, ZStep describe the scan range in micron.  Only used
	// when MultiD.
	ZStart float64 `yaml:"ZStart" json:"zStart"`
	ZEnd   float64 `yaml:"ZEnd" json:"zEnd"`
	ZStep  float64 `yaml:"ZStep" json:"zStep"`

	// ImageHeight is the vertical ROI in pixels; it defines the frame
	// readout time
	ImageHeight int `yaml:"ImageHeight" json:"imageHeight"`

	// ImageWidth is the horizontal ROI in pixels
	ImageWidth int `yaml:"ImageWidth" json:"imageWidth"`

	// FrameDelay is an optional delay after each frame trigger, seconds
	FrameDelay float64 `yaml:"FrameDelay" json:"frameDelay"`

	// LEDTrigger is the illumination gating mode, see ValidateLEDMode
	LEDTrigger string `yaml:"LEDTrigger" json:"ledTrigger"`

	// LEDFractionOn is the fraction of each stack the LED is on, in
	// software_fraction mode
	LEDFractionOn float64 `yaml:"LEDFractionOn" json:"ledFractionOn"`

	// LEDTimeOn is the LED on-time per pulse in software_time mode,
	// seconds
	LEDTimeOn float64 `yaml:"LEDTimeOn" json:"ledTimeOn"`

	// LEDFrequency is the pulse rate in software_time mode, pulses/second
	LEDFrequency float64 `yaml:"LEDFrequency" json:"ledFrequency"`

	// RFFreq is the AOTF modulator RF frequency, Hz
	RFFreq float64 `yaml:"RFFreq" json:"rfFreq"`
}

// Timing is every quantity derived from a valid Request.  Build one with
// Derive; the fields are internally consistent with each other and with
// the originating request by construction.
type Timing struct {
	// FrameReadout is the sensor readout time for one frame, the minimum
	// time between camera triggers, seconds
	FrameReadout float64 `json:"frameReadout"`

	// TriggerFreq is the camera exposure trigger frequency, Hz
	TriggerFreq float64 `json:"triggerFreq"`

	// ReadoutLimited is true when the sensor readout, not the requested
	// exposure, caps the frame rate
	ReadoutLimited bool `json:"readoutLimited"`

	// DutyCycle is the fraction of each trigger period the exposure pulse
	// is high
	DutyCycle float64 `json:"dutyCycle"`

	// MaxFrameRate is the frame rate ceiling at this ROI with no user
	// delays, fps
	MaxFrameRate float64 `json:"maxFrameRate"`

	// FramesPerStack counts the frames in one stack, both z endpoints
	// included; 1 when not MultiD
	FramesPerStack int `json:"framesPerStack"`

	// StackDuration is the time to acquire one stack including the
	// inter-stack delay, seconds
	StackDuration float64 `json:"stackDuration"`

	// TotalDuration is the time to acquire every stack, seconds
	TotalDuration float64 `json:"totalDuration"`

	// SamplingRate clocks the per-stack output buffers, Hz
	SamplingRate float64 `json:"samplingRate"`

	// SamplingRateWithDelay clocks buffers that span the whole
	// acquisition, inter-stack delays included; 10 samples per LED
	// on-time.  Zero unless software_time mode is requested.
	SamplingRateWithDelay float64 `json:"samplingRateWithDelay"`
}

// Derive validates req against lim and computes the full set of derived
// timing values.  The error taxonomy is: out-of-bounds user parameters,
// unknown mode strings, and a computed duty cycle outside (0, 1).
func Derive(req Request, lim pco.Limits) (Timing, error) {
	var t Timing
	mode, err := pco.ValidateReadoutMode(req.ReadoutMode)
	if err != nil {
		return t, err
	}
	led, err := ValidateLEDMode(req.LEDTrigger)
	if err != nil {
		return t, err
	}
	if req.NumStacks < 1 {
		return t, fmt.Errorf("number of stacks must be at least 1, got %d", req.NumStacks)
	}
	if req.Exposure < lim.MinExposure || req.Exposure > lim.MaxExposure {
		return t, fmt.Errorf("exposure time %g s is not between %g and %g s", req.Exposure, lim.MinExposure, lim.MaxExposure)
	}
	if req.FrameDelay < 0 || req.FrameDelay > lim.MaxDelay {
		return t, fmt.Errorf("delay between frame triggers %g s is not between 0 and %g s", req.FrameDelay, lim.MaxDelay)
	}
	if req.StackDelay < 0 {
		return t, fmt.Errorf("delay between stacks must not be negative, got %g", req.StackDelay)
	}
	if req.ImageHeight < lim.MinHeight || req.ImageHeight > lim.MaxHeight {
		return t, fmt.Errorf("image height %d is not between %d and %d pixels", req.ImageHeight, lim.MinHeight, lim.MaxHeight)
	}
	if req.ImageHeight%2 != 0 {
		return t, fmt.Errorf("image height %d should be an even number of pixels", req.ImageHeight)
	}
	if req.ImageWidth < lim.MinWidth || req.ImageWidth > lim.MaxWidth {
		return t, fmt.Errorf("image width %d is not between %d and %d pixels", req.ImageWidth, lim.MinWidth, lim.MaxWidth)
	}
	if req.MultiD {
		if req.ZEnd < req.ZStart {
			return t, fmt.Errorf("z end %g is smaller than z start %g", req.ZEnd, req.ZStart)
		}
		if req.ZStart < lim.ZMin || req.ZEnd > lim.ZMax {
			return t, fmt.Errorf("z range [%g, %g] is outside [%g, %g]", req.ZStart, req.ZEnd, lim.ZMin, lim.ZMax)
		}
		if req.ZStep <= 0 {
			return t, fmt.Errorf("z step must be positive, got %g", req.ZStep)
		}
	}
	if req.RFFreq != 0 && (req.RFFreq < lim.AOTFMinRF || req.RFFreq > lim.AOTFMaxRF) {
		return t, fmt.Errorf("modulator RF frequency %g Hz is not between %g and %g Hz", req.RFFreq, lim.AOTFMinRF, lim.AOTFMaxRF)
	}
	switch led {
	case LEDFraction:
		if req.LEDFractionOn < 0 || req.LEDFractionOn > 1 {
			return t, fmt.Errorf("LED fraction on %g is not between 0 and 1", req.LEDFractionOn)
		}
	case LEDTime:
		if req.LEDTimeOn <= 0 {
			return t, fmt.Errorf("LED time on must be positive in software_time mode, got %g", req.LEDTimeOn)
		}
		if req.LEDFrequency <= 0 {
			return t, fmt.Errorf("LED frequency must be positive in software_time mode, got %g", req.LEDFrequency)
		}
		if 1/req.LEDFrequency < req.LEDTimeOn {
			return t, fmt.Errorf("LED pulse period %g s is shorter than the on-time %g s", 1/req.LEDFrequency, req.LEDTimeOn)
		}
	}

	t.FrameReadout = float64(req.ImageHeight) * lim.LineTime(mode) / 2
	t.MaxFrameRate = 1 / t.FrameReadout

	// in 2D the delay applies between stacks, not frames
	delay := 0.0
	if req.MultiD {
		delay = req.FrameDelay
	}
	if req.Exposure < t.FrameReadout {
		t.ReadoutLimited = true
		t.TriggerFreq = 1 / (t.FrameReadout + delay)
	} else {
		t.TriggerFreq = 1 / (req.Exposure + delay)
	}

	t.DutyCycle = 0.9 - req.FrameDelay*t.TriggerFreq
	if t.DutyCycle <= 0 || t.DutyCycle >= 1 {
		return t, fmt.Errorf("duty cycle %g is outside (0, 1): frame delay %g s is too large for the %g Hz trigger", t.DutyCycle, req.FrameDelay, t.TriggerFreq)
	}

	t.FramesPerStack = 1
	if req.MultiD {
		t.FramesPerStack = int(math.Floor((req.ZEnd-req.ZStart)/req.ZStep)) + 1
	}

	t.StackDuration = float64(t.FramesPerStack)/t.TriggerFreq + req.StackDelay
	t.TotalDuration = t.StackDuration*float64(req.NumStacks) + req.StackDelay*float64(req.NumStacks-1)

	if req.MultiD {
		// one output sample per frame
		t.SamplingRate = t.TriggerFreq
	} else {
		// resolve sub-exposure waveform detail
		t.SamplingRate = 10 / req.Exposure
	}
	if led == LEDTime {
		t.SamplingRateWithDelay = 10 / req.LEDTimeOn
	}
	return t, nil
}
