/*Package pco holds the physical limits of the imaging hardware: the
pco.edge 4.2 CL camera, the GVS011 galvo scanner, and the AOTF modulator.

The limits are a plain struct rather than package constants so that the
acquisition core can be exercised against made-up hardware in tests, and so
a different camera can be swapped in without touching the timing logic.
Edge42 returns the table for the hardware on the bench.
*/
package pco

import "errors"

// ReadoutMode is a sensor readout speed setting
type ReadoutMode int

const (
	// ReadoutSlow is the low-noise 95.3 Mpx/s readout
	ReadoutSlow ReadoutMode = iota

	// ReadoutFast is the 272.3 Mpx/s readout
	ReadoutFast
)

// ErrReadoutMode is generated when a readout mode string is not recognized
var ErrReadoutMode = errors.New("readout mode must be a member of {fast, slow}")

// ValidateReadoutMode ensures that a readout mode is valid
// s is a member of {fast, slow}
func ValidateReadoutMode(s string) (ReadoutMode, error) {
	switch s {
	case "fast":
		return ReadoutFast, nil
	case "slow":
		return ReadoutSlow, nil
	default:
		return -1, ErrReadoutMode
	}
}

// FormatReadoutMode converts a readout mode to a string representation,
// which is a member of {fast, slow}
func FormatReadoutMode(m ReadoutMode) string {
	switch m {
	case ReadoutFast:
		return "fast"
	case ReadoutSlow:
		return "slow"
	default:
		return ""
	}
}

// Limits is the table of physical and electrical bounds used to validate
// acquisition requests and bound the derived timing.
type Limits struct {
	// LineTimeSlow is the per-line readout time in slow mode, seconds
	LineTimeSlow float64 `yaml:"LineTimeSlow"`

	// LineTimeFast is the per-line readout time in fast mode, seconds
	LineTimeFast float64 `yaml:"LineTimeFast"`

	// ReadoutRateSlow is the pixel rate in slow mode, px/sec
	ReadoutRateSlow float64 `yaml:"ReadoutRateSlow"`

	// ReadoutRateFast is the pixel rate in fast mode, px/sec
	ReadoutRateFast float64 `yaml:"ReadoutRateFast"`

	// MaxFrameRateSlow is the full-frame rate ceiling in slow mode, fps
	MaxFrameRateSlow float64 `yaml:"MaxFrameRateSlow"`

	// MaxFrameRateFast is the full-frame rate ceiling in fast mode, fps
	MaxFrameRateFast float64 `yaml:"MaxFrameRateFast"`

	// SysDelay is the measured trigger-to-exposure delay, seconds
	SysDelay float64 `yaml:"SysDelay"`

	// Jitter is the measured trigger jitter, seconds
	Jitter float64 `yaml:"Jitter"`

	// MinExposure and MaxExposure bound the exposure time, seconds
	MinExposure float64 `yaml:"MinExposure"`
	MaxExposure float64 `yaml:"MaxExposure"`

	// MaxDelay bounds the per-frame trigger delay, seconds
	MaxDelay float64 `yaml:"MaxDelay"`

	// MinWidth, MaxWidth, MinHeight, MaxHeight bound the ROI, pixels
	MinWidth  int `yaml:"MinWidth"`
	MaxWidth  int `yaml:"MaxWidth"`
	MinHeight int `yaml:"MinHeight"`
	MaxHeight int `yaml:"MaxHeight"`

	// GalvoMinV and GalvoMaxV bound the galvo drive voltage
	GalvoMinV float64 `yaml:"GalvoMinV"`
	GalvoMaxV float64 `yaml:"GalvoMaxV"`

	// ZMin and ZMax bound the scan range, micron
	ZMin float64 `yaml:"ZMin"`
	ZMax float64 `yaml:"ZMax"`

	// VoltPerZ converts a z position in micron to galvo volts,
	// from experimental calibration
	VoltPerZ float64 `yaml:"VoltPerZ"`

	// AOTFMinRF and AOTFMaxRF bound the modulator RF frequency, Hz
	AOTFMinRF float64 `yaml:"AOTFMinRF"`
	AOTFMaxRF float64 `yaml:"AOTFMaxRF"`
}

// Edge42 returns the limits table for the pco.edge 4.2 CL with the GVS011
// galvo and AOTFnC-400.650-TN modulator.  SysDelay and Jitter are measured
// values, not datasheet ones.
func Edge42() Limits {
	return Limits{
		LineTimeSlow:     27.77e-6,
		LineTimeFast:     9.76e-6,
		ReadoutRateSlow:  95.3e6,
		ReadoutRateFast:  272.3e6,
		MaxFrameRateSlow: 35,
		MaxFrameRateFast: 100,
		SysDelay:         2.99e-6,
		Jitter:           0.3e-6,
		MinExposure:      100e-6,
		MaxExposure:      10.0,
		MaxDelay:         1.0,
		MinWidth:         40,
		MaxWidth:         2060,
		MinHeight:        16,
		MaxHeight:        2048,
		GalvoMinV:        -1.521,
		GalvoMaxV:        1.521,
		ZMin:             -200,
		ZMax:             200,
		VoltPerZ:         1.521 / 178.36,
		AOTFMinRF:        74e6,
		AOTFMaxRF:        158e6,
	}
}

// LineTime returns the per-line readout time for a readout mode
func (l Limits) LineTime(m ReadoutMode) float64 {
	if m == ReadoutFast {
		return l.LineTimeFast
	}
	return l.LineTimeSlow
}

// ReadoutRate returns the pixel rate for a readout mode
func (l Limits) ReadoutRate(m ReadoutMode) float64 {
	if m == ReadoutFast {
		return l.ReadoutRateFast
	}
	return l.ReadoutRateSlow
}

// MaxFullFrameRate returns the full-frame rate ceiling for a readout mode
func (l Limits) MaxFullFrameRate(m ReadoutMode) float64 {
	if m == ReadoutFast {
		return l.MaxFrameRateFast
	}
	return l.MaxFrameRateSlow
}
