/*Package waveform synthesizes the sample buffers clocked out by the output
channels: the galvo scan ramp, the LED gating patterns, and the AOTF
modulator drive.

Buffers are produced from a Request and its derived Timing and are not
mutated afterwards, with one exception: the tail of every digital gating
buffer is forced off so no illumination can remain active after the
sequence ends.
*/
package waveform

import (
	"fmt"
	"math"

	"github.com/lightsheet/fastmc/pco"
	"github.com/lightsheet/fastmc/timing"
	"github.com/lightsheet/fastmc/util"
)

// tailOff is the number of trailing samples forced low in every digital
// gating buffer
const tailOff = 3

// samples2D is the buffer length used for per-stack gating in single-frame
// mode, where there is no frame count to derive it from
const samples2D = 10

// Analog is a voltage sample sequence and the rate it is meant to be
// clocked out at
type Analog struct {
	// Samples are the output voltages
	Samples []float64

	// Rate is the sample clock rate, Hz
	Rate float64
}

// Digital is a logic-level sample sequence and the rate it is meant to be
// clocked out at
type Digital struct {
	// Samples are the line states
	Samples []bool

	// Rate is the sample clock rate, Hz
	Rate float64
}

// forceTailOff clears the final tailOff samples, or all of them for very
// short buffers
func forceTailOff(data []bool) {
	start := len(data) - tailOff
	if start < 0 {
		start = 0
	}
	for i := start; i < len(data); i++ {
		data[i] = false
	}
}

// GalvoRamp produces the scan ramp: a linear sweep from the start to the
// end z position in galvo volts, one sample per frame.  It is played once
// per master trigger edge.  The z range extends past the calibrated
// voltage span, so samples are clamped to the galvo's drive rails.
func GalvoRamp(req timing.Request, t timing.Timing, lim pco.Limits) Analog {
	samples := util.Linspace(lim.VoltPerZ*req.ZStart, lim.VoltPerZ*req.ZEnd, t.FramesPerStack)
	for i, v := range samples {
		samples[i] = util.Clamp(v, lim.GalvoMinV, lim.GalvoMaxV)
	}
	return Analog{
		Samples: samples,
		Rate:    t.SamplingRate,
	}
}

// LEDFraction produces the software_fraction gating buffer: on for the
// requested fraction of the stack, off for the remainder, with the tail
// forced off.  The buffer is one sample per frame in multi-d mode and a
// fixed short buffer in single-frame mode.
func LEDFraction(req timing.Request, t timing.Timing) Digital {
	n := samples2D
	if req.MultiD {
		n = t.FramesPerStack
	}
	on := int(float64(n) * req.LEDFractionOn)
	if on > n {
		on = n
	}
	data := make([]bool, n)
	for i := 0; i < on; i++ {
		data[i] = true
	}
	forceTailOff(data)
	return Digital{Samples: data, Rate: t.SamplingRate}
}

// LEDPeriodic produces the software_time gating buffer: an on/off pattern
// at the requested pulse frequency, tiled over the complete acquisition
// (inter-stack delays included) and truncated to the exact sample count,
// tail forced off.  It is played once, not re-triggered per stack.
//
// The request is rejected if the on-time exceeds the total acquisition
// duration.
func LEDPeriodic(req timing.Request, t timing.Timing) (Digital, error) {
	if req.LEDTimeOn > t.TotalDuration {
		return Digital{}, fmt.Errorf("LED time on %g s is greater than total acquisition time %g s", req.LEDTimeOn, t.TotalDuration)
	}
	rate := t.SamplingRateWithDelay
	total := int(rate * t.TotalDuration)
	timeOff := 1/req.LEDFrequency - req.LEDTimeOn
	samplesOn := int(req.LEDTimeOn * rate)
	samplesOff := int(timeOff * rate)
	period := samplesOn + samplesOff
	reps := int(math.Ceil(float64(total) / float64(period)))
	data := make([]bool, 0, reps*period)
	for r := 0; r < reps; r++ {
		for i := 0; i < samplesOn; i++ {
			data = append(data, true)
		}
		for i := 0; i < samplesOff; i++ {
			data = append(data, false)
		}
	}
	data = data[:total]
	forceTailOff(data)
	return Digital{Samples: data, Rate: rate}, nil
}

// ModulatorSine produces the AOTF drive: a sine at the RF frequency on a
// 1.0 V offset, the optimal modulation level for the device, spanning
// one exposure (or one readout when readout limited).
func ModulatorSine(req timing.Request, t timing.Timing) Analog {
	const rate = 100
	totalT := req.Exposure
	if t.FrameReadout > totalT {
		totalT = t.FrameReadout
	}
	pts := util.Arange(0, totalT, 1.0/rate)
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = 1.0 + math.Sin(2*math.Pi*req.RFFreq*p)
	}
	return Analog{Samples: out, Rate: rate}
}
