/*Package nidaq describes the slice of an NI-DAQmx style timing and I/O
device consumed by the acquisition core.

The core only ever needs to: create a named counter, analog, or digital
output channel; configure its pulse train or sample clock; point its start
trigger at another channel's internal signal; write a buffer without
auto-start; start; block until done with a timeout; stop; and close.  The
Device interface captures exactly that capability set and no more, so the
core can run against a real driver binding or against the Sim type in this
package without changes.

The channel names ("Dev1/ctr0" and so on) live in a Resources table rather
than constants; see resources.go.
*/
package nidaq

import (
	"errors"
	"time"
)

// SampleMode selects finite or continuous generation
type SampleMode int

const (
	// FiniteSamples generates the programmed number of samples and stops
	FiniteSamples SampleMode = iota

	// ContinuousSamples generates until stopped
	ContinuousSamples
)

// Edge is a signal edge
type Edge int

const (
	// RisingEdge triggers on a low to high transition
	RisingEdge Edge = iota

	// FallingEdge triggers on a high to low transition
	FallingEdge
)

// Level is a logic level
type Level int

const (
	// LevelLow is logic low
	LevelLow Level = iota

	// LevelHigh is logic high
	LevelHigh
)

// ValidateSampleMode ensures that a sample mode is valid
// s is a member of {finite, continuous}
func ValidateSampleMode(s string) (SampleMode, error) {
	switch s {
	case "finite":
		return FiniteSamples, nil
	case "continuous":
		return ContinuousSamples, nil
	default:
		return -1, errors.New("sample mode must be a member of {finite, continuous}")
	}
}

// FormatSampleMode converts a sample mode to a string representation,
// which is a member of {finite, continuous}
func FormatSampleMode(m SampleMode) string {
	switch m {
	case FiniteSamples:
		return "finite"
	case ContinuousSamples:
		return "continuous"
	default:
		return ""
	}
}

// Channel is the lifecycle surface shared by every output channel kind.
type Channel interface {
	// ConfigureStartTrigger makes the channel start on an edge of another
	// channel's signal.  retriggerable re-arms the channel after each
	// programmed burst so the next edge restarts it.
	ConfigureStartTrigger(source string, edge Edge, retriggerable bool) error

	// Start begins generation, or arms the channel if a start trigger is
	// configured
	Start() error

	// WaitUntilDone blocks until generation completes or the timeout
	// elapses, in which case an error is returned
	WaitUntilDone(timeout time.Duration) error

	// Stop halts generation
	Stop() error

	// Close releases the channel.  A channel must be closed exactly once.
	Close() error
}

// CounterChannel is a counter output producing a pulse train
type CounterChannel interface {
	Channel

	// ConfigurePulse sets the pulse frequency, duty cycle and idle level
	ConfigurePulse(freq, duty float64, idle Level) error

	// ConfigureImplicitTiming sets finite or continuous generation and the
	// pulse count, clocked off the counter's own timebase
	ConfigureImplicitTiming(mode SampleMode, samples int) error
}

// AnalogChannel is a buffered analog voltage output
type AnalogChannel interface {
	Channel

	// ConfigureSampleClock sets the output rate, generation mode and
	// samples per burst
	ConfigureSampleClock(rate float64, mode SampleMode, samples int) error

	// WriteAnalog loads a sample buffer.  autostart false defers output to
	// Start or the configured trigger.
	WriteAnalog(samples []float64, autostart bool) error
}

// DigitalChannel is a buffered digital line output
type DigitalChannel interface {
	Channel

	// ConfigureSampleClock sets the output rate, generation mode and
	// samples per burst
	ConfigureSampleClock(rate float64, mode SampleMode, samples int) error

	// WriteDigital loads a sample buffer.  autostart false defers output to
	// Start or the configured trigger.
	WriteDigital(samples []bool, autostart bool) error
}

// Device creates output channels by hardware resource name.  A name may be
// held by at most one open channel at a time.
type Device interface {
	// CounterOutput creates a counter output channel
	CounterOutput(name string) (CounterChannel, error)

	// AnalogOutput creates an analog output channel with the given
	// voltage range
	AnalogOutput(name string, minV, maxV float64) (AnalogChannel, error)

	// DigitalOutput creates a digital output channel on the given line
	DigitalOutput(line string) (DigitalChannel, error)
}
