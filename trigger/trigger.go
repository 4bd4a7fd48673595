/*Package trigger sequences a master pulse generator and the subordinate
output channels that fire from it.

One counter (the master) defines the start-of-stack boundary.  Every other
channel is a subordinate: it starts only on a rising edge of the master's
internal signal, and is usually re-triggerable so the next edge replays its
burst without reconfiguration.  The package tracks each channel through the
Created, Configured, Armed, Running, Stopped, Closed lifecycle and enforces
the two ordering rules that keep trigger edges from being missed or
doubled: every subordinate reaches Armed before the master starts, and the
master is the last channel started and the first stopped.

CloseAll releases every channel exactly once regardless of the states they
were left in, so no channel leaks on a failure path.
*/
package trigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/lightsheet/fastmc/nidaq"
)

// State is a point in a channel's lifecycle
type State int

const (
	// Created means the channel exists on the device but is unconfigured
	Created State = iota

	// Configured means timing and triggering are programmed
	Configured

	// Armed means the channel is started and waiting on its trigger
	Armed

	// Running means the channel is actively generating
	Running

	// Stopped means generation has been halted
	Stopped

	// Closed means the channel has been released; terminal
	Closed
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Configured:
		return "configured"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is generated when a closed channel is used
	ErrClosed = errors.New("channel has been closed")

	// ErrNotArmed is generated when the master is started before every
	// subordinate reached Armed
	ErrNotArmed = errors.New("every subordinate must be armed before the master starts")

	// ErrNoMaster is generated when a hierarchy is used without a master
	ErrNoMaster = errors.New("hierarchy has no master channel")
)

// Channel pairs a hardware channel handle with its lifecycle state
type Channel struct {
	// Name is the hardware resource name, for error context
	Name string

	hw    nidaq.Channel
	state State
}

// State returns the channel's lifecycle state
func (c *Channel) State() State {
	return c.state
}

func (c *Channel) closedGuard() error {
	if c.state == Closed {
		return fmt.Errorf("%s: %w", c.Name, ErrClosed)
	}
	return nil
}

// Hierarchy owns one master trigger channel and its subordinates
type Hierarchy struct {
	dev nidaq.Device
	res nidaq.Resources

	master   *Channel
	masterHW nidaq.CounterChannel
	subs     []*Channel
}

// NewHierarchy returns an empty hierarchy on the given device and resource
// table
func NewHierarchy(dev nidaq.Device, res nidaq.Resources) *Hierarchy {
	return &Hierarchy{dev: dev, res: res}
}

// Master returns the master channel, nil before CreateMaster
func (h *Hierarchy) Master() *Channel {
	return h.master
}

// Subordinates returns the subordinate channels in creation order
func (h *Hierarchy) Subordinates() []*Channel {
	out := make([]*Channel, len(h.subs))
	copy(out, h.subs)
	return out
}

// Channels returns every channel in the hierarchy, master first
func (h *Hierarchy) Channels() []*Channel {
	out := make([]*Channel, 0, len(h.subs)+1)
	if h.master != nil {
		out = append(out, h.master)
	}
	return append(out, h.subs...)
}

// CreateMaster configures the master stack trigger: a finite pulse train at
// freq with the given duty cycle, one pulse per stack.
//
// A single-stack acquisition programs 2 pulses, not 1: the driver's
// wait-until-done needs at least one full period boundary to observe
// completion.  The extra edge is harmless, the subordinates have finished
// their bursts and the camera software ignores triggers past its frame
// count.
func (h *Hierarchy) CreateMaster(freq, duty float64, stacks int) error {
	ctr, err := h.dev.CounterOutput(h.res.StackCounter)
	if err != nil {
		return err
	}
	c := &Channel{Name: h.res.StackCounter, hw: ctr, state: Created}
	h.master = c
	h.masterHW = ctr
	if err := ctr.ConfigurePulse(freq, duty, nidaq.LevelLow); err != nil {
		return err
	}
	pulses := stacks
	if stacks == 1 {
		pulses = 2
	}
	if err := ctr.ConfigureImplicitTiming(nidaq.FiniteSamples, pulses); err != nil {
		return err
	}
	c.state = Configured
	return nil
}

// CreateCameraTrigger configures the camera exposure pulse train as a
// re-triggerable subordinate: freq and duty from the derived timing,
// frames pulses per master edge.  Continuous generation is only usable
// when stacks run back to back with no delay; finite mode is what lets the
// train go quiet during the inter-stack gap.
func (h *Hierarchy) CreateCameraTrigger(freq, duty float64, frames int, multiD bool, stackDelay float64) error {
	ctr, err := h.dev.CounterOutput(h.res.CameraCounter)
	if err != nil {
		return err
	}
	c := &Channel{Name: h.res.CameraCounter, hw: ctr, state: Created}
	h.subs = append(h.subs, c)
	if err := ctr.ConfigurePulse(freq, duty, nidaq.LevelLow); err != nil {
		return err
	}
	mode := nidaq.FiniteSamples
	samples := 1
	if multiD {
		samples = frames
		if stackDelay == 0 {
			mode = nidaq.ContinuousSamples
		}
	}
	if err := ctr.ConfigureImplicitTiming(mode, samples); err != nil {
		return err
	}
	if err := ctr.ConfigureStartTrigger(h.res.StackCounterInternal, nidaq.RisingEdge, true); err != nil {
		return err
	}
	c.state = Configured
	return nil
}

// CreateGalvo configures the scan ramp output as a re-triggerable
// subordinate and loads its buffer without auto-start
func (h *Hierarchy) CreateGalvo(samples []float64, rate float64, minV, maxV float64) error {
	ao, err := h.dev.AnalogOutput(h.res.GalvoAO, minV, maxV)
	if err != nil {
		return err
	}
	c := &Channel{Name: h.res.GalvoAO, hw: ao, state: Created}
	h.subs = append(h.subs, c)
	if err := ao.ConfigureSampleClock(rate, nidaq.FiniteSamples, len(samples)); err != nil {
		return err
	}
	if err := ao.ConfigureStartTrigger(h.res.StackCounterInternal, nidaq.RisingEdge, true); err != nil {
		return err
	}
	if err := ao.WriteAnalog(samples, false); err != nil {
		return err
	}
	c.state = Configured
	return nil
}

// CreateModulator configures the AOTF drive output as a re-triggerable
// subordinate and loads its buffer without auto-start.  The buffer is
// replayed from the start of every stack, like the galvo ramp.
func (h *Hierarchy) CreateModulator(samples []float64, rate float64, minV, maxV float64) error {
	ao, err := h.dev.AnalogOutput(h.res.ModulatorAO, minV, maxV)
	if err != nil {
		return err
	}
	c := &Channel{Name: h.res.ModulatorAO, hw: ao, state: Created}
	h.subs = append(h.subs, c)
	if err := ao.ConfigureSampleClock(rate, nidaq.FiniteSamples, len(samples)); err != nil {
		return err
	}
	if err := ao.ConfigureStartTrigger(h.res.StackCounterInternal, nidaq.RisingEdge, true); err != nil {
		return err
	}
	if err := ao.WriteAnalog(samples, false); err != nil {
		return err
	}
	c.state = Configured
	return nil
}

// CreateGate configures a digital gating subordinate and loads its buffer
// without auto-start.  retriggerable false makes the channel a single-shot
// consumer of the master's first edge, for buffers that already span the
// complete multi-stack timeline.
func (h *Hierarchy) CreateGate(line string, samples []bool, rate float64, retriggerable bool) error {
	do, err := h.dev.DigitalOutput(line)
	if err != nil {
		return err
	}
	c := &Channel{Name: line, hw: do, state: Created}
	h.subs = append(h.subs, c)
	if err := do.ConfigureSampleClock(rate, nidaq.FiniteSamples, len(samples)); err != nil {
		return err
	}
	if err := do.ConfigureStartTrigger(h.res.StackCounterInternal, nidaq.RisingEdge, retriggerable); err != nil {
		return err
	}
	if err := do.WriteDigital(samples, false); err != nil {
		return err
	}
	c.state = Configured
	return nil
}

// ArmSubordinates starts every subordinate so it waits on the master's
// edge.  Must precede StartMaster.
func (h *Hierarchy) ArmSubordinates() error {
	for _, c := range h.subs {
		if err := c.closedGuard(); err != nil {
			return err
		}
		if err := c.hw.Start(); err != nil {
			return fmt.Errorf("arming %s: %v", c.Name, err)
		}
		c.state = Armed
	}
	return nil
}

// StartMaster begins the pulse train that drives the whole hierarchy.  It
// refuses to run unless every subordinate is Armed.
func (h *Hierarchy) StartMaster() error {
	if h.master == nil {
		return ErrNoMaster
	}
	if err := h.master.closedGuard(); err != nil {
		return err
	}
	for _, c := range h.subs {
		if c.state != Armed {
			return fmt.Errorf("%s is %s: %w", c.Name, c.state, ErrNotArmed)
		}
	}
	if err := h.masterHW.Start(); err != nil {
		return err
	}
	h.master.state = Running
	return nil
}

// Wait blocks until the master reports completion or the timeout elapses,
// in which case the driver's timeout error is returned
func (h *Hierarchy) Wait(timeout time.Duration) error {
	if h.master == nil {
		return ErrNoMaster
	}
	if err := h.master.closedGuard(); err != nil {
		return err
	}
	return h.masterHW.WaitUntilDone(timeout)
}

// StopAll halts generation: the master first so no further edges fire,
// then each subordinate.  The first error is returned but every channel is
// still visited.
func (h *Hierarchy) StopAll() error {
	var first error
	for _, c := range h.Channels() {
		if c.state == Closed || c.state == Stopped {
			continue
		}
		if err := c.hw.Stop(); err != nil && first == nil {
			first = fmt.Errorf("stopping %s: %v", c.Name, err)
		}
		c.state = Stopped
	}
	return first
}

// CloseAll releases every channel exactly once, unconditionally.  It is
// safe to call on any mix of states and on repeated invocation; the first
// close error is returned but every channel is still visited.
func (h *Hierarchy) CloseAll() error {
	var first error
	for _, c := range h.Channels() {
		if c.state == Closed {
			continue
		}
		if err := c.hw.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing %s: %v", c.Name, err)
		}
		c.state = Closed
	}
	return first
}
