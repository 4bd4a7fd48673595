package nidaq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrClosedChannel is generated when a channel is used after Close
	ErrClosedChannel = errors.New("channel is closed")

	// ErrNameInUse is generated when a channel name is opened while
	// another open channel holds it
	ErrNameInUse = errors.New("channel name is held by another open channel")

	// ErrWaitTimeout is generated when WaitUntilDone exceeds its timeout
	ErrWaitTimeout = errors.New("wait until done timed out")
)

// Sim is an in-memory Device.  It records every configuration call made on
// its channels so tests can assert on them, enforces the same misuse rules
// as the real driver (no reuse of an open name, no use after close), and
// can inject faults at the write and wait steps.
//
// With RealTime set, counter channels in finite mode pace WaitUntilDone at
// the programmed pulse rate, which makes the simulator usable as a timing
// rehearsal tool and not only as a test double.
type Sim struct {
	sync.Mutex

	// RealTime paces finite counter waits at the programmed pulse rate
	RealTime bool

	// WriteErr, if non-nil, is returned from every buffer write
	WriteErr error

	// WaitErr, if non-nil, is returned from every WaitUntilDone
	WaitErr error

	chans []*SimChannel
	open  map[string]bool
}

// NewSim returns a simulated device with no channels
func NewSim() *Sim {
	return &Sim{open: make(map[string]bool)}
}

// Channels returns every channel ever created on the device, including
// closed ones, in creation order
func (s *Sim) Channels() []*SimChannel {
	s.Lock()
	defer s.Unlock()
	out := make([]*SimChannel, len(s.chans))
	copy(out, s.chans)
	return out
}

// OpenCount returns the number of channels not yet closed
func (s *Sim) OpenCount() int {
	s.Lock()
	defer s.Unlock()
	n := 0
	for _, c := range s.chans {
		if !c.Closed {
			n++
		}
	}
	return n
}

func (s *Sim) create(name, kind string) (*SimChannel, error) {
	s.Lock()
	defer s.Unlock()
	if s.open[name] {
		return nil, fmt.Errorf("%s: %w", name, ErrNameInUse)
	}
	c := &SimChannel{dev: s, Name: name, Kind: kind}
	s.open[name] = true
	s.chans = append(s.chans, c)
	return c, nil
}

// CounterOutput creates a simulated counter output channel
func (s *Sim) CounterOutput(name string) (CounterChannel, error) {
	return s.create(name, "counter")
}

// AnalogOutput creates a simulated analog output channel
func (s *Sim) AnalogOutput(name string, minV, maxV float64) (AnalogChannel, error) {
	c, err := s.create(name, "analog")
	if err != nil {
		return nil, err
	}
	c.MinV = minV
	c.MaxV = maxV
	return c, nil
}

// DigitalOutput creates a simulated digital output channel
func (s *Sim) DigitalOutput(line string) (DigitalChannel, error) {
	return s.create(line, "digital")
}

// SimChannel is one simulated output channel.  Exported fields are the
// record of configuration calls, for test assertions.
type SimChannel struct {
	dev *Sim

	Name string
	Kind string

	MinV, MaxV float64

	PulseFreq float64
	Duty      float64
	Idle      Level

	Rate    float64
	Mode    SampleMode
	Samples int

	TriggerSource string
	TriggerEdge   Edge
	Retriggerable bool

	Analog  []float64
	Digital []bool

	Started bool
	Stopped bool
	Closed  bool
}

func (c *SimChannel) check() error {
	if c.Closed {
		return fmt.Errorf("%s: %w", c.Name, ErrClosedChannel)
	}
	return nil
}

// ConfigurePulse records the pulse train parameters
func (c *SimChannel) ConfigurePulse(freq, duty float64, idle Level) error {
	if err := c.check(); err != nil {
		return err
	}
	c.PulseFreq = freq
	c.Duty = duty
	c.Idle = idle
	return nil
}

// ConfigureImplicitTiming records the generation mode and pulse count
func (c *SimChannel) ConfigureImplicitTiming(mode SampleMode, samples int) error {
	if err := c.check(); err != nil {
		return err
	}
	c.Mode = mode
	c.Samples = samples
	return nil
}

// ConfigureSampleClock records the output clocking
func (c *SimChannel) ConfigureSampleClock(rateHz float64, mode SampleMode, samples int) error {
	if err := c.check(); err != nil {
		return err
	}
	c.Rate = rateHz
	c.Mode = mode
	c.Samples = samples
	return nil
}

// ConfigureStartTrigger records the trigger wiring
func (c *SimChannel) ConfigureStartTrigger(source string, edge Edge, retriggerable bool) error {
	if err := c.check(); err != nil {
		return err
	}
	c.TriggerSource = source
	c.TriggerEdge = edge
	c.Retriggerable = retriggerable
	return nil
}

// WriteAnalog records the analog buffer
func (c *SimChannel) WriteAnalog(samples []float64, autostart bool) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.dev.WriteErr != nil {
		return c.dev.WriteErr
	}
	c.Analog = append([]float64(nil), samples...)
	if autostart {
		c.Started = true
	}
	return nil
}

// WriteDigital records the digital buffer
func (c *SimChannel) WriteDigital(samples []bool, autostart bool) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.dev.WriteErr != nil {
		return c.dev.WriteErr
	}
	c.Digital = append([]bool(nil), samples...)
	if autostart {
		c.Started = true
	}
	return nil
}

// Start marks the channel started
func (c *SimChannel) Start() error {
	if err := c.check(); err != nil {
		return err
	}
	c.Started = true
	c.Stopped = false
	return nil
}

// WaitUntilDone returns when the simulated generation would complete.
// In real-time mode, finite counter channels tick at the programmed pulse
// rate; a train whose completion time exceeds the timeout returns
// ErrWaitTimeout, as the driver would.
func (c *SimChannel) WaitUntilDone(timeout time.Duration) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.dev.WaitErr != nil {
		return c.dev.WaitErr
	}
	if !c.dev.RealTime || c.Kind != "counter" || c.Mode != FiniteSamples || c.PulseFreq <= 0 {
		return nil
	}
	// the first pulse fires at t=0, so the train is done after
	// samples-1 full periods
	done := time.Duration(float64(c.Samples-1) / c.PulseFreq * float64(time.Second))
	if done > timeout {
		return fmt.Errorf("%s: %d pulses at %g Hz need %v, timeout %v: %w",
			c.Name, c.Samples, c.PulseFreq, done, timeout, ErrWaitTimeout)
	}
	lim := rate.NewLimiter(rate.Limit(c.PulseFreq), 1)
	for i := 0; i < c.Samples; i++ {
		if err := lim.Wait(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

// Stop marks the channel stopped
func (c *SimChannel) Stop() error {
	if err := c.check(); err != nil {
		return err
	}
	c.Stopped = true
	return nil
}

// Close releases the channel and frees its name.  Closing twice is an
// error.
func (c *SimChannel) Close() error {
	if err := c.check(); err != nil {
		return err
	}
	c.Closed = true
	c.dev.Lock()
	delete(c.dev.open, c.Name)
	c.dev.Unlock()
	return nil
}
