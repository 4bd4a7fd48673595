package session_test

import (
	"errors"
	"testing"

	"github.com/lightsheet/fastmc/nidaq"
	"github.com/lightsheet/fastmc/pco"
	"github.com/lightsheet/fastmc/session"
	"github.com/lightsheet/fastmc/timing"
)

func accept(session.Summary) (bool, error)  { return true, nil }
func decline(session.Summary) (bool, error) { return false, nil }

func newSession(dev *nidaq.Sim, req timing.Request) *session.Session {
	return &session.Session{
		Req:       req,
		Limits:    pco.Edge42(),
		Resources: nidaq.DefaultResources(),
		Device:    dev,
		Confirm:   session.ConfirmFunc(accept),
	}
}

func singleFrameRequest() timing.Request {
	return timing.Request{
		NumStacks:   1,
		Exposure:    200e-3,
		ReadoutMode: "fast",
		MultiD:      false,
		ImageHeight: 2048,
		ImageWidth:  2060,
	}
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

func TestSingleFrameRunChannels(t *testing.T) {
	dev := nidaq.NewSim()
	s := newSession(dev, singleFrameRequest())
	res, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if res.Aborted {
		t.Fatal("run should not be aborted")
	}
	chans := dev.Channels()
	if len(chans) != 2 {
		t.Fatalf("expected exactly master + camera trigger, got %d channels", len(chans))
	}
	if chans[0].Name != "Dev1/ctr0" || chans[1].Name != "Dev1/ctr1" {
		t.Errorf("unexpected channels %q, %q", chans[0].Name, chans[1].Name)
	}
	for _, c := range chans {
		if !c.Closed {
			t.Errorf("%s left open after a successful run", c.Name)
		}
	}
	// single stack: 2 master pulses for the wait workaround
	if chans[0].Samples != 2 {
		t.Errorf("expected 2 master pulses for a single stack, got %d", chans[0].Samples)
	}
}

func TestSingleStackRealTimeRunCompletes(t *testing.T) {
	dev := nidaq.NewSim()
	dev.RealTime = true
	req := singleFrameRequest()
	req.Exposure = 20e-3
	s := newSession(dev, req)
	res, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if res.Aborted {
		t.Fatal("run should not be aborted")
	}
	for _, c := range dev.Channels() {
		if !c.Closed {
			t.Errorf("%s left open after a paced run", c.Name)
		}
	}
}

func TestStackRunWithFractionGate(t *testing.T) {
	dev := nidaq.NewSim()
	req := stackRequest()
	req.LEDTrigger = "software_fraction"
	req.LEDFractionOn = 0.5
	s := newSession(dev, req)
	res, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if res.Timing.FramesPerStack != 21 {
		t.Fatalf("expected 21 frames per stack, got %d", res.Timing.FramesPerStack)
	}
	var gate *nidaq.SimChannel
	for _, c := range dev.Channels() {
		if c.Name == "Dev1/port0/line0" {
			gate = c
		}
	}
	if gate == nil {
		t.Fatal("expected an LED gate channel")
	}
	if len(gate.Digital) != 21 {
		t.Fatalf("expected a 21 sample gate buffer, got %d", len(gate.Digital))
	}
	for i := 0; i < 10; i++ {
		if !gate.Digital[i] {
			t.Errorf("expected gate sample %d on", i)
		}
	}
	for i := 18; i < 21; i++ {
		if gate.Digital[i] {
			t.Errorf("expected gate sample %d forced off", i)
		}
	}
	if !gate.Retriggerable {
		t.Error("the fraction gate must re-trigger each stack")
	}
	if dev.OpenCount() != 0 {
		t.Errorf("%d channels left open", dev.OpenCount())
	}
}

func TestStackRunCreatesGalvo(t *testing.T) {
	dev := nidaq.NewSim()
	s := newSession(dev, stackRequest())
	if _, err := s.Run(); err != nil {
		t.Fatal(err)
	}
	var galvo *nidaq.SimChannel
	for _, c := range dev.Channels() {
		if c.Name == "Dev1/ao0" {
			galvo = c
		}
	}
	if galvo == nil {
		t.Fatal("expected a galvo channel in multi-d mode")
	}
	if len(galvo.Analog) != 21 {
		t.Errorf("expected a 21 sample ramp, got %d", len(galvo.Analog))
	}
	if !galvo.Retriggerable || galvo.TriggerSource != "ctr0InternalOutput" {
		t.Error("the galvo must re-trigger from the stack counter")
	}
}

func TestRunWithModulator(t *testing.T) {
	dev := nidaq.NewSim()
	req := stackRequest()
	req.RFFreq = 100e6
	s := newSession(dev, req)
	if _, err := s.Run(); err != nil {
		t.Fatal(err)
	}
	var mod *nidaq.SimChannel
	for _, c := range dev.Channels() {
		if c.Name == "Dev1/ao1" {
			mod = c
		}
	}
	if mod == nil {
		t.Fatal("expected a modulator channel when an RF frequency is requested")
	}
	if len(mod.Analog) == 0 {
		t.Error("expected a non-empty modulator buffer")
	}
	if !mod.Retriggerable || mod.TriggerSource != "ctr0InternalOutput" {
		t.Error("the modulator must re-trigger from the stack counter")
	}
	if dev.OpenCount() != 0 {
		t.Errorf("%d channels left open", dev.OpenCount())
	}
}

func TestPeriodicGateSingleShot(t *testing.T) {
	dev := nidaq.NewSim()
	req := stackRequest()
	req.LEDTrigger = "software_time"
	req.LEDTimeOn = 0.05
	req.LEDFrequency = 2
	s := newSession(dev, req)
	if _, err := s.Run(); err != nil {
		t.Fatal(err)
	}
	for _, c := range dev.Channels() {
		if c.Name == "Dev1/port0/line0" && c.Retriggerable {
			t.Error("the whole-timeline gate must be single shot")
		}
	}
}

func TestDeclineTouchesNoHardware(t *testing.T) {
	dev := nidaq.NewSim()
	s := newSession(dev, stackRequest())
	s.Confirm = session.ConfirmFunc(decline)
	res, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Aborted {
		t.Error("expected an aborted result")
	}
	if len(dev.Channels()) != 0 {
		t.Errorf("expected no channels created on decline, got %d", len(dev.Channels()))
	}
}

func TestValidationFailureTouchesNoHardware(t *testing.T) {
	dev := nidaq.NewSim()
	req := stackRequest()
	req.Exposure = 50e-6
	s := newSession(dev, req)
	if _, err := s.Run(); err == nil {
		t.Fatal("expected a validation error")
	}
	if len(dev.Channels()) != 0 {
		t.Errorf("expected no channels created on validation failure, got %d", len(dev.Channels()))
	}
}

func TestOnTimeBeyondTotalRejectedBeforeHardware(t *testing.T) {
	dev := nidaq.NewSim()
	req := stackRequest()
	req.NumStacks = 1
	req.StackDelay = 0
	req.LEDTrigger = "software_time"
	req.LEDTimeOn = 0.4
	req.LEDFrequency = 2
	s := newSession(dev, req)
	if _, err := s.Run(); err == nil {
		t.Fatal("expected rejection of on-time beyond the acquisition")
	}
	if len(dev.Channels()) != 0 {
		t.Errorf("expected no channels created, got %d", len(dev.Channels()))
	}
}

func TestCleanupOnWriteFailure(t *testing.T) {
	dev := nidaq.NewSim()
	dev.WriteErr = errors.New("boom")
	s := newSession(dev, stackRequest())
	if _, err := s.Run(); err == nil {
		t.Fatal("expected the write failure to propagate")
	}
	if dev.OpenCount() != 0 {
		t.Errorf("%d channels left open after write failure", dev.OpenCount())
	}
}

func TestCleanupOnWaitTimeout(t *testing.T) {
	dev := nidaq.NewSim()
	dev.WaitErr = nidaq.ErrWaitTimeout
	s := newSession(dev, stackRequest())
	_, err := s.Run()
	if !errors.Is(err, nidaq.ErrWaitTimeout) {
		t.Fatalf("expected the timeout to propagate, got %v", err)
	}
	if dev.OpenCount() != 0 {
		t.Errorf("%d channels left open after timeout", dev.OpenCount())
	}
	// the timeout path still stops every channel before closing
	for _, c := range dev.Channels() {
		if !c.Stopped && !c.Closed {
			t.Errorf("%s not stopped", c.Name)
		}
	}
}

func TestSummaryTotals(t *testing.T) {
	req := stackRequest()
	tm, err := timing.Derive(req, pco.Edge42())
	if err != nil {
		t.Fatal(err)
	}
	sum := session.Summarize(req, tm)
	if sum.TimePoints != 2*21 {
		t.Errorf("expected 42 time points, got %d", sum.TimePoints)
	}
	if !sum.MultiD {
		t.Error("expected a multi-d summary")
	}
	if sum.FramesPerStack != 21 {
		t.Errorf("expected 21 frames per stack, got %d", sum.FramesPerStack)
	}
}

func TestSummaryCablingHint(t *testing.T) {
	req := stackRequest()
	req.LEDTrigger = "hardware"
	tm, err := timing.Derive(req, pco.Edge42())
	if err != nil {
		t.Fatal(err)
	}
	sum := session.Summarize(req, tm)
	if sum.CablingHint == "" {
		t.Error("expected a cabling hint for hardware LED triggering")
	}
}
