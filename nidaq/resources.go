package nidaq

// Resources is the table of named hardware lines used by an acquisition.
// It is injected rather than compiled in so the core can be pointed at a
// different device slot, or at the simulator, from configuration.
type Resources struct {
	// GalvoAO is the analog output driving the scan galvo
	GalvoAO string `yaml:"GalvoAO"`

	// ModulatorAO is the analog output driving the AOTF / LED voltage
	// modulator
	ModulatorAO string `yaml:"ModulatorAO"`

	// StackCounter is the counter generating the master stack trigger
	StackCounter string `yaml:"StackCounter"`

	// StackCounterInternal is the device-internal signal name of the
	// stack counter's output, used as the start trigger source for
	// subordinate channels
	StackCounterInternal string `yaml:"StackCounterInternal"`

	// CameraCounter is the counter generating the camera exposure pulse
	// train
	CameraCounter string `yaml:"CameraCounter"`

	// CameraCounterInternal is the device-internal signal name of the
	// camera counter's output
	CameraCounterInternal string `yaml:"CameraCounterInternal"`

	// LEDLine is the digital line gating the LED
	LEDLine string `yaml:"LEDLine"`

	// Laser488Line is the digital line gating the 488nm laser
	Laser488Line string `yaml:"Laser488Line"`

	// Laser561Line is the digital line gating the 561nm laser
	Laser561Line string `yaml:"Laser561Line"`
}

// DefaultResources returns the channel map for the device in slot Dev1,
// matching the bench wiring
func DefaultResources() Resources {
	return Resources{
		GalvoAO:               "Dev1/ao0",
		ModulatorAO:           "Dev1/ao1",
		StackCounter:          "Dev1/ctr0",
		StackCounterInternal:  "ctr0InternalOutput",
		CameraCounter:         "Dev1/ctr1",
		CameraCounterInternal: "ctr1InternalOutput",
		LEDLine:               "Dev1/port0/line0",
		Laser488Line:          "Dev1/port0/line1",
		Laser561Line:          "Dev1/port0/line2",
	}
}
