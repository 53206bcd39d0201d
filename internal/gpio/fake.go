package gpio

// FakeIndicator counts pulses for test assertions.
type FakeIndicator struct {
	Pulses int

	// PulseError, if set, will be returned by Pulse().
	PulseError error

	Closed bool
}

// NewFakeIndicator creates a FakeIndicator for testing.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Pulse records a pulse.
func (f *FakeIndicator) Pulse() error {
	if f.PulseError != nil {
		return f.PulseError
	}
	f.Pulses++
	return nil
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}
