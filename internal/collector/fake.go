package collector

import "github.com/sweeney/step-sensor/internal/logic"

// FakeNotifier records step notifications for test assertions.
type FakeNotifier struct {
	// Events contains every step that was delivered.
	Events []logic.StepEvent

	// Err, if set, is returned by NotifyStep and nothing is recorded.
	Err error
}

// NewFakeNotifier creates a FakeNotifier for testing.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

// NotifyStep records the step event.
func (f *FakeNotifier) NotifyStep(event logic.StepEvent) error {
	if f.Err != nil {
		return f.Err
	}
	f.Events = append(f.Events, event)
	return nil
}
