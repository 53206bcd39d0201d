// Package gpio drives the step indicator LED with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Indicator signals detected steps.
type Indicator interface {
	// Pulse lights the indicator briefly. Pulses that arrive while the
	// indicator is lit extend it rather than queueing.
	Pulse() error

	// Close turns the indicator off and releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip   = "gpiochip0"
	DefaultPinLED = 17

	PulseDuration = 100 * time.Millisecond
)
