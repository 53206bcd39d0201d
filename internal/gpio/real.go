//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealIndicator drives an LED on a Linux GPIO character device line.
type RealIndicator struct {
	chip  *gpiocdev.Chip
	line  *gpiocdev.Line
	pulse *pulser
}

// NewRealIndicator requests pin on chip as an output, initially off.
func NewRealIndicator(chip string, pin int, duration time.Duration) (*RealIndicator, error) {
	if chip == "" {
		chip = DefaultChip
	}

	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := c.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request LED pin %d: %w", pin, err)
	}

	return &RealIndicator{
		chip:  c,
		line:  line,
		pulse: newPulser(line.SetValue, duration),
	}, nil
}

// Pulse drives the line high and schedules it low after the pulse duration.
func (r *RealIndicator) Pulse() error {
	return r.pulse.pulse()
}

// Close releases GPIO resources.
// The line goes back to input with pull-down, matching the Pi boot default,
// so nothing is left driven across a reboot.
func (r *RealIndicator) Close() error {
	r.pulse.stop()

	var errs []error
	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure LED pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED pin: %w", err))
		}
		r.line = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
