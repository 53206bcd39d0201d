package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var errClosed = errors.New("indicator closed")

// pulser drives a line high for a fixed duration per pulse.
// A pulse that arrives while the line is high extends it.
type pulser struct {
	set      func(value int) error
	duration time.Duration

	mu     sync.Mutex
	gen    uint64 // identifies the latest pulse; stale timers see a mismatch
	timer  *time.Timer
	closed bool
}

func newPulser(set func(int) error, duration time.Duration) *pulser {
	if duration <= 0 {
		duration = PulseDuration
	}
	return &pulser{set: set, duration: duration}
}

func (p *pulser) pulse() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errClosed
	}
	if err := p.set(1); err != nil {
		return fmt.Errorf("set LED pin: %w", err)
	}

	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.duration, func() { p.off(gen) })
	return nil
}

// off drives the line low unless a later pulse has superseded gen.
func (p *pulser) off(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || gen != p.gen {
		return
	}
	p.set(0)
}

// stop cancels any pending off and rejects further pulses.
func (p *pulser) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
	}
}
