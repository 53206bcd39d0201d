package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"

	"github.com/sweeney/step-sensor/internal/logic"
)

// maxLineSize bounds a single message. Longer lines are discarded up to the
// next newline and counted as malformed.
const maxLineSize = 1 << 20

var errLineTooLong = errors.New("line exceeds maximum size")

// Stats counts decoded lines. Safe for concurrent use.
type Stats struct {
	accepted  atomic.Int64
	ignored   atomic.Int64
	malformed atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Accepted  int64
	Ignored   int64
	Malformed int64
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Accepted:  s.accepted.Load(),
		Ignored:   s.ignored.Load(),
		Malformed: s.malformed.Load(),
	}
}

// Decoder frames a byte stream into lines and decodes accelerometer samples.
type Decoder struct {
	stats *Stats
}

// NewDecoder creates a Decoder that records into stats (may be nil).
func NewDecoder(stats *Stats) *Decoder {
	if stats == nil {
		stats = &Stats{}
	}
	return &Decoder{stats: stats}
}

// Stats returns the decoder's counters.
func (d *Decoder) Stats() *Stats {
	return d.stats
}

// Run reads r until EOF, sending each accelerometer sample to out in arrival
// order. Messages of other sensor types are dropped, malformed lines are
// logged and skipped. Sending blocks while out is full.
// Returns nil on EOF, ctx.Err() on cancellation, or the read error.
func (d *Decoder) Run(ctx context.Context, r io.Reader, out chan<- logic.Sample) error {
	br := bufio.NewReaderSize(r, 4096)

	lineCh := make(chan []byte)
	readErrCh := make(chan error, 1)

	// The blocking read runs on its own goroutine so cancellation is noticed
	// even while the source is idle.
	go func() {
		defer close(lineCh)
		for {
			line, err := readLine(br)
			if errors.Is(err, errLineTooLong) {
				d.stats.malformed.Add(1)
				log.Printf("ingest: skipping message: %v", err)
				continue
			}
			if err != nil {
				if err != io.EOF {
					readErrCh <- err
				}
				return
			}
			select {
			case lineCh <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lineCh:
			if !ok {
				select {
				case err := <-readErrCh:
					return err
				default:
					return nil
				}
			}

			sample, ok := d.decode(line)
			if !ok {
				continue
			}
			select {
			case out <- sample:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// readLine returns the next line without its trailing newline. A final line
// with no newline is returned before io.EOF. A line longer than maxLineSize
// is consumed through its newline and reported as errLineTooLong.
func readLine(br *bufio.Reader) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF:
			if tooLong {
				return nil, errLineTooLong
			}
			if len(line) > 0 {
				return line, nil
			}
			return nil, io.EOF
		case err != nil:
			return nil, err
		}

		if tooLong {
			return nil, errLineTooLong
		}
		return bytes.TrimSuffix(line, []byte("\n")), nil
	}
}

func (d *Decoder) decode(line []byte) (logic.Sample, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return logic.Sample{}, false
	}

	sample, err := ParseLine(line)
	switch {
	case err == nil:
		d.stats.accepted.Add(1)
		return sample, true
	case errors.Is(err, ErrNotAccel):
		d.stats.ignored.Add(1)
	default:
		d.stats.malformed.Add(1)
		log.Printf("ingest: skipping message: %v", err)
	}
	return logic.Sample{}, false
}
