package mqtt

import "log"

// bufferedMsg is a serialized message waiting for the broker to come back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds the most recent messages while disconnected, dropping the
// oldest once full. Callers synchronize.
type ringBuffer struct {
	msgs    []bufferedMsg
	start   int // oldest message
	count   int
	dropped int // since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{msgs: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.msgs)
	if r.count < size {
		r.msgs[(r.start+r.count)%size] = msg
		r.count++
		return
	}

	if r.dropped == 0 {
		log.Printf("mqtt: buffer full (%d messages), dropping oldest", size)
	}
	r.dropped++
	r.msgs[r.start] = msg
	r.start = (r.start + 1) % size
}

// drainAll returns buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	out := make([]bufferedMsg, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.msgs[(r.start+i)%len(r.msgs)])
	}
	if r.dropped > 0 {
		log.Printf("mqtt: %d buffered messages were dropped while disconnected", r.dropped)
	}

	r.start, r.count, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
