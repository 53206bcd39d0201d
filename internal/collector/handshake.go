// Package collector connects to the data collection server: authenticated
// TCP sessions for receiving sensor data and for sending step notifications.
package collector

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// Handshake messages. The server asks for an id, the client answers with its
// user id, and the server acknowledges with the id it accepted.
const (
	msgRequestID    = "ID"
	msgAuthenticate = "ID,%s\n"
	msgAcknowledge  = "ACK"
)

// maxHandshakeMessage bounds a single handshake read.
const maxHandshakeMessage = 256

var (
	ErrUnexpectedRequest = errors.New("collector: expected ID request")
	ErrUnexpectedAck     = errors.New("collector: expected ACK")
	ErrUserMismatch      = errors.New("collector: acknowledged user id does not match")
	ErrAuthTimeout       = errors.New("collector: authentication timed out")
)

// authenticate performs the ID/ACK exchange on conn. Any bytes that arrived
// after the ACK line are returned so the caller can replay them.
func authenticate(conn net.Conn, userID string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
		defer conn.SetDeadline(time.Time{})
	}

	msg, _, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("read id request: %w", err)
	}
	if msg != msgRequestID {
		return nil, fmt.Errorf("%w: received %q", ErrUnexpectedRequest, msg)
	}

	if _, err := fmt.Fprintf(conn, msgAuthenticate, userID); err != nil {
		return nil, fmt.Errorf("send credentials: %w", err)
	}

	msg, rest, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("read acknowledgement: %w", err)
	}
	ackID, ok := parseAck(msg)
	if !ok {
		return nil, fmt.Errorf("%w: received %q", ErrUnexpectedAck, msg)
	}
	if ackID != userID {
		return nil, fmt.Errorf("%w: expected %q, received %q", ErrUserMismatch, userID, ackID)
	}

	return rest, nil
}

// readMessage performs a single read and returns its first line, trimmed,
// plus whatever followed that line.
func readMessage(conn net.Conn) (string, []byte, error) {
	buf := make([]byte, maxHandshakeMessage)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", nil, fmt.Errorf("%w: %v", ErrAuthTimeout, err)
		}
		return "", nil, err
	}
	buf = buf[:n]

	line, rest, _ := bytes.Cut(buf, []byte{'\n'})
	if len(rest) == 0 {
		rest = nil
	}
	return strings.TrimSpace(string(line)), rest, nil
}

// parseAck extracts the user id from "ACK,<id>".
func parseAck(msg string) (string, bool) {
	if !strings.HasPrefix(msg, msgAcknowledge) {
		return "", false
	}
	_, id, found := strings.Cut(msg, ",")
	if !found {
		return "", false
	}
	return strings.TrimSpace(id), true
}
