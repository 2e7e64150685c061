package wire

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cuemby/minicluster/pkg/types"
)

const (
	// HeaderSize is the fixed frame header: one signal byte and a
	// big-endian uint16 payload length
	HeaderSize = 3

	// MaxPayloadSize is the largest payload a header can describe
	MaxPayloadSize = math.MaxUint16
)

// ErrPeerClosed is returned when the peer closes the connection before a
// complete frame arrives. It is a normal client exit path, not a failure.
var ErrPeerClosed = errors.New("peer closed connection before a complete frame")

// Header is the decoded 3-byte frame header
type Header struct {
	Signal types.Signal
	Length uint16
}

// ParseHeader decodes a raw header
func ParseHeader(b [HeaderSize]byte) Header {
	return Header{
		Signal: types.Signal(b[0]),
		Length: uint16(b[1])<<8 | uint16(b[2]),
	}
}

// Bytes encodes the header
func (h Header) Bytes() [HeaderSize]byte {
	return [HeaderSize]byte{byte(h.Signal), byte(h.Length >> 8), byte(h.Length)}
}

// Frame is one request read off a connection. Payload is only populated
// for WORK frames.
type Frame struct {
	Header
	Payload []byte
}

// ReadFrame reads one frame from r. PING and SHUTDOWN frames carry no
// payload and their length bytes are ignored. An unrecognised signal is an
// ErrProtocol; the header is still returned so callers can log it.
//
// If the peer closes before the header or the declared payload is complete,
// ReadFrame returns ErrPeerClosed.
func ReadFrame(r io.Reader) (*Frame, error) {
	var raw [HeaderSize]byte
	if err := readExactly(r, raw[:]); err != nil {
		return nil, err
	}

	frame := &Frame{Header: ParseHeader(raw)}
	switch frame.Signal {
	case types.SignalPing, types.SignalShutdown:
		return frame, nil
	case types.SignalWork:
		frame.Payload = make([]byte, frame.Length)
		if err := readExactly(r, frame.Payload); err != nil {
			return nil, err
		}
		return frame, nil
	default:
		return frame, fmt.Errorf("%w: received invalid signal (first byte %d)", types.ErrProtocol, byte(frame.Signal))
	}
}

// readExactly accumulates reads into buf until it is full. A read that
// returns zero bytes (or EOF) before then means the peer closed.
func readExactly(r io.Reader, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if total == len(buf) {
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: read failed after %d of %d bytes: %w", types.ErrNetwork, total, len(buf), err)
		}
		if n == 0 {
			return ErrPeerClosed
		}
	}
	return nil
}

// EncodeFrame builds a frame for the given signal and payload
func EncodeFrame(signal types.Signal, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, maximum is %d", types.ErrProtocol, len(payload), MaxPayloadSize)
	}
	h := Header{Signal: signal, Length: uint16(len(payload))}.Bytes()

	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, h[:]...)
	return append(buf, payload...), nil
}

// EncodeWorkFrame serializes the workload and wraps it in a WORK frame
func EncodeWorkFrame(w *types.Workload) ([]byte, error) {
	return EncodeFrame(types.SignalWork, MarshalWorkload(w))
}

// WriteFrame writes a complete frame to w
func WriteFrame(w io.Writer, signal types.Signal, payload []byte) error {
	buf, err := EncodeFrame(signal, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: failed to write frame: %w", types.ErrNetwork, err)
	}
	return nil
}
