// Package frame reads and writes the fixed 32-byte header that precedes
// every exchange payload on a mesh connection.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	FixedHeaderLen uint16 = 32
	Magic          uint32 = 0xE1151001
	Version        uint16 = 1
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrHeaderLenTooSmall  = errors.New("frame: header_len smaller than fixed header")
	ErrExtensionTooLarge  = errors.New("frame: header extension too large")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrBadMagic           = errors.New("frame: bad magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
)

// Header is the fixed wire header. Step and Kind identify the exchange round;
// Origin is the sending rank.
type Header struct {
	Magic      uint32
	Version    uint16
	HeaderLen  uint16
	Step       uint64
	Kind       uint32
	Origin     uint32
	PayloadLen uint64
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxExtensionBytes uint64
	MaxPayloadBytes   uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxExtensionBytes: 4 * 1024,
		MaxPayloadBytes:   64 * 1024 * 1024,
	}
}

// ReadFrame reads one frame. Header bytes past the fixed header are reserved
// and skipped.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.Magic != Magic {
		return Frame{}, fmt.Errorf("%w: %#x", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.HeaderLen < FixedHeaderLen {
		return Frame{}, ErrHeaderLenTooSmall
	}

	extLen := uint64(h.HeaderLen - FixedHeaderLen)
	if extLen > limits.MaxExtensionBytes {
		return Frame{}, ErrExtensionTooLarge
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	if extLen > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extLen)); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame fills in Magic, Version, HeaderLen and PayloadLen.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	payloadLen := uint64(len(f.Payload))
	if payloadLen > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.HeaderLen = FixedHeaderLen
	h.PayloadLen = payloadLen

	if _, err := w.Write(EncodeHeader(h)); err != nil {
		return err
	}
	if payloadLen > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.Step)
	binary.BigEndian.PutUint32(buf[16:20], h.Kind)
	binary.BigEndian.PutUint32(buf[20:24], h.Origin)
	binary.BigEndian.PutUint64(buf[24:32], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:  binary.BigEndian.Uint16(b[6:8]),
		Step:       binary.BigEndian.Uint64(b[8:16]),
		Kind:       binary.BigEndian.Uint32(b[16:20]),
		Origin:     binary.BigEndian.Uint32(b[20:24]),
		PayloadLen: binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
