// Package framing implements the length-prefixed binary protocol used
// between a desktop session and its local daemon: [type:1][length:4 BE][payload].
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Message types, Agent (desktop) -> Daemon.
const (
	TypeInput  byte = 0x01
	TypeResize byte = 0x02
	TypeDetach byte = 0x03
	TypeKill   byte = 0x04
)

// Message types, Daemon -> Agent.
const (
	TypeOutput       byte = 0x81
	TypeBufferReplay byte = 0x82
	TypeExited       byte = 0x83
	TypeError        byte = 0x84
	TypeReady        byte = 0x85
)

// HeaderSize is the fixed [type:1][length:4] header preceding every payload.
const HeaderSize = 5

// MaxPayloadSize bounds a single frame's payload.
const MaxPayloadSize = 16 * 1024 * 1024

// Frame is one fully decoded protocol unit.
type Frame struct {
	Type    byte
	Payload []byte
}

// ReadFrame reads exactly one frame from r.
//
// A clean EOF on the very first header byte returns (nil, nil) — no frame,
// no error. Any other short read is io.ErrUnexpectedEOF. A declared length
// over MaxPayloadSize is rejected before any payload byte is read.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("framing: read header: %w", unexpectedEOF(err))
	}

	typ := header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("framing: payload length %s exceeds max %s",
			humanize.IBytes(uint64(length)), humanize.IBytes(MaxPayloadSize))
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("framing: read payload: %w", unexpectedEOF(err))
		}
	}

	return &Frame{Type: typ, Payload: payload}, nil
}

// WriteFrame writes type+payload as one contiguous frame.
// If w implements an explicit Flush method (e.g. bufio.Writer), callers
// should wrap accordingly; WriteFrame itself performs a single Write call
// per frame so no caller-visible interleaving is possible.
func WriteFrame(w io.Writer, typ byte, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("framing: payload length %s exceeds max %s",
			humanize.IBytes(uint64(len(payload))), humanize.IBytes(MaxPayloadSize))
	}

	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = typ
	binary.BigEndian.PutUint32(buf[1:], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("framing: write frame: %w", err)
	}
	return nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
