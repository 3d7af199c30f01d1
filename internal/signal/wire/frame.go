package wire

import (
	"encoding/binary"
	"io"
)

// ContentTypeBinary labels the binary wire form on the broker.
const ContentTypeBinary = "application/octet-stream"

const (
	// Magic spells "RFPW".
	Magic      uint32 = 0x52465057
	Version    uint16 = 1
	HeaderSize uint16 = 32
)

// Kind discriminates the message union in the frame header.
type Kind uint32

const (
	KindSignal Kind = iota + 1
	KindDetected
	KindStatus
	KindConfig
)

// Payload size constraints enforced on both encode and decode.
const (
	MaxHexSegmentBytes = 512
	MaxHexSegments     = 32
	MaxWirePulses      = 65535

	// Generous bound: the largest legal signal payload is well under
	// a megabyte (65535 pulse pairs at 8 bytes each plus metadata).
	maxPayloadLen = 1 << 20
)

// Header is the fixed 32-byte big-endian frame prefix.
type Header struct {
	Magic      uint32
	Version    uint16
	HeaderLen  uint16
	MessageID  uint64
	Kind       Kind
	Flags      uint32
	PayloadLen uint64
}

// FlagTruncated marks a message whose pulse data was cut at capacity
// before transmission.
const FlagTruncated uint32 = 1 << 0

func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.MessageID)
	binary.BigEndian.PutUint32(buf[16:20], uint32(h.Kind))
	binary.BigEndian.PutUint32(buf[20:24], h.Flags)
	binary.BigEndian.PutUint64(buf[24:32], h.PayloadLen)
	return buf
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) != int(HeaderSize) {
		return Header{}, ErrTruncated
	}
	h := Header{
		Magic:      binary.BigEndian.Uint32(buf[0:4]),
		Version:    binary.BigEndian.Uint16(buf[4:6]),
		HeaderLen:  binary.BigEndian.Uint16(buf[6:8]),
		MessageID:  binary.BigEndian.Uint64(buf[8:16]),
		Kind:       Kind(binary.BigEndian.Uint32(buf[16:20])),
		Flags:      binary.BigEndian.Uint32(buf[20:24]),
		PayloadLen: binary.BigEndian.Uint64(buf[24:32]),
	}
	if h.Magic != Magic {
		return Header{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Header{}, ErrUnsupportedVersion
	}
	if h.HeaderLen != HeaderSize {
		return Header{}, ErrInvalidHeaderLen
	}
	return h, nil
}

func writeFrame(w io.Writer, h Header, fields []Field) error {
	payloadLen, err := payloadLength(fields)
	if err != nil {
		return err
	}
	if payloadLen > maxPayloadLen {
		return ErrPayloadTooLarge
	}
	h.Magic = Magic
	h.Version = Version
	h.HeaderLen = HeaderSize
	h.PayloadLen = payloadLen

	if _, err := w.Write(encodeHeader(h)); err != nil {
		return err
	}
	for _, field := range fields {
		if err := writeField(w, field); err != nil {
			return err
		}
	}
	return nil
}

func readFrame(r io.Reader) (Header, []Field, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return Header{}, nil, ErrTruncated
	}
	h, err := parseHeader(headerBytes)
	if err != nil {
		return Header{}, nil, err
	}
	if h.PayloadLen > maxPayloadLen {
		return Header{}, nil, ErrPayloadTooLarge
	}
	if h.PayloadLen == 0 {
		return h, nil, nil
	}
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, ErrTruncated
	}
	fields, err := parseFields(payload)
	if err != nil {
		return Header{}, nil, err
	}
	return h, fields, nil
}
