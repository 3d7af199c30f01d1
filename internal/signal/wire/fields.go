package wire

import (
	"encoding/binary"
	"io"
	"math"
)

// FieldType identifies the value encoding of a TLV field.
type FieldType uint8

const (
	FieldUint8 FieldType = iota + 1
	FieldUint16
	FieldUint32
	FieldUint64
	FieldInt64
	FieldFloat64
	FieldString
	FieldBytes
)

// Field is one TLV entry: u16 id, u8 type, u32 length, value.
type Field struct {
	ID    uint16
	Type  FieldType
	Value []byte
}

const fieldHeaderSize = 2 + 1 + 4

func payloadLength(fields []Field) (uint64, error) {
	var total uint64
	for _, field := range fields {
		if len(field.Value) > int(^uint32(0)) {
			return 0, ErrInvalidLength
		}
		total += uint64(fieldHeaderSize + len(field.Value))
	}
	return total, nil
}

func writeField(w io.Writer, field Field) error {
	buf := make([]byte, fieldHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], field.ID)
	buf[2] = byte(field.Type)
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(field.Value)))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(field.Value) == 0 {
		return nil
	}
	_, err := w.Write(field.Value)
	return err
}

func parseFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0, 8)
	for offset := 0; offset < len(payload); {
		if len(payload)-offset < fieldHeaderSize {
			return nil, ErrTruncated
		}
		id := binary.BigEndian.Uint16(payload[offset : offset+2])
		ft := FieldType(payload[offset+2])
		length := binary.BigEndian.Uint32(payload[offset+3 : offset+7])
		offset += fieldHeaderSize
		if length > uint32(len(payload)-offset) {
			return nil, ErrInvalidLength
		}
		end := offset + int(length)
		value := make([]byte, length)
		copy(value, payload[offset:end])
		fields = append(fields, Field{ID: id, Type: ft, Value: value})
		offset = end
	}
	return fields, nil
}

func newFieldUint8(id uint16, v uint8) Field {
	return Field{ID: id, Type: FieldUint8, Value: []byte{v}}
}

func newFieldUint32(id uint16, v uint32) Field {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return Field{ID: id, Type: FieldUint32, Value: buf}
}

func newFieldUint64(id uint16, v uint64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return Field{ID: id, Type: FieldUint64, Value: buf}
}

func newFieldInt64(id uint16, v int64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return Field{ID: id, Type: FieldInt64, Value: buf}
}

func newFieldFloat64(id uint16, v float64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return Field{ID: id, Type: FieldFloat64, Value: buf}
}

func newFieldString(id uint16, v string) Field {
	return Field{ID: id, Type: FieldString, Value: []byte(v)}
}

func newFieldBytes(id uint16, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{ID: id, Type: FieldBytes, Value: buf}
}

func (f Field) uint8() (uint8, error) {
	if f.Type != FieldUint8 {
		return 0, ErrFieldTypeMismatch
	}
	if len(f.Value) != 1 {
		return 0, ErrInvalidLength
	}
	return f.Value[0], nil
}

func (f Field) uint32() (uint32, error) {
	if f.Type != FieldUint32 {
		return 0, ErrFieldTypeMismatch
	}
	if len(f.Value) != 4 {
		return 0, ErrInvalidLength
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

func (f Field) uint64() (uint64, error) {
	if f.Type != FieldUint64 {
		return 0, ErrFieldTypeMismatch
	}
	if len(f.Value) != 8 {
		return 0, ErrInvalidLength
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func (f Field) int64() (int64, error) {
	if f.Type != FieldInt64 {
		return 0, ErrFieldTypeMismatch
	}
	if len(f.Value) != 8 {
		return 0, ErrInvalidLength
	}
	return int64(binary.BigEndian.Uint64(f.Value)), nil
}

func (f Field) float64() (float64, error) {
	if f.Type != FieldFloat64 {
		return 0, ErrFieldTypeMismatch
	}
	if len(f.Value) != 8 {
		return 0, ErrInvalidLength
	}
	return math.Float64frombits(binary.BigEndian.Uint64(f.Value)), nil
}

func (f Field) str() (string, error) {
	if f.Type != FieldString {
		return "", ErrFieldTypeMismatch
	}
	return string(f.Value), nil
}

func (f Field) raw() ([]byte, error) {
	if f.Type != FieldBytes {
		return nil, ErrFieldTypeMismatch
	}
	return f.Value, nil
}

// fieldMap indexes single-occurrence fields; repeated fields must be
// walked in order instead.
type fieldMap map[uint16]Field

func indexFields(fields []Field) fieldMap {
	m := make(fieldMap, len(fields))
	for _, f := range fields {
		if _, dup := m[f.ID]; !dup {
			m[f.ID] = f
		}
	}
	return m
}
