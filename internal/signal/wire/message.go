package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pulsewire/pulsewire/internal/rfraw"
	"github.com/pulsewire/pulsewire/internal/signal"
)

// Signal message field ids.
const (
	fieldPackageID   uint16 = 1
	fieldTimestamp   uint16 = 2
	fieldModulation  uint16 = 3
	fieldPayloadKind uint16 = 5

	fieldFreqHz     uint16 = 10
	fieldFreq1Hz    uint16 = 11
	fieldFreq2Hz    uint16 = 12
	fieldSampleRate uint16 = 13

	fieldRSSIdB    uint16 = 20
	fieldSNRdB     uint16 = 21
	fieldNoisedB   uint16 = 22
	fieldRangedB   uint16 = 23
	fieldDepthBits uint16 = 24

	fieldOffset   uint16 = 30
	fieldStartAgo uint16 = 31
	fieldEndAgo   uint16 = 32
	fieldOOKLow   uint16 = 33
	fieldOOKHigh  uint16 = 34
	fieldFSKF1Est uint16 = 35
	fieldFSKF2Est uint16 = 36

	fieldPulses     uint16 = 40
	fieldHexSegment uint16 = 41
)

// Detected message field ids.
const (
	fieldModel      uint16 = 50
	fieldDeviceType uint16 = 51
	fieldDeviceID   uint16 = 52
	fieldProtocol   uint16 = 53
	fieldDataKey    uint16 = 60
	fieldDataValue  uint16 = 61
)

// Status and config field ids.
const (
	fieldNodeID        uint16 = 70
	fieldUptimeSec     uint16 = 71
	fieldMsgsSent      uint16 = 72
	fieldMsgsReceived  uint16 = 73
	fieldSendErrors    uint16 = 74
	fieldReceiveErrors uint16 = 75
	fieldReconnections uint16 = 76
	fieldLastError     uint16 = 77
	fieldConfigKey     uint16 = 90
	fieldConfigValue   uint16 = 91
)

// DeviceField is one decoded key/value datum of a detected device.
type DeviceField struct {
	Key   string
	Value string
}

// Detected reports a device a decoder recognized in a signal.
type Detected struct {
	PackageID  *uint64
	Timestamp  *uint64
	Model      string
	DeviceType string
	DeviceID   string
	Protocol   string
	Fields     []DeviceField
}

// Status is a periodic node health report.
type Status struct {
	Timestamp        *uint64
	NodeID           string
	UptimeSec        uint64
	MessagesSent     uint64
	MessagesReceived uint64
	SendErrors       uint64
	ReceiveErrors    uint64
	Reconnections    uint64
	LastError        string
}

// ConfigParam is one configuration key/value pair.
type ConfigParam struct {
	Key   string
	Value string
}

// Config pushes runtime settings to a node.
type Config struct {
	Timestamp *uint64
	NodeID    string
	Params    []ConfigParam
}

// Envelope is the tagged union shipped in one binary frame. Exactly
// one member is non-nil.
type Envelope struct {
	Signal   *signal.Message
	Detected *Detected
	Status   *Status
	Config   *Config
}

// Kind returns the active member's kind, or ErrUnknownKind when the
// union invariant is broken.
func (e *Envelope) Kind() (Kind, error) {
	var (
		kind Kind
		set  int
	)
	if e.Signal != nil {
		kind, set = KindSignal, set+1
	}
	if e.Detected != nil {
		kind, set = KindDetected, set+1
	}
	if e.Status != nil {
		kind, set = KindStatus, set+1
	}
	if e.Config != nil {
		kind, set = KindConfig, set+1
	}
	if set != 1 {
		return 0, ErrUnknownKind
	}
	return kind, nil
}

// Encode writes the envelope as one frame.
func Encode(w io.Writer, env *Envelope) error {
	kind, err := env.Kind()
	if err != nil {
		return err
	}

	var (
		fields []Field
		head   = Header{Kind: kind}
	)
	switch kind {
	case KindSignal:
		fields, err = signalFields(env.Signal)
		if err != nil {
			return err
		}
		if env.Signal.PackageID != nil {
			head.MessageID = *env.Signal.PackageID
		}
		if env.Signal.Truncated {
			head.Flags |= FlagTruncated
		}
	case KindDetected:
		fields = detectedFields(env.Detected)
		if env.Detected.PackageID != nil {
			head.MessageID = *env.Detected.PackageID
		}
	case KindStatus:
		fields = statusFields(env.Status)
	case KindConfig:
		fields = configFields(env.Config)
	}

	return writeFrame(w, head, fields)
}

// Decode reads one frame and rebuilds the envelope.
func Decode(r io.Reader) (*Envelope, error) {
	head, fields, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	switch head.Kind {
	case KindSignal:
		msg, err := parseSignal(head, fields)
		if err != nil {
			return nil, err
		}
		return &Envelope{Signal: msg}, nil
	case KindDetected:
		det, err := parseDetected(fields)
		if err != nil {
			return nil, err
		}
		return &Envelope{Detected: det}, nil
	case KindStatus:
		st, err := parseStatus(fields)
		if err != nil {
			return nil, err
		}
		return &Envelope{Status: st}, nil
	case KindConfig:
		cfg, err := parseConfig(fields)
		if err != nil {
			return nil, err
		}
		return &Envelope{Config: cfg}, nil
	default:
		return nil, ErrUnknownKind
	}
}

// Marshal renders an envelope to bytes.
func Marshal(env *Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a single-frame buffer.
func Unmarshal(data []byte) (*Envelope, error) {
	return Decode(bytes.NewReader(data))
}

func signalFields(msg *signal.Message) ([]Field, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	fields := make([]Field, 0, 24)
	if msg.PackageID != nil {
		fields = append(fields, newFieldUint64(fieldPackageID, *msg.PackageID))
	}
	if msg.Timestamp != nil {
		fields = append(fields, newFieldUint64(fieldTimestamp, *msg.Timestamp))
	}
	fields = append(fields,
		newFieldUint8(fieldModulation, uint8(msg.Modulation)),
		newFieldUint8(fieldPayloadKind, uint8(msg.Payload.Kind())),
		newFieldFloat64(fieldFreqHz, msg.Meta.FreqHz),
		newFieldUint32(fieldSampleRate, msg.Meta.SampleRate),
	)
	if msg.Meta.Freq1Hz != 0 {
		fields = append(fields, newFieldFloat64(fieldFreq1Hz, msg.Meta.Freq1Hz))
	}
	if msg.Meta.Freq2Hz != 0 {
		fields = append(fields, newFieldFloat64(fieldFreq2Hz, msg.Meta.Freq2Hz))
	}
	if msg.Meta.RSSIdB != 0 {
		fields = append(fields, newFieldFloat64(fieldRSSIdB, msg.Meta.RSSIdB))
	}
	if msg.Meta.SNRdB != 0 {
		fields = append(fields, newFieldFloat64(fieldSNRdB, msg.Meta.SNRdB))
	}
	if msg.Meta.NoisedB != 0 {
		fields = append(fields, newFieldFloat64(fieldNoisedB, msg.Meta.NoisedB))
	}
	if msg.Meta.RangedB != 0 {
		fields = append(fields, newFieldFloat64(fieldRangedB, msg.Meta.RangedB))
	}
	if msg.Meta.DepthBits != 0 {
		fields = append(fields, newFieldUint8(fieldDepthBits, uint8(msg.Meta.DepthBits)))
	}
	if msg.Meta.Offset != 0 {
		fields = append(fields, newFieldUint64(fieldOffset, msg.Meta.Offset))
	}
	if msg.Meta.StartAgo != 0 {
		fields = append(fields, newFieldInt64(fieldStartAgo, int64(msg.Meta.StartAgo)))
	}
	if msg.Meta.EndAgo != 0 {
		fields = append(fields, newFieldInt64(fieldEndAgo, int64(msg.Meta.EndAgo)))
	}
	if msg.Meta.OOKLowEstimate != 0 {
		fields = append(fields, newFieldInt64(fieldOOKLow, int64(msg.Meta.OOKLowEstimate)))
	}
	if msg.Meta.OOKHighEstimate != 0 {
		fields = append(fields, newFieldInt64(fieldOOKHigh, int64(msg.Meta.OOKHighEstimate)))
	}
	if msg.Meta.FSKF1Est != 0 {
		fields = append(fields, newFieldInt64(fieldFSKF1Est, int64(msg.Meta.FSKF1Est)))
	}
	if msg.Meta.FSKF2Est != 0 {
		fields = append(fields, newFieldInt64(fieldFSKF2Est, int64(msg.Meta.FSKF2Est)))
	}

	if train, ok := msg.Payload.Train(); ok && train.Count() > 0 {
		if train.Count() > MaxWirePulses {
			return nil, ErrTooManyPulses
		}
		fields = append(fields, newFieldBytes(fieldPulses, packPulses(train)))
	}
	if segments, ok := payloadSegments(msg.Payload); ok {
		if len(segments) > MaxHexSegments {
			return nil, ErrTooManySegments
		}
		for _, seg := range segments {
			if len(seg) > 2*MaxHexSegmentBytes {
				return nil, ErrSegmentTooLong
			}
			fields = append(fields, newFieldString(fieldHexSegment, seg))
		}
	}
	return fields, nil
}

func payloadSegments(p signal.Payload) ([]string, bool) {
	if hex, ok := p.Hex(); ok {
		return []string{hex}, true
	}
	return p.Segments()
}

// packPulses lays pairs out as consecutive big-endian u32 words.
func packPulses(train *rfraw.PulseTrain) []byte {
	buf := make([]byte, 0, 8*train.Count())
	var word [4]byte
	for i := range train.Pulse {
		binary.BigEndian.PutUint32(word[:], uint32(train.Pulse[i]))
		buf = append(buf, word[:]...)
		binary.BigEndian.PutUint32(word[:], uint32(train.Gap[i]))
		buf = append(buf, word[:]...)
	}
	return buf
}

func parseSignal(head Header, fields []Field) (*signal.Message, error) {
	idx := indexFields(fields)
	msg := &signal.Message{
		Truncated: head.Flags&FlagTruncated != 0,
	}

	if f, ok := idx[fieldPackageID]; ok {
		v, err := f.uint64()
		if err != nil {
			return nil, err
		}
		msg.PackageID = &v
	}
	if f, ok := idx[fieldTimestamp]; ok {
		v, err := f.uint64()
		if err != nil {
			return nil, err
		}
		msg.Timestamp = &v
	}
	if f, ok := idx[fieldModulation]; ok {
		v, err := f.uint8()
		if err != nil {
			return nil, err
		}
		msg.Modulation = signal.Modulation(v)
	}

	var err error
	if msg.Meta, err = parseMetadata(idx); err != nil {
		return nil, err
	}

	kindField, ok := idx[fieldPayloadKind]
	if !ok {
		return nil, ErrVariantMismatch
	}
	rawKind, err := kindField.uint8()
	if err != nil {
		return nil, err
	}

	segments := make([]string, 0, 4)
	for _, f := range fields {
		if f.ID != fieldHexSegment {
			continue
		}
		seg, err := f.str()
		if err != nil {
			return nil, err
		}
		if len(seg) > 2*MaxHexSegmentBytes {
			return nil, ErrSegmentTooLong
		}
		segments = append(segments, seg)
	}
	if len(segments) > MaxHexSegments {
		return nil, ErrTooManySegments
	}

	switch signal.PayloadKind(rawKind) {
	case signal.PayloadExactPulses:
		train, truncated, err := unpackPulses(idx, msg.Meta.SampleRate)
		if err != nil {
			return nil, err
		}
		msg.Payload = signal.ExactPulses(train)
		msg.Truncated = msg.Truncated || truncated
	case signal.PayloadSingleHex:
		if len(segments) != 1 {
			return nil, ErrVariantMismatch
		}
		msg.Payload = signal.SingleHex(segments[0])
	case signal.PayloadMultiHex:
		if len(segments) == 0 {
			return nil, ErrVariantMismatch
		}
		msg.Payload = signal.MultiHex(segments)
	default:
		return nil, ErrVariantMismatch
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func parseMetadata(idx fieldMap) (signal.Metadata, error) {
	var meta signal.Metadata

	readF64 := func(id uint16, dst *float64) error {
		f, ok := idx[id]
		if !ok {
			return nil
		}
		v, err := f.float64()
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	readI64 := func(id uint16, dst *int) error {
		f, ok := idx[id]
		if !ok {
			return nil
		}
		v, err := f.int64()
		if err != nil {
			return err
		}
		*dst = int(v)
		return nil
	}

	if f, ok := idx[fieldSampleRate]; ok {
		v, err := f.uint32()
		if err != nil {
			return meta, err
		}
		meta.SampleRate = v
	}
	if f, ok := idx[fieldDepthBits]; ok {
		v, err := f.uint8()
		if err != nil {
			return meta, err
		}
		meta.DepthBits = int(v)
	}
	if f, ok := idx[fieldOffset]; ok {
		v, err := f.uint64()
		if err != nil {
			return meta, err
		}
		meta.Offset = v
	}

	for _, item := range []struct {
		id  uint16
		dst *float64
	}{
		{fieldFreqHz, &meta.FreqHz},
		{fieldFreq1Hz, &meta.Freq1Hz},
		{fieldFreq2Hz, &meta.Freq2Hz},
		{fieldRSSIdB, &meta.RSSIdB},
		{fieldSNRdB, &meta.SNRdB},
		{fieldNoisedB, &meta.NoisedB},
		{fieldRangedB, &meta.RangedB},
	} {
		if err := readF64(item.id, item.dst); err != nil {
			return meta, err
		}
	}
	for _, item := range []struct {
		id  uint16
		dst *int
	}{
		{fieldStartAgo, &meta.StartAgo},
		{fieldEndAgo, &meta.EndAgo},
		{fieldOOKLow, &meta.OOKLowEstimate},
		{fieldOOKHigh, &meta.OOKHighEstimate},
		{fieldFSKF1Est, &meta.FSKF1Est},
		{fieldFSKF2Est, &meta.FSKF2Est},
	} {
		if err := readI64(item.id, item.dst); err != nil {
			return meta, err
		}
	}
	return meta, nil
}

func unpackPulses(idx fieldMap, sampleRate uint32) (*rfraw.PulseTrain, bool, error) {
	train := rfraw.NewPulseTrain(sampleRate)
	f, ok := idx[fieldPulses]
	if !ok {
		return train, false, nil
	}
	buf, err := f.raw()
	if err != nil {
		return nil, false, err
	}
	if len(buf)%8 != 0 {
		return nil, false, ErrInvalidLength
	}
	pairs := len(buf) / 8
	if pairs > MaxWirePulses {
		return nil, false, ErrTooManyPulses
	}
	truncated := false
	for i := 0; i < pairs; i++ {
		pulse := int(binary.BigEndian.Uint32(buf[8*i : 8*i+4]))
		gap := int(binary.BigEndian.Uint32(buf[8*i+4 : 8*i+8]))
		if !train.Append(pulse, gap) {
			truncated = true
			break
		}
	}
	return train, truncated, nil
}

func detectedFields(det *Detected) []Field {
	fields := make([]Field, 0, 6+2*len(det.Fields))
	if det.PackageID != nil {
		fields = append(fields, newFieldUint64(fieldPackageID, *det.PackageID))
	}
	if det.Timestamp != nil {
		fields = append(fields, newFieldUint64(fieldTimestamp, *det.Timestamp))
	}
	fields = append(fields, newFieldString(fieldModel, det.Model))
	if det.DeviceType != "" {
		fields = append(fields, newFieldString(fieldDeviceType, det.DeviceType))
	}
	if det.DeviceID != "" {
		fields = append(fields, newFieldString(fieldDeviceID, det.DeviceID))
	}
	if det.Protocol != "" {
		fields = append(fields, newFieldString(fieldProtocol, det.Protocol))
	}
	for _, kv := range det.Fields {
		fields = append(fields,
			newFieldString(fieldDataKey, kv.Key),
			newFieldString(fieldDataValue, kv.Value),
		)
	}
	return fields
}

func parseDetected(fields []Field) (*Detected, error) {
	idx := indexFields(fields)
	det := &Detected{}

	if f, ok := idx[fieldPackageID]; ok {
		v, err := f.uint64()
		if err != nil {
			return nil, err
		}
		det.PackageID = &v
	}
	if f, ok := idx[fieldTimestamp]; ok {
		v, err := f.uint64()
		if err != nil {
			return nil, err
		}
		det.Timestamp = &v
	}
	for _, item := range []struct {
		id  uint16
		dst *string
	}{
		{fieldModel, &det.Model},
		{fieldDeviceType, &det.DeviceType},
		{fieldDeviceID, &det.DeviceID},
		{fieldProtocol, &det.Protocol},
	} {
		if f, ok := idx[item.id]; ok {
			v, err := f.str()
			if err != nil {
				return nil, err
			}
			*item.dst = v
		}
	}

	// Data fields alternate key/value in wire order.
	var pendingKey *string
	for _, f := range fields {
		switch f.ID {
		case fieldDataKey:
			v, err := f.str()
			if err != nil {
				return nil, err
			}
			pendingKey = &v
		case fieldDataValue:
			if pendingKey == nil {
				return nil, ErrVariantMismatch
			}
			v, err := f.str()
			if err != nil {
				return nil, err
			}
			det.Fields = append(det.Fields, DeviceField{Key: *pendingKey, Value: v})
			pendingKey = nil
		}
	}
	return det, nil
}

func statusFields(st *Status) []Field {
	fields := make([]Field, 0, 9)
	if st.Timestamp != nil {
		fields = append(fields, newFieldUint64(fieldTimestamp, *st.Timestamp))
	}
	fields = append(fields,
		newFieldString(fieldNodeID, st.NodeID),
		newFieldUint64(fieldUptimeSec, st.UptimeSec),
		newFieldUint64(fieldMsgsSent, st.MessagesSent),
		newFieldUint64(fieldMsgsReceived, st.MessagesReceived),
		newFieldUint64(fieldSendErrors, st.SendErrors),
		newFieldUint64(fieldReceiveErrors, st.ReceiveErrors),
		newFieldUint64(fieldReconnections, st.Reconnections),
	)
	if st.LastError != "" {
		fields = append(fields, newFieldString(fieldLastError, st.LastError))
	}
	return fields
}

func parseStatus(fields []Field) (*Status, error) {
	idx := indexFields(fields)
	st := &Status{}

	if f, ok := idx[fieldTimestamp]; ok {
		v, err := f.uint64()
		if err != nil {
			return nil, err
		}
		st.Timestamp = &v
	}
	for _, item := range []struct {
		id  uint16
		dst *string
	}{
		{fieldNodeID, &st.NodeID},
		{fieldLastError, &st.LastError},
	} {
		if f, ok := idx[item.id]; ok {
			v, err := f.str()
			if err != nil {
				return nil, err
			}
			*item.dst = v
		}
	}
	for _, item := range []struct {
		id  uint16
		dst *uint64
	}{
		{fieldUptimeSec, &st.UptimeSec},
		{fieldMsgsSent, &st.MessagesSent},
		{fieldMsgsReceived, &st.MessagesReceived},
		{fieldSendErrors, &st.SendErrors},
		{fieldReceiveErrors, &st.ReceiveErrors},
		{fieldReconnections, &st.Reconnections},
	} {
		if f, ok := idx[item.id]; ok {
			v, err := f.uint64()
			if err != nil {
				return nil, err
			}
			*item.dst = v
		}
	}
	return st, nil
}

func configFields(cfg *Config) []Field {
	fields := make([]Field, 0, 2+2*len(cfg.Params))
	if cfg.Timestamp != nil {
		fields = append(fields, newFieldUint64(fieldTimestamp, *cfg.Timestamp))
	}
	fields = append(fields, newFieldString(fieldNodeID, cfg.NodeID))
	for _, p := range cfg.Params {
		fields = append(fields,
			newFieldString(fieldConfigKey, p.Key),
			newFieldString(fieldConfigValue, p.Value),
		)
	}
	return fields
}

func parseConfig(fields []Field) (*Config, error) {
	idx := indexFields(fields)
	cfg := &Config{}

	if f, ok := idx[fieldTimestamp]; ok {
		v, err := f.uint64()
		if err != nil {
			return nil, err
		}
		cfg.Timestamp = &v
	}
	if f, ok := idx[fieldNodeID]; ok {
		v, err := f.str()
		if err != nil {
			return nil, err
		}
		cfg.NodeID = v
	}

	var pendingKey *string
	for _, f := range fields {
		switch f.ID {
		case fieldConfigKey:
			v, err := f.str()
			if err != nil {
				return nil, err
			}
			pendingKey = &v
		case fieldConfigValue:
			if pendingKey == nil {
				return nil, ErrVariantMismatch
			}
			v, err := f.str()
			if err != nil {
				return nil, err
			}
			cfg.Params = append(cfg.Params, ConfigParam{Key: *pendingKey, Value: v})
			pendingKey = nil
		}
	}
	return cfg, nil
}
