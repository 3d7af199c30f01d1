package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pulsewire/pulsewire/internal/rfraw"
	"github.com/pulsewire/pulsewire/internal/signal"
)

func exactMessage(t *testing.T, pairs int) *signal.Message {
	t.Helper()
	train := rfraw.NewPulseTrain(250000)
	for i := 0; i < pairs; i++ {
		train.Append(500+i, 1000)
	}
	msg, err := signal.Build(train, signal.ModulationOOK, signal.Metadata{
		FreqHz: 433920000,
		RSSIdB: -6.5,
	}, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return msg
}

func TestSignalRoundTripExactPulses(t *testing.T) {
	msg := exactMessage(t, 20)
	id := uint64(99)
	ts := uint64(1700000000)
	msg.PackageID = &id
	msg.Timestamp = &ts

	data, err := Marshal(&Envelope{Signal: msg})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := env.Signal
	if got == nil {
		t.Fatalf("expected signal member")
	}
	if got.PackageID == nil || *got.PackageID != id {
		t.Fatalf("package id lost")
	}
	if got.Timestamp == nil || *got.Timestamp != ts {
		t.Fatalf("timestamp lost")
	}
	if got.Modulation != signal.ModulationOOK {
		t.Fatalf("modulation %v", got.Modulation)
	}
	if got.Meta.FreqHz != 433920000 || got.Meta.RSSIdB != -6.5 {
		t.Fatalf("metadata mismatch: %+v", got.Meta)
	}
	want, _ := msg.Payload.Train()
	train, err := got.ResolveTrain()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !train.Equal(want) {
		t.Fatalf("pulses not restored verbatim")
	}
}

func TestSignalRoundTripHexVariants(t *testing.T) {
	single := &signal.Message{
		Modulation: signal.ModulationOOK,
		Meta:       signal.Metadata{SampleRate: 250000},
		Payload:    signal.SingleHex("AAB1022570FFFF8155"),
	}
	data, err := Marshal(&Envelope{Signal: single})
	if err != nil {
		t.Fatalf("marshal single: %v", err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal single: %v", err)
	}
	if env.Signal.Payload.Kind() != signal.PayloadSingleHex {
		t.Fatalf("kind %v", env.Signal.Payload.Kind())
	}
	hex, _ := env.Signal.Payload.Hex()
	if hex != "AAB1022570FFFF8155" {
		t.Fatalf("hex %q", hex)
	}

	multi := &signal.Message{
		Modulation: signal.ModulationFSK,
		Meta:       signal.Metadata{SampleRate: 250000},
		Payload:    signal.MultiHex([]string{"AAB10201F48155", "AAB10201F49055", "AAB10201F48155"}),
	}
	data, err = Marshal(&Envelope{Signal: multi})
	if err != nil {
		t.Fatalf("marshal multi: %v", err)
	}
	env, err = Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal multi: %v", err)
	}
	segments, ok := env.Signal.Payload.Segments()
	if !ok || len(segments) != 3 {
		t.Fatalf("segments %v", segments)
	}
	if segments[1] != "AAB10201F49055" {
		t.Fatalf("segment order not preserved: %v", segments)
	}
}

func TestSignalTruncatedFlagSurvives(t *testing.T) {
	msg := exactMessage(t, 20)
	msg.Truncated = true
	data, err := Marshal(&Envelope{Signal: msg})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !env.Signal.Truncated {
		t.Fatalf("truncated flag lost")
	}
}

func TestEncodeEnforcesSegmentConstraints(t *testing.T) {
	long := &signal.Message{
		Modulation: signal.ModulationOOK,
		Meta:       signal.Metadata{SampleRate: 250000},
		Payload:    signal.SingleHex(strings.Repeat("AA", MaxHexSegmentBytes+1)),
	}
	if _, err := Marshal(&Envelope{Signal: long}); !errors.Is(err, ErrSegmentTooLong) {
		t.Fatalf("expected ErrSegmentTooLong, got %v", err)
	}

	segments := make([]string, MaxHexSegments+1)
	for i := range segments {
		segments[i] = "AAB10201F48155"
	}
	many := &signal.Message{
		Modulation: signal.ModulationOOK,
		Meta:       signal.Metadata{SampleRate: 250000},
		Payload:    signal.MultiHex(segments),
	}
	if _, err := Marshal(&Envelope{Signal: many}); !errors.Is(err, ErrTooManySegments) {
		t.Fatalf("expected ErrTooManySegments, got %v", err)
	}
}

func TestDecodeRejectsCorruptFrames(t *testing.T) {
	data, err := Marshal(&Envelope{Signal: exactMessage(t, 20)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	bad := append([]byte(nil), data...)
	bad[0] = 0
	if _, err := Unmarshal(bad); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}

	bad = append([]byte(nil), data...)
	bad[5] = 9
	if _, err := Unmarshal(bad); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}

	if _, err := Unmarshal(data[:len(data)-3]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestEnvelopeUnionInvariant(t *testing.T) {
	if _, err := Marshal(&Envelope{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("empty envelope: %v", err)
	}
	both := &Envelope{
		Signal:   exactMessage(t, 20),
		Detected: &Detected{Model: "x"},
	}
	if _, err := Marshal(both); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("double envelope: %v", err)
	}
}

func TestDetectedRoundTrip(t *testing.T) {
	id := uint64(12)
	det := &Detected{
		PackageID: &id,
		Model:     "Acurite-606TX",
		Protocol:  "acurite",
		Fields: []DeviceField{
			{Key: "temperature_C", Value: "21.4"},
			{Key: "battery_ok", Value: "1"},
		},
	}
	data, err := Marshal(&Envelope{Detected: det})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := env.Detected
	if got == nil || got.Model != det.Model || got.Protocol != det.Protocol {
		t.Fatalf("detected mismatch: %+v", got)
	}
	if len(got.Fields) != 2 || got.Fields[0].Key != "temperature_C" || got.Fields[1].Value != "1" {
		t.Fatalf("data fields mismatch: %+v", got.Fields)
	}
}

func TestStatusAndConfigRoundTrip(t *testing.T) {
	st := &Status{
		NodeID:           "decode-1",
		UptimeSec:        3600,
		MessagesReceived: 42,
		Reconnections:    2,
		LastError:        "channel closed",
	}
	data, err := Marshal(&Envelope{Status: st})
	if err != nil {
		t.Fatalf("marshal status: %v", err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if *env.Status != *st {
		t.Fatalf("status mismatch: %+v", env.Status)
	}

	cfg := &Config{
		NodeID: "capture-1",
		Params: []ConfigParam{{Key: "rate_Hz", Value: "250000"}},
	}
	data, err = Marshal(&Envelope{Config: cfg})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	env, err = Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if env.Config.NodeID != "capture-1" || len(env.Config.Params) != 1 {
		t.Fatalf("config mismatch: %+v", env.Config)
	}
}

func TestEncodeDecodeStreamsMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &Envelope{Signal: exactMessage(t, 20)}); err != nil {
		t.Fatalf("encode 1: %v", err)
	}
	if err := Encode(&buf, &Envelope{Status: &Status{NodeID: "n"}}); err != nil {
		t.Fatalf("encode 2: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	first, err := Decode(r)
	if err != nil {
		t.Fatalf("decode 1: %v", err)
	}
	if first.Signal == nil {
		t.Fatalf("first frame kind")
	}
	second, err := Decode(r)
	if err != nil {
		t.Fatalf("decode 2: %v", err)
	}
	if second.Status == nil || second.Status.NodeID != "n" {
		t.Fatalf("second frame kind")
	}
}
