package signal

import (
	"strings"

	"github.com/pulsewire/pulsewire/internal/rfraw"
)

// Modulation identifies the keying scheme of a captured burst.
type Modulation uint8

const (
	ModulationUnknown Modulation = iota
	ModulationOOK
	ModulationFSK
	ModulationASK
)

func (m Modulation) String() string {
	switch m {
	case ModulationOOK:
		return "OOK"
	case ModulationFSK:
		return "FSK"
	case ModulationASK:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// ParseModulation maps the wire spelling back to a Modulation.
func ParseModulation(s string) Modulation {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OOK":
		return ModulationOOK
	case "FSK":
		return ModulationFSK
	case "ASK":
		return ModulationASK
	default:
		return ModulationUnknown
	}
}

// Metadata carries every scalar field of a capture independent of the
// payload variant. Zero values mean "not reported" except SampleRate,
// which is required whenever pulses are present.
type Metadata struct {
	SampleRate uint32

	FreqHz  float64
	Freq1Hz float64
	Freq2Hz float64

	RSSIdB  float64
	SNRdB   float64
	NoisedB float64
	RangedB float64

	DepthBits int

	OOKLowEstimate  int
	OOKHighEstimate int
	FSKF1Est        int
	FSKF2Est        int

	Offset   uint64
	StartAgo int
	EndAgo   int
}

// PayloadKind discriminates the payload union.
type PayloadKind uint8

const (
	PayloadExactPulses PayloadKind = iota + 1
	PayloadSingleHex
	PayloadMultiHex
)

// Payload is a tagged union: exactly one of the three encodings is
// active. Construct through ExactPulses, SingleHex, or MultiHex so the
// kind always matches the populated field.
type Payload struct {
	kind     PayloadKind
	train    *rfraw.PulseTrain
	segments []string
}

// ExactPulses wraps a verbatim pulse train. A nil train is treated as
// an empty one, which is the well-formed placeholder for no capture.
func ExactPulses(train *rfraw.PulseTrain) Payload {
	if train == nil {
		train = rfraw.NewPulseTrain(0)
	}
	return Payload{kind: PayloadExactPulses, train: train}
}

// SingleHex wraps one RFRAW hex record string.
func SingleHex(hex string) Payload {
	return Payload{kind: PayloadSingleHex, segments: []string{hex}}
}

// MultiHex wraps ordered RFRAW hex segments.
func MultiHex(segments []string) Payload {
	s := make([]string, len(segments))
	copy(s, segments)
	return Payload{kind: PayloadMultiHex, segments: s}
}

func (p Payload) Kind() PayloadKind { return p.kind }

// Train returns the exact pulse train; ok is false for hex variants.
func (p Payload) Train() (*rfraw.PulseTrain, bool) {
	if p.kind != PayloadExactPulses {
		return nil, false
	}
	return p.train, true
}

// Hex returns the single hex record; ok is false otherwise.
func (p Payload) Hex() (string, bool) {
	if p.kind != PayloadSingleHex {
		return "", false
	}
	return p.segments[0], true
}

// Segments returns the ordered hex segments of a multi-hex payload.
func (p Payload) Segments() ([]string, bool) {
	if p.kind != PayloadMultiHex {
		return nil, false
	}
	return p.segments, true
}

// HexJoined renders any hex variant as the '+'-joined wire text.
func (p Payload) HexJoined() (string, bool) {
	switch p.kind {
	case PayloadSingleHex, PayloadMultiHex:
		return strings.Join(p.segments, "+"), true
	default:
		return "", false
	}
}

// Empty reports whether the payload carries no signal data.
func (p Payload) Empty() bool {
	switch p.kind {
	case PayloadExactPulses:
		return p.train.Count() == 0
	case PayloadSingleHex, PayloadMultiHex:
		return len(p.segments) == 0
	default:
		return true
	}
}

// Validate checks the union invariant.
func (p Payload) Validate() error {
	switch p.kind {
	case PayloadExactPulses:
		if p.train == nil || len(p.segments) != 0 {
			return ErrInvalidVariant
		}
	case PayloadSingleHex:
		if p.train != nil || len(p.segments) != 1 {
			return ErrInvalidVariant
		}
	case PayloadMultiHex:
		if p.train != nil || len(p.segments) == 0 {
			return ErrInvalidVariant
		}
	default:
		return ErrInvalidVariant
	}
	return nil
}

// Message is one captured burst ready for the wire. Messages are built
// once and never mutated; rebuild instead of editing in place.
type Message struct {
	PackageID  *uint64
	Timestamp  *uint64
	Modulation Modulation
	Meta       Metadata
	Payload    Payload

	// Truncated is set on the receive side when the decoded pulse
	// count exceeded local capacity.
	Truncated bool
}

// Validate checks the structural invariants of a message.
func (m *Message) Validate() error {
	if m == nil {
		return ErrInvalidMessage
	}
	if err := m.Payload.Validate(); err != nil {
		return err
	}
	if !m.Payload.Empty() && m.Meta.SampleRate == 0 {
		return ErrSampleRateMissing
	}
	return nil
}

// ResolveTrain reconstructs a pulse train from the payload. Exact
// pulses are returned verbatim and are never refined by hex data; hex
// segments are decoded in order. A capacity overflow truncates and
// returns the partial train with rfraw.ErrTruncated.
func (m *Message) ResolveTrain() (*rfraw.PulseTrain, error) {
	if err := m.Payload.Validate(); err != nil {
		return nil, err
	}
	switch m.Payload.kind {
	case PayloadExactPulses:
		return m.Payload.train, nil
	case PayloadSingleHex, PayloadMultiHex:
		train := rfraw.NewPulseTrain(rfraw.DecodedSampleRate)
		for _, seg := range m.Payload.segments {
			if err := rfraw.Decode(train, seg); err != nil {
				return train, err
			}
		}
		return train, nil
	default:
		return nil, ErrInvalidVariant
	}
}
