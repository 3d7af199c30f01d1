package signal

import (
	"errors"
	"strings"
	"testing"

	"github.com/pulsewire/pulsewire/internal/rfraw"
)

func sampleTrain(rate uint32, pairs int) *rfraw.PulseTrain {
	train := rfraw.NewPulseTrain(rate)
	for i := 0; i < pairs; i++ {
		train.Append(500+10*i, 1000)
	}
	return train
}

func TestBuildPrefersExactPulses(t *testing.T) {
	train := sampleTrain(250000, MinExactPulses)
	msg, err := Build(train, ModulationOOK, Metadata{}, "AAB1022570FFFF8155")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.Payload.Kind() != PayloadExactPulses {
		t.Fatalf("expected exact payload at the cutoff, got %v", msg.Payload.Kind())
	}
	got, ok := msg.Payload.Train()
	if !ok || !got.Equal(train) {
		t.Fatalf("payload train mismatch")
	}
	if msg.Meta.SampleRate != 250000 {
		t.Fatalf("sample rate not taken from train: %d", msg.Meta.SampleRate)
	}
}

func TestBuildFallsBackToHex(t *testing.T) {
	short := sampleTrain(250000, 4)

	msg, err := Build(short, ModulationOOK, Metadata{}, "AAB1022570FFFF8155")
	if err != nil {
		t.Fatalf("build single hex: %v", err)
	}
	if msg.Payload.Kind() != PayloadSingleHex {
		t.Fatalf("expected single hex, got %v", msg.Payload.Kind())
	}

	msg, err = Build(short, ModulationOOK, Metadata{}, "AAB10201F48155+AAB10201F49055")
	if err != nil {
		t.Fatalf("build multi hex: %v", err)
	}
	segments, ok := msg.Payload.Segments()
	if !ok || len(segments) != 2 {
		t.Fatalf("expected 2 hex segments, got %v", segments)
	}
}

func TestBuildRejectsShortTrainWithoutHex(t *testing.T) {
	for _, n := range []int{1, 8, MinExactPulses - 1} {
		_, err := Build(sampleTrain(250000, n), ModulationOOK, Metadata{}, "")
		if !errors.Is(err, ErrBelowMinimumLength) {
			t.Fatalf("count %d: expected ErrBelowMinimumLength, got %v", n, err)
		}
	}
}

func TestBuildEmptyTrainIsPlaceholder(t *testing.T) {
	msg, err := Build(nil, ModulationOOK, Metadata{}, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.Payload.Kind() != PayloadExactPulses || !msg.Payload.Empty() {
		t.Fatalf("expected empty exact placeholder")
	}
}

func TestJSONRoundTripExactPulses(t *testing.T) {
	train := sampleTrain(250000, 20)
	id := uint64(7)
	msg, err := Build(train, ModulationFSK, Metadata{
		FreqHz:  433920000,
		Freq1Hz: 433900000,
		RSSIdB:  -4.5,
		SNRdB:   12.25,
	}, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	msg.PackageID = &id

	data, err := EncodeJSON(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.PackageID == nil || *decoded.PackageID != id {
		t.Fatalf("package id lost")
	}
	if decoded.Modulation != ModulationFSK {
		t.Fatalf("modulation %v", decoded.Modulation)
	}
	if decoded.Meta.SNRdB != 12.25 || decoded.Meta.FreqHz != 433920000 {
		t.Fatalf("metadata mismatch: %+v", decoded.Meta)
	}
	got, err := decoded.ResolveTrain()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equal(train) {
		t.Fatalf("pulses not restored verbatim")
	}
}

func TestJSONDecodeMatchesReferenceHex(t *testing.T) {
	raw := `{"mod":"OOK","count":1,"pulses":[2396,23964],"rate_Hz":250000}`
	msg, err := DecodeJSON([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	train, err := msg.ResolveTrain()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h, err := rfraw.Encode(train)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if h != "AAB1022570FFFF8155" {
		t.Fatalf("unexpected hex %q", h)
	}
}

func TestJSONExactPulsesAuthoritativeOverHex(t *testing.T) {
	raw := `{"mod":"OOK","count":2,"pulses":[100,200,300,400],` +
		`"rate_Hz":250000,"hex_string":"AAB1022570FFFF8155"}`
	msg, err := DecodeJSON([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Payload.Kind() != PayloadExactPulses {
		t.Fatalf("hex must not shadow exact pulses")
	}
	train, err := msg.ResolveTrain()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if train.Count() != 2 || train.Pulse[0] != 100 || train.Gap[1] != 400 {
		t.Fatalf("exact pulses altered: %v/%v", train.Pulse, train.Gap)
	}
}

func TestJSONDecodeHexVariants(t *testing.T) {
	msg, err := DecodeJSON([]byte(`{"mod":"OOK","rate_Hz":250000,"hex_string":"AAB1022570FFFF8155"}`))
	if err != nil {
		t.Fatalf("decode single: %v", err)
	}
	if msg.Payload.Kind() != PayloadSingleHex {
		t.Fatalf("expected single hex, got %v", msg.Payload.Kind())
	}
	train, err := msg.ResolveTrain()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if train.Count() != 1 || train.Pulse[0] != 9584 {
		t.Fatalf("hex decode mismatch: %v", train.Pulse)
	}
	if train.SampleRate != rfraw.DecodedSampleRate {
		t.Fatalf("hex train should be in microsecond units")
	}

	msg, err = DecodeJSON([]byte(`{"mod":"OOK","rate_Hz":250000,` +
		`"hex_string":"AAB102019004B08155+AAB102019004B09055"}`))
	if err != nil {
		t.Fatalf("decode multi: %v", err)
	}
	if msg.Payload.Kind() != PayloadMultiHex {
		t.Fatalf("expected multi hex, got %v", msg.Payload.Kind())
	}
	train, err = msg.ResolveTrain()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if train.Count() != 2 {
		t.Fatalf("expected segments appended in order, got %d pairs", train.Count())
	}
}

func TestJSONDecodeRequiresSampleRate(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"mod":"OOK","count":1,"pulses":[100,200]}`))
	if !errors.Is(err, ErrSampleRateMissing) {
		t.Fatalf("expected ErrSampleRateMissing, got %v", err)
	}
}

func TestJSONDecodeTruncatesOversizedArray(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"mod":"OOK","rate_Hz":250000,"pulses":[`)
	for i := 0; i < 2*(rfraw.MaxPulses+10); i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("100")
	}
	sb.WriteString(`]}`)

	msg, err := DecodeJSON([]byte(sb.String()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !msg.Truncated {
		t.Fatalf("expected truncation flag")
	}
	train, _ := msg.Payload.Train()
	if train.Count() != rfraw.MaxPulses {
		t.Fatalf("expected %d pairs, got %d", rfraw.MaxPulses, train.Count())
	}
}

func TestPayloadValidate(t *testing.T) {
	var zero Payload
	if err := zero.Validate(); !errors.Is(err, ErrInvalidVariant) {
		t.Fatalf("zero payload must be invalid, got %v", err)
	}
	if err := ExactPulses(nil).Validate(); err != nil {
		t.Fatalf("empty exact payload: %v", err)
	}
	if err := SingleHex("AAB1").Validate(); err != nil {
		t.Fatalf("single hex payload: %v", err)
	}
}

func TestReconcileAppliesDefaults(t *testing.T) {
	// A locally-built message with no rate reported anywhere.
	msg := &Message{
		Modulation: ModulationOOK,
		Payload:    ExactPulses(sampleTrain(0, 20)),
	}
	rec, err := NewReconciler().Reconcile(msg)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Meta.SampleRate != DefaultSampleRate {
		t.Fatalf("sample rate default not applied: %d", rec.Meta.SampleRate)
	}
	if rec.Meta.DepthBits != DefaultDepthBits {
		t.Fatalf("depth default not applied: %d", rec.Meta.DepthBits)
	}
	if rec.Meta.OOKLowEstimate != DefaultOOKLow || rec.Meta.OOKHighEstimate != DefaultOOKHigh {
		t.Fatalf("ook estimates not applied: %+v", rec.Meta)
	}
	if rec.Meta.FSKF1Est != 0 || rec.Meta.FSKF2Est != 0 {
		t.Fatalf("ook message must clear fsk estimates")
	}
	if rec.Meta.StartAgo != rec.Train.TotalSamples() || rec.Meta.EndAgo != 0 {
		t.Fatalf("timing not derived: start=%d end=%d", rec.Meta.StartAgo, rec.Meta.EndAgo)
	}
}

func TestReconcileDerivesFSKRails(t *testing.T) {
	msg, err := Build(sampleTrain(250000, 20), ModulationFSK, Metadata{
		FreqHz:  433920000,
		Freq1Hz: 433950000,
		Freq2Hz: 433890000,
	}, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rec, err := NewReconciler().Reconcile(msg)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Meta.FSKF1Est != 30000 || rec.Meta.FSKF2Est != -30000 {
		t.Fatalf("rail estimates: f1=%d f2=%d", rec.Meta.FSKF1Est, rec.Meta.FSKF2Est)
	}
}

func TestReconcileInfersUnreportedModulation(t *testing.T) {
	wide := rfraw.NewPulseTrain(250000)
	for i := 0; i < 20; i++ {
		wide.Append(100, 500)
		wide.Append(600, 500)
	}
	msg := &Message{Modulation: ModulationUnknown, Payload: ExactPulses(wide)}
	rec, err := NewReconciler().Reconcile(msg)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Modulation != ModulationOOK {
		t.Fatalf("varied widths should read as OOK, got %v", rec.Modulation)
	}
	if rec.Meta.FSKF1Est != 0 || rec.Meta.FSKF2Est != 0 {
		t.Fatalf("ook signal must clear fsk estimates: %+v", rec.Meta)
	}

	// Uniform widths with no OOK spread read as FSK and pick up the
	// default rails.
	msg = &Message{Modulation: ModulationUnknown, Payload: ExactPulses(sampleTrain(250000, 20))}
	rec, err = NewReconciler().Reconcile(msg)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Modulation != ModulationFSK {
		t.Fatalf("uniform widths should read as FSK, got %v", rec.Modulation)
	}
	if rec.Meta.FSKF1Est != 1000 || rec.Meta.FSKF2Est != -1000 {
		t.Fatalf("default rails not applied: %+v", rec.Meta)
	}
}

func TestNormalizeStripsAndClamps(t *testing.T) {
	train := rfraw.NewPulseTrain(250000)
	train.Append(3, 2)
	train.Append(600, 0)
	train.Append(0, 100)
	train.Append(0, 50)
	Normalize(train)
	if train.Count() != 2 {
		t.Fatalf("trailing zero pulses not stripped: %d", train.Count())
	}
	if train.Pulse[0] != 5 || train.Gap[0] != 5 {
		t.Fatalf("narrow widths not lifted: %d/%d", train.Pulse[0], train.Gap[0])
	}
	if train.Pulse[1] != 600 || train.Gap[1] != 0 {
		t.Fatalf("valid pair altered: %d/%d", train.Pulse[1], train.Gap[1])
	}
}

func TestValidateTrainRejectsImplausibleWidths(t *testing.T) {
	long := rfraw.NewPulseTrain(250000)
	long.Append(250000*101, 100) // over 100 ms
	if err := ValidateTrain(long); !errors.Is(err, ErrImplausibleTrain) {
		t.Fatalf("expected ErrImplausibleTrain, got %v", err)
	}

	noRate := rfraw.NewPulseTrain(0)
	noRate.Append(100, 100)
	if err := ValidateTrain(noRate); !errors.Is(err, ErrSampleRateMissing) {
		t.Fatalf("expected ErrSampleRateMissing, got %v", err)
	}
}

func TestDetectModulation(t *testing.T) {
	ook := rfraw.NewPulseTrain(250000)
	ook.Append(100, 100)
	ook.Append(900, 100)
	if got := DetectModulation(ook, Metadata{}); got != ModulationOOK {
		t.Fatalf("variance heuristic: got %v", got)
	}

	fsk := rfraw.NewPulseTrain(250000)
	fsk.Append(500, 100)
	fsk.Append(510, 100)
	if got := DetectModulation(fsk, Metadata{}); got != ModulationFSK {
		t.Fatalf("uniform widths: got %v", got)
	}

	if got := DetectModulation(ook, Metadata{FSKF1Est: 20000}); got != ModulationFSK {
		t.Fatalf("rail estimate must win: got %v", got)
	}
}

func TestSequenceMonotonic(t *testing.T) {
	seq := NewSequence(1)
	for want := uint64(1); want <= 5; want++ {
		if got := seq.Next(); got != want {
			t.Fatalf("sequence: got %d want %d", got, want)
		}
	}
}
