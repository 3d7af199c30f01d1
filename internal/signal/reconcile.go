package signal

import (
	"errors"

	"github.com/pulsewire/pulsewire/internal/rfraw"
)

// Protocol defaults applied to fields the capture side left empty.
const (
	DefaultSampleRate = 250000
	DefaultDepthBits  = 8
	DefaultOOKLow     = 1000
	DefaultOOKHigh    = 8000

	// Widths shorter than this many samples are lifted to it during
	// normalization; narrower pulses are capture artifacts.
	minPulseWidth = 5

	// A pulse longer than this many microseconds is not a plausible
	// remote-control burst.
	maxPulseWidthUs = 100000.0
)

// Reconciled is a fully-populated pulse train ready for the decoder
// collaborators.
type Reconciled struct {
	Train      *rfraw.PulseTrain
	Meta       Metadata
	Modulation Modulation
	Truncated  bool
}

// Reconciler merges received messages with protocol defaults and
// validates the result.
type Reconciler struct {
	DefaultRate uint32
}

func NewReconciler() *Reconciler {
	return &Reconciler{DefaultRate: DefaultSampleRate}
}

// Reconcile resolves the payload, fills defaulted metadata, infers an
// unreported modulation from the train shape, derives the modulation
// estimates, and validates plausibility. Hex payloads keep the decoded
// microsecond domain (sample rate 1 MHz); exact payloads keep the
// capture-side rate.
func (r *Reconciler) Reconcile(msg *Message) (*Reconciled, error) {
	train, err := msg.ResolveTrain()
	truncated := msg.Truncated
	if err != nil {
		if !errors.Is(err, rfraw.ErrTruncated) {
			return nil, err
		}
		truncated = true
	}

	meta := msg.Meta
	if meta.SampleRate == 0 {
		meta.SampleRate = r.defaultRate()
	}
	if meta.DepthBits == 0 {
		meta.DepthBits = DefaultDepthBits
	}
	if meta.OOKLowEstimate == 0 {
		meta.OOKLowEstimate = DefaultOOKLow
	}
	if meta.OOKHighEstimate == 0 {
		meta.OOKHighEstimate = DefaultOOKHigh
	}

	switch msg.Payload.Kind() {
	case PayloadExactPulses:
		if train.SampleRate == 0 {
			train.SampleRate = meta.SampleRate
		}
	default:
		// Hex timing tables are microseconds; the train already
		// carries the 1 MHz rate from the codec.
	}

	Normalize(train)

	mod := msg.Modulation
	if mod == ModulationUnknown {
		mod = DetectModulation(train, meta)
	}
	applyModulationEstimates(mod, &meta)

	if train.Count() > 0 {
		meta.StartAgo = train.TotalSamples()
		meta.EndAgo = 0
		if err := ValidateTrain(train); err != nil {
			return nil, err
		}
	}

	return &Reconciled{
		Train:      train,
		Meta:       meta,
		Modulation: mod,
		Truncated:  truncated,
	}, nil
}

func (r *Reconciler) defaultRate() uint32 {
	if r.DefaultRate == 0 {
		return DefaultSampleRate
	}
	return r.DefaultRate
}

// applyModulationEstimates seeds the demodulator hints. FSK rails
// default to +/-1000 Hz and are refined from the reported rail
// frequencies when present.
func applyModulationEstimates(mod Modulation, meta *Metadata) {
	if mod == ModulationFSK {
		meta.FSKF1Est = 1000
		meta.FSKF2Est = -1000
		if meta.Freq1Hz != 0 && meta.FreqHz != 0 {
			meta.FSKF1Est = int(meta.Freq1Hz - meta.FreqHz)
		}
		if meta.Freq2Hz != 0 && meta.FreqHz != 0 {
			meta.FSKF2Est = int(meta.Freq2Hz - meta.FreqHz)
		}
		return
	}
	meta.FSKF1Est = 0
	meta.FSKF2Est = 0
}

// Normalize strips trailing zero-width pulses and lifts implausibly
// narrow widths to the minimum.
func Normalize(train *rfraw.PulseTrain) {
	n := train.Count()
	for n > 0 && train.Pulse[n-1] == 0 {
		n--
	}
	train.Pulse = train.Pulse[:n]
	train.Gap = train.Gap[:n]

	for i := 0; i < n; i++ {
		if train.Pulse[i] > 0 && train.Pulse[i] < minPulseWidth {
			train.Pulse[i] = minPulseWidth
		}
		if train.Gap[i] > 0 && train.Gap[i] < minPulseWidth {
			train.Gap[i] = minPulseWidth
		}
	}
}

// ValidateTrain rejects trains no real transmitter produces.
func ValidateTrain(train *rfraw.PulseTrain) error {
	if train.SampleRate == 0 {
		return ErrSampleRateMissing
	}
	if train.Count() == 0 || train.Count() > rfraw.MaxPulses {
		return ErrImplausibleTrain
	}
	toUs := train.ToMicroseconds()
	for i := range train.Pulse {
		if train.Pulse[i] < 0 || train.Gap[i] < 0 {
			return ErrImplausibleTrain
		}
		us := float64(train.Pulse[i]) * toUs
		if us > maxPulseWidthUs || (us < 1.0 && train.Pulse[i] > 0) {
			return ErrImplausibleTrain
		}
	}
	return nil
}

// DetectModulation guesses the keying scheme from the train shape when
// the capture side did not report one. Nonzero FSK estimates win;
// otherwise high pulse-width variance suggests OOK.
func DetectModulation(train *rfraw.PulseTrain, meta Metadata) Modulation {
	if meta.FSKF1Est != 0 || meta.FSKF2Est != 0 {
		return ModulationFSK
	}
	if train.Count() < 2 {
		return ModulationUnknown
	}
	minP, maxP := train.Pulse[0], train.Pulse[0]
	for _, p := range train.Pulse[1:] {
		if p < minP {
			minP = p
		}
		if p > maxP {
			maxP = p
		}
	}
	if maxP > minP*2 {
		return ModulationOOK
	}
	return ModulationFSK
}
