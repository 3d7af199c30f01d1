package signal

import (
	"strings"

	"github.com/pulsewire/pulsewire/internal/rfraw"
)

// MinExactPulses is the inclusive cutoff for shipping exact pulse
// data. Shorter trains ride on a hex fallback or get rejected as
// noise.
const MinExactPulses = 16

// Build selects the payload variant for a captured burst.
//
// Priority order:
//  1. count >= MinExactPulses: exact pulses, lossless.
//  2. a hex fallback was supplied: single or multi hex, lossy.
//  3. 1 <= count < MinExactPulses with no hex: rejected, the caller
//     treats the burst as a false trigger and drops it.
//  4. empty train, no hex: well-formed empty placeholder.
func Build(train *rfraw.PulseTrain, modulation Modulation, meta Metadata, existingHex string) (*Message, error) {
	count := 0
	if train != nil {
		count = train.Count()
		if meta.SampleRate == 0 {
			meta.SampleRate = train.SampleRate
		}
	}

	var payload Payload
	switch {
	case count >= MinExactPulses:
		payload = ExactPulses(train)
	case existingHex != "":
		if strings.Contains(existingHex, "+") {
			payload = MultiHex(strings.Split(existingHex, "+"))
		} else {
			payload = SingleHex(existingHex)
		}
	case count > 0:
		return nil, ErrBelowMinimumLength
	default:
		payload = ExactPulses(nil)
	}

	msg := &Message{
		Modulation: modulation,
		Meta:       meta,
		Payload:    payload,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}
