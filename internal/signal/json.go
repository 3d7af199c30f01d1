package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulsewire/pulsewire/internal/rfraw"
)

// ContentTypeJSON labels the text wire form on the broker.
const ContentTypeJSON = "application/json"

// jsonMessage is the flat wire object. Pulse values are raw sample
// counts; rate_Hz carries the conversion to time units.
type jsonMessage struct {
	PackageID *uint64 `json:"package_id,omitempty"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
	Mod       string  `json:"mod"`
	Count     int     `json:"count"`
	Pulses    []int   `json:"pulses,omitempty"`
	FreqHz    int64   `json:"freq_Hz"`
	Freq1Hz   float64 `json:"freq1_Hz,omitempty"`
	Freq2Hz   float64 `json:"freq2_Hz,omitempty"`
	RateHz    uint32  `json:"rate_Hz"`
	RSSIdB    float64 `json:"rssi_dB,omitempty"`
	SNRdB     float64 `json:"snr_dB,omitempty"`
	NoisedB   float64 `json:"noise_dB,omitempty"`
	DepthBits int     `json:"depth_bits,omitempty"`
	RangedB   float64 `json:"range_dB,omitempty"`
	Offset    uint64  `json:"offset,omitempty"`
	StartAgo  int     `json:"start_ago,omitempty"`
	EndAgo    int     `json:"end_ago,omitempty"`
	OOKLow    int     `json:"ook_low_estimate,omitempty"`
	OOKHigh   int     `json:"ook_high_estimate,omitempty"`
	FSKF1Est  int     `json:"fsk_f1_est,omitempty"`
	FSKF2Est  int     `json:"fsk_f2_est,omitempty"`
	HexString string  `json:"hex_string,omitempty"`
}

// EncodeJSON renders a message as the flat JSON wire object.
func EncodeJSON(msg *Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	out := jsonMessage{
		PackageID: msg.PackageID,
		Timestamp: msg.Timestamp,
		Mod:       msg.Modulation.String(),
		FreqHz:    int64(msg.Meta.FreqHz),
		Freq1Hz:   msg.Meta.Freq1Hz,
		Freq2Hz:   msg.Meta.Freq2Hz,
		RateHz:    msg.Meta.SampleRate,
		RSSIdB:    msg.Meta.RSSIdB,
		SNRdB:     msg.Meta.SNRdB,
		NoisedB:   msg.Meta.NoisedB,
		DepthBits: msg.Meta.DepthBits,
		RangedB:   msg.Meta.RangedB,
		Offset:    msg.Meta.Offset,
		StartAgo:  msg.Meta.StartAgo,
		EndAgo:    msg.Meta.EndAgo,
		OOKLow:    msg.Meta.OOKLowEstimate,
		OOKHigh:   msg.Meta.OOKHighEstimate,
		FSKF1Est:  msg.Meta.FSKF1Est,
		FSKF2Est:  msg.Meta.FSKF2Est,
	}

	if train, ok := msg.Payload.Train(); ok {
		out.Count = train.Count()
		out.Pulses = make([]int, 0, 2*train.Count())
		for i := range train.Pulse {
			out.Pulses = append(out.Pulses, train.Pulse[i], train.Gap[i])
		}
	}
	if hex, ok := msg.Payload.HexJoined(); ok {
		out.HexString = hex
	}

	return json.Marshal(out)
}

// DecodeJSON parses the flat JSON wire object back into a message.
// Metadata scalars are restored unconditionally; the payload branch
// prefers exact pulses over any hex text. An oversized pulse array is
// truncated and flagged, not rejected.
func DecodeJSON(data []byte) (*Message, error) {
	var in jsonMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	msg := &Message{
		PackageID:  in.PackageID,
		Timestamp:  in.Timestamp,
		Modulation: ParseModulation(in.Mod),
		Meta: Metadata{
			SampleRate:      in.RateHz,
			FreqHz:          float64(in.FreqHz),
			Freq1Hz:         in.Freq1Hz,
			Freq2Hz:         in.Freq2Hz,
			RSSIdB:          in.RSSIdB,
			SNRdB:           in.SNRdB,
			NoisedB:         in.NoisedB,
			RangedB:         in.RangedB,
			DepthBits:       in.DepthBits,
			OOKLowEstimate:  in.OOKLow,
			OOKHighEstimate: in.OOKHigh,
			FSKF1Est:        in.FSKF1Est,
			FSKF2Est:        in.FSKF2Est,
			Offset:          in.Offset,
			StartAgo:        in.StartAgo,
			EndAgo:          in.EndAgo,
		},
	}

	switch {
	case len(in.Pulses) >= 2:
		pairs := len(in.Pulses) / 2
		if pairs > rfraw.MaxPulses {
			pairs = rfraw.MaxPulses
			msg.Truncated = true
		}
		train := rfraw.NewPulseTrain(in.RateHz)
		for i := 0; i < pairs; i++ {
			train.Append(in.Pulses[2*i], in.Pulses[2*i+1])
		}
		msg.Payload = ExactPulses(train)
	case in.HexString != "":
		if strings.Contains(in.HexString, "+") {
			msg.Payload = MultiHex(strings.Split(in.HexString, "+"))
		} else {
			msg.Payload = SingleHex(in.HexString)
		}
	default:
		msg.Payload = ExactPulses(nil)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}
