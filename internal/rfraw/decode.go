package rfraw

import "errors"

// DecodedSampleRate is the sample rate carried by decoded trains.
// Hex timing tables store microseconds, so one sample is one µs.
const DecodedSampleRate = 1_000_000

// Check reports whether the text plausibly starts an RFRAW record
// without consuming or validating the full payload.
func Check(s string) bool {
	c := &hexCursor{s: s}
	hdr, ok := c.nextByte()
	if !ok || hdr != hexHeader {
		return false
	}
	format, ok := c.nextByte()
	return ok && (format == hexFormatB0 || format == hexFormatB1)
}

// Decode parses an RFRAW string — one record or several separated by
// '+', whitespace, or '-' — and appends the reconstructed pairs to
// train in order. Timing values land in the units of the encoded table
// (microseconds); train.SampleRate is set to DecodedSampleRate.
// Overflowing the train's capacity truncates and returns ErrTruncated.
func Decode(train *PulseTrain, s string) error {
	c := &hexCursor{s: s}
	parsed := false
	for {
		skipRecordSeparators(c)
		if !c.remaining() {
			break
		}
		if err := decodeRecord(c, train); err != nil {
			return err
		}
		parsed = true
	}
	if !parsed {
		return ErrMalformedInput
	}
	return nil
}

// DecodeAll parses a full RFRAW string into a fresh train.
func DecodeAll(s string) (*PulseTrain, error) {
	train := NewPulseTrain(DecodedSampleRate)
	if err := Decode(train, s); err != nil {
		if errors.Is(err, ErrTruncated) {
			return train, err
		}
		return nil, err
	}
	return train, nil
}

func skipRecordSeparators(c *hexCursor) {
	for c.pos < len(c.s) {
		switch c.s[c.pos] {
		case ' ', '\t', '\r', '\n', '+', '-':
			c.pos++
		default:
			return
		}
	}
}

func decodeRecord(c *hexCursor, train *PulseTrain) error {
	hdr, ok := c.nextByte()
	if !ok || hdr != hexHeader {
		return ErrMalformedInput
	}
	format, ok := c.nextByte()
	if !ok || (format != hexFormatB0 && format != hexFormatB1) {
		return ErrMalformedInput
	}

	if format == hexFormatB0 {
		if _, ok := c.nextByte(); !ok { // record length, unused
			return ErrMalformedInput
		}
	}

	binCount, ok := c.nextByte()
	if !ok || binCount > maxTableBins {
		return ErrMalformedInput
	}

	repeats := 1
	if format == hexFormatB0 {
		if repeats, ok = c.nextByte(); !ok {
			return ErrMalformedInput
		}
	}

	var bins [maxTableBins]int
	for i := 0; i < binCount; i++ {
		w, ok := c.nextWord()
		if !ok {
			return ErrMalformedInput
		}
		bins[i] = w
	}

	oldFormat := detectOldFormat(*c)

	pulses, gaps, err := decodePairs(c, bins[:], oldFormat)
	if err != nil {
		return err
	}

	train.SampleRate = DecodedSampleRate
	for r := 0; r < repeats; r++ {
		for i := range pulses {
			if !train.Append(pulses[i], gaps[i]) {
				return ErrTruncated
			}
		}
	}
	return nil
}

// detectOldFormat peeks ahead through the pair stream. The newer nibble
// layout always sets a bit of 0x88 in at least one pair byte; the old
// layout never does.
func detectOldFormat(c hexCursor) bool {
	for {
		b, ok := c.nextByte()
		if !ok || b == hexEndMark {
			return true
		}
		if b&0x88 != 0 {
			return false
		}
	}
}

// decodePairs streams nibbles until the aligned end marker or end of
// input. A nibble >= 8 (or, in the old layout, any unaligned nibble)
// selects a pulse bin; anything else selects a gap bin and closes the
// current pair. A pulse with no following gap before the record ends
// is discarded, matching the reference behavior.
func decodePairs(c *hexCursor, bins []int, oldFormat bool) (pulses, gaps []int, err error) {
	pending := 0
	pulseNeeded := true
	aligned := true
	for c.remaining() {
		if aligned {
			if b, ok := c.peekByte(); ok && b == hexEndMark {
				c.nextByte()
				break
			}
		}
		w, ok := c.nextNibble()
		aligned = !aligned
		if !ok {
			return nil, nil, ErrMalformedInput
		}
		if w >= 8 || (oldFormat && !aligned) {
			// pulse nibble
			if !pulseNeeded {
				pulses = append(pulses, pending)
				gaps = append(gaps, 0)
			}
			pending = bins[w&7]
			pulseNeeded = false
		} else {
			// gap nibble closes the pair
			if pulseNeeded {
				pending = 0
			}
			pulses = append(pulses, pending)
			gaps = append(gaps, bins[w])
			pending = 0
			pulseNeeded = true
		}
	}
	return pulses, gaps, nil
}
