package rfraw

import (
	"encoding/hex"
	"strings"
)

const (
	recordBuilderSize = 1024
	maxHexRecords     = 32

	hexHeader   = 0xaa
	hexFormatB0 = 0xb0
	hexFormatB1 = 0xb1
	hexEndMark  = 0x55
)

// recordBuilder accumulates the raw bytes of one hex record.
type recordBuilder struct {
	buf []byte
}

func newRecordBuilder() *recordBuilder {
	return &recordBuilder{buf: make([]byte, 0, recordBuilderSize)}
}

func (r *recordBuilder) pushByte(v byte) {
	if len(r.buf) < recordBuilderSize {
		r.buf = append(r.buf, v)
	}
}

func (r *recordBuilder) pushWord(v uint16) {
	if len(r.buf)+1 < recordBuilderSize {
		r.buf = append(r.buf, byte(v>>8), byte(v))
	}
}

func (r *recordBuilder) hex() string {
	return strings.ToUpper(hex.EncodeToString(r.buf))
}

// timingWord converts a bin mean from sample units to microseconds,
// clamped to the 16-bit table range.
func timingWord(mean int, toUs float64) uint16 {
	w := float64(mean) * toUs
	if w >= 65535 {
		return 65535
	}
	return uint16(w)
}

// Encode compresses a pulse train into the RFRAW hex text format.
// Timing values fuse into at most 8 histogram bins; trains whose
// widths spread wider return ErrNotEncodable and the caller falls
// back to shipping exact pulses.
func Encode(train *PulseTrain) (string, error) {
	if train == nil || train.Count() == 0 {
		return "", ErrNotEncodable
	}

	var timings, gaps histogram
	toUs := train.ToMicroseconds()

	for i := range train.Pulse {
		if train.Pulse[i] > 0 {
			timings.add(train.Pulse[i])
		}
		if train.Gap[i] > 0 {
			timings.add(train.Gap[i])
			gaps.add(train.Gap[i])
		}
	}
	timings.fuse()
	gaps.fuse()

	if len(timings.bins) == 0 || len(timings.bins) > maxTableBins {
		return "", ErrNotEncodable
	}

	if len(gaps.bins) <= 2 {
		return encodeB1(train, &timings, toUs), nil
	}
	return encodeB0(train, &timings, &gaps, toUs), nil
}

// encodeB1 emits a single long record: no repeat count, shared timing
// table, one byte per (pulse, gap) pair.
func encodeB1(train *PulseTrain, timings *histogram, toUs float64) string {
	r := newRecordBuilder()
	r.pushByte(hexHeader)
	r.pushByte(hexFormatB1)
	r.pushByte(byte(len(timings.bins)))
	for _, b := range timings.bins {
		r.pushWord(timingWord(b.mean, toUs))
	}
	for i := range train.Pulse {
		p := timings.indexOf(train.Pulse[i])
		g := timings.indexOf(train.Gap[i])
		if p >= 0 && g >= 0 {
			r.pushByte(0x80 | byte(p)<<4 | byte(g))
		}
	}
	r.pushByte(hexEndMark)
	return r.hex()
}

// encodeB0 splits the train into repeated records at long gaps. The
// split threshold is the minimum of the min(3, bins-1)-th gap bin in
// insertion order. Consecutive byte-identical records coalesce by
// bumping the previous record's repeat count.
func encodeB0(train *PulseTrain, timings, gaps *histogram, toUs float64) string {
	limitBin := len(gaps.bins) - 1
	if limitBin > 3 {
		limitBin = 3
	}
	limit := gaps.bins[limitBin].min

	records := make([]*recordBuilder, 0, maxHexRecords)
	i := 0
	for i < train.Count() && len(records) < maxHexRecords {
		r := newRecordBuilder()
		r.pushByte(hexHeader)
		r.pushByte(hexFormatB0)
		r.pushByte(0) // len placeholder
		r.pushByte(byte(len(timings.bins)))
		r.pushByte(1) // repeats
		for _, b := range timings.bins {
			r.pushWord(timingWord(b.mean, toUs))
		}

		for ; i < train.Count(); i++ {
			p := timings.indexOf(train.Pulse[i])
			g := timings.indexOf(train.Gap[i])
			if p < 0 || g < 0 {
				continue
			}
			r.pushByte(0x80 | byte(p)<<4 | byte(g))
			if train.Gap[i] >= limit {
				i++
				break
			}
		}
		r.pushByte(hexEndMark)
		if n := len(r.buf) - 4; n <= 255 {
			r.buf[2] = byte(n)
		}

		if prev := lastRecord(records); prev != nil && sameRecordBody(prev, r) {
			prev.buf[4]++ // repeats
			continue
		}
		records = append(records, r)
	}

	parts := make([]string, len(records))
	for j, r := range records {
		parts[j] = r.hex()
	}
	return strings.Join(parts, "+")
}

func lastRecord(records []*recordBuilder) *recordBuilder {
	if len(records) == 0 {
		return nil
	}
	return records[len(records)-1]
}

// sameRecordBody compares everything after the repeat byte.
func sameRecordBody(a, b *recordBuilder) bool {
	if len(a.buf) != len(b.buf) || len(a.buf) < 5 {
		return false
	}
	return string(a.buf[5:]) == string(b.buf[5:])
}

// TriqURL returns a pulse-data-viewer link for the train, or an error
// when the train is not hex encodable.
func TriqURL(train *PulseTrain) (string, error) {
	h, err := Encode(train)
	if err != nil {
		return "", err
	}
	return "https://triq.org/pdv/#" + h, nil
}
