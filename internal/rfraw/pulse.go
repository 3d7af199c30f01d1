package rfraw

// MaxPulses is the in-memory capacity of a pulse train accumulator.
// Wire formats allow more; anything past this is truncated on decode.
const MaxPulses = 1200

// PulseTrain is an ordered sequence of (pulse, gap) sample-count pairs.
// Pulse and Gap always have equal length.
type PulseTrain struct {
	Pulse      []int
	Gap        []int
	SampleRate uint32
}

// NewPulseTrain returns an empty train with capacity for MaxPulses pairs.
func NewPulseTrain(sampleRate uint32) *PulseTrain {
	return &PulseTrain{
		Pulse:      make([]int, 0, MaxPulses),
		Gap:        make([]int, 0, MaxPulses),
		SampleRate: sampleRate,
	}
}

// Count returns the number of (pulse, gap) pairs.
func (t *PulseTrain) Count() int {
	return len(t.Pulse)
}

// Append adds one pair. It reports false when the train is at capacity.
func (t *PulseTrain) Append(pulse, gap int) bool {
	if len(t.Pulse) >= MaxPulses {
		return false
	}
	t.Pulse = append(t.Pulse, pulse)
	t.Gap = append(t.Gap, gap)
	return true
}

// Reset clears the pairs but keeps the sample rate and backing storage.
func (t *PulseTrain) Reset() {
	t.Pulse = t.Pulse[:0]
	t.Gap = t.Gap[:0]
}

// ToMicroseconds returns the factor converting sample units to microseconds.
// Zero sample rate yields zero.
func (t *PulseTrain) ToMicroseconds() float64 {
	if t.SampleRate == 0 {
		return 0
	}
	return 1e6 / float64(t.SampleRate)
}

// TotalSamples sums every pulse and gap width.
func (t *PulseTrain) TotalSamples() int {
	total := 0
	for i := range t.Pulse {
		total += t.Pulse[i] + t.Gap[i]
	}
	return total
}

// Equal reports whether two trains carry identical pulse/gap sequences.
// Sample rates are not compared.
func (t *PulseTrain) Equal(o *PulseTrain) bool {
	if t.Count() != o.Count() {
		return false
	}
	for i := range t.Pulse {
		if t.Pulse[i] != o.Pulse[i] || t.Gap[i] != o.Gap[i] {
			return false
		}
	}
	return true
}
