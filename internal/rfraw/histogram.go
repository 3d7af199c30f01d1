package rfraw

const (
	maxScratchBins = 16
	maxTableBins   = 8

	// 20% tolerance still discerns the common pulse width
	// ratios 0.33 : 0.66 : 1.0.
	binTolerance = 0.2
)

// histBin clusters timing values considered equal within tolerance.
type histBin struct {
	count int
	sum   int
	mean  int
	min   int
	max   int
}

// histogram holds bins in insertion order. It is never sorted; the
// long-gap split threshold depends on that order.
type histogram struct {
	bins []histBin
}

func withinTolerance(a, b int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	m := a
	if b > m {
		m = b
	}
	return float64(d) < binTolerance*float64(m)
}

// add merges value into the first matching bin, opening a new bin when
// none matches and scratch capacity remains.
func (h *histogram) add(value int) {
	for i := range h.bins {
		b := &h.bins[i]
		if withinTolerance(value, b.mean) {
			b.count++
			b.sum += value
			b.mean = b.sum / b.count
			if value < b.min {
				b.min = value
			}
			if value > b.max {
				b.max = value
			}
			return
		}
	}
	if len(h.bins) < maxScratchBins {
		h.bins = append(h.bins, histBin{count: 1, sum: value, mean: value, min: value, max: value})
	}
}

func (h *histogram) sum(data []int) {
	for _, v := range data {
		h.add(v)
	}
}

// fuse merges every pair of bins whose means fall within tolerance,
// repeating in place until no pair qualifies.
func (h *histogram) fuse() {
	for n := 0; n+1 < len(h.bins); n++ {
		for m := n + 1; m < len(h.bins); m++ {
			if !withinTolerance(h.bins[n].mean, h.bins[m].mean) {
				continue
			}
			h.bins[n].count += h.bins[m].count
			h.bins[n].sum += h.bins[m].sum
			h.bins[n].mean = h.bins[n].sum / h.bins[n].count
			if h.bins[m].min < h.bins[n].min {
				h.bins[n].min = h.bins[m].min
			}
			if h.bins[m].max > h.bins[n].max {
				h.bins[n].max = h.bins[m].max
			}
			h.bins = append(h.bins[:m], h.bins[m+1:]...)
			m--
		}
	}
}

// indexOf returns the bin whose [min, max] range covers width, or -1.
func (h *histogram) indexOf(width int) int {
	for i := range h.bins {
		if h.bins[i].min <= width && width <= h.bins[i].max {
			return i
		}
	}
	return -1
}
