package decoder

import (
	"github.com/rs/zerolog/log"

	"github.com/pulsewire/pulsewire/internal/signal"
)

// Dispatch runs every registered decoder whose modulation list covers
// the reconciled signal, in registration order, and collects all
// detections. Decoder-internal failures are logged and skipped; one
// broken decoder must not starve the rest.
func Dispatch(reg *Registry, rec *signal.Reconciled) []Detection {
	var out []Detection
	for _, d := range reg.All() {
		if !accepts(d, rec.Modulation) {
			continue
		}
		detections, err := d.Decode(rec.Train, rec.Meta)
		if err != nil {
			log.Warn().Err(err).Str("decoder", d.Name()).Msg("decoder failed")
			continue
		}
		out = append(out, detections...)
	}
	return out
}

func accepts(d Decoder, mod signal.Modulation) bool {
	mods := d.Modulations()
	if len(mods) == 0 {
		return true
	}
	for _, m := range mods {
		if m == mod || mod == signal.ModulationUnknown {
			return true
		}
	}
	return false
}
