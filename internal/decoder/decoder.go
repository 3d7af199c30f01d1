// Package decoder is the boundary to the RF protocol decoders. The
// decode node feeds reconciled pulse trains to every registered
// decoder and collects detections; the decoding algorithms themselves
// live behind the Decoder interface.
package decoder

import (
	"github.com/pulsewire/pulsewire/internal/rfraw"
	"github.com/pulsewire/pulsewire/internal/signal"
)

// Detection is one device record recognized in a pulse train.
type Detection struct {
	Model      string
	DeviceType string
	DeviceID   string
	Protocol   string
	Fields     map[string]string
}

// Decoder recognizes a device protocol in a reconstructed pulse train.
type Decoder interface {
	// Name identifies the decoder in logs and detections.
	Name() string

	// Modulations lists the keying schemes this decoder understands.
	Modulations() []signal.Modulation

	// Decode inspects the train and returns any detections. An empty
	// slice means the decoder did not recognize the signal; errors are
	// reserved for decoder-internal failures.
	Decode(train *rfraw.PulseTrain, meta signal.Metadata) ([]Detection, error)
}
