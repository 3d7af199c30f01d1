package main

import (
	"context"
	"errors"
	"flag"
	"os"
	osignal "os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/pulsewire/pulsewire/internal/config"
	"github.com/pulsewire/pulsewire/internal/decoder"
	"github.com/pulsewire/pulsewire/internal/logging"
	"github.com/pulsewire/pulsewire/internal/observability"
	"github.com/pulsewire/pulsewire/internal/signal"
	"github.com/pulsewire/pulsewire/internal/signal/wire"
	"github.com/pulsewire/pulsewire/internal/storage"
	"github.com/pulsewire/pulsewire/internal/transport"
)

func main() {
	configPath := flag.String("config", "cmd/decode/config.toml", "path to decode config")
	listN := flag.Int("list", 0, "print the N most recent archived unknown signals and exit")
	flag.Parse()

	logging.ConfigureRuntime("decode")
	observability.RegisterMetrics()

	cfg, err := config.LoadDecodeConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load decode config")
	}
	log.Info().Str("path", *configPath).Str("node", cfg.NodeID).Msg("loaded decode config")

	if *listN > 0 {
		if err := printUnknown(cfg.DBPath, *listN); err != nil {
			log.Fatal().Err(err).Msg("archive listing failed")
		}
		return
	}

	tcfg, err := cfg.Broker.Transport(cfg.NodeID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid broker config")
	}

	node := &decodeNode{
		cfg:        cfg,
		tcfg:       tcfg,
		consumer:   transport.NewSession(tcfg),
		publisher:  transport.NewSession(tcfg),
		store:      storage.NewStore(cfg.DBPath),
		registry:   decoder.NewRegistry(),
		reconciler: signal.NewReconciler(),
	}
	defer node.close()

	// A dead broker at startup is not fatal; the consume loop
	// reconnects with backoff.
	if err := node.consumer.Connect(); err != nil {
		log.Warn().Err(err).Msg("initial broker connect failed")
	}

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go node.statsLoop(ctx)

	err = node.consumer.Run(ctx, node.handle, cfg.PollTimeout)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("consume loop failed")
	}
	node.logStats()
	log.Info().Msg("decode node stopped")
}

type decodeNode struct {
	cfg  config.DecodeConfig
	tcfg transport.Config

	consumer   *transport.Session
	publisher  *transport.Session
	store      *storage.Store
	registry   *decoder.Registry
	reconciler *signal.Reconciler

	consumed atomic.Uint64
	detected atomic.Uint64
	unknown  atomic.Uint64
	rejected atomic.Uint64
}

func (n *decodeNode) close() {
	n.consumer.Close()
	n.publisher.Close()
	if err := n.store.Close(); err != nil {
		log.Warn().Err(err).Msg("store close failed")
	}
}

// handle processes one delivery end to end. A returned error drops the
// message; it was either unparsable or implausible, and redelivering
// it would fail the same way.
func (n *decodeNode) handle(d transport.Delivery) error {
	n.consumed.Add(1)

	msg, err := n.parse(d)
	if err != nil {
		n.rejected.Add(1)
		observability.RecordSignalOutcome(n.cfg.NodeID, "malformed")
		return err
	}
	if msg == nil {
		return nil // non-signal envelope, already handled
	}

	rec, err := n.reconciler.Reconcile(msg)
	if err != nil {
		n.rejected.Add(1)
		observability.RecordSignalOutcome(n.cfg.NodeID, "implausible")
		return err
	}

	detections := decoder.Dispatch(n.registry, rec)
	if len(detections) == 0 {
		return n.archiveUnknown(msg, rec)
	}

	for i := range detections {
		if err := n.publishDetected(msg, &detections[i]); err != nil {
			log.Error().Err(err).Str("model", detections[i].Model).Msg("detected publish failed")
		}
	}
	n.detected.Add(uint64(len(detections)))
	observability.RecordSignalOutcome(n.cfg.NodeID, "detected")
	return nil
}

// parse maps a delivery to a signal message by content type. Binary
// envelopes may also carry status reports, which are logged here and
// yield a nil message.
func (n *decodeNode) parse(d transport.Delivery) (*signal.Message, error) {
	if d.ContentType != wire.ContentTypeBinary {
		return signal.DecodeJSON(d.Body)
	}

	env, err := wire.Unmarshal(d.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case env.Signal != nil:
		return env.Signal, nil
	case env.Status != nil:
		log.Info().Str("peer", env.Status.NodeID).
			Uint64("sent", env.Status.MessagesSent).
			Uint64("reconnections", env.Status.Reconnections).
			Msg("peer status")
		return nil, nil
	default:
		log.Debug().Msg("ignoring non-signal envelope")
		return nil, nil
	}
}

func (n *decodeNode) archiveUnknown(msg *signal.Message, rec *signal.Reconciled) error {
	payload, err := signal.EncodeJSON(msg)
	if err != nil {
		payload = nil
	}
	hex, _ := msg.Payload.HexJoined()

	_, err = n.store.SaveUnknown(context.Background(), &storage.UnknownSignal{
		ReceivedAt:  time.Now().UTC(),
		PackageID:   msg.PackageID,
		Modulation:  rec.Modulation.String(),
		FreqHz:      rec.Meta.FreqHz,
		RateHz:      rec.Meta.SampleRate,
		PulseCount:  rec.Train.Count(),
		Hex:         hex,
		PayloadJSON: string(payload),
	})
	if err != nil {
		log.Error().Err(err).Msg("archive failed")
		observability.RecordSignalOutcome(n.cfg.NodeID, "archive_error")
		return nil // keep the message acked; redelivery will not fix the db
	}
	n.unknown.Add(1)
	observability.RecordSignalOutcome(n.cfg.NodeID, "unknown")
	return nil
}

func (n *decodeNode) publishDetected(msg *signal.Message, det *decoder.Detection) error {
	out := &wire.Detected{
		PackageID:  msg.PackageID,
		Timestamp:  msg.Timestamp,
		Model:      det.Model,
		DeviceType: det.DeviceType,
		DeviceID:   det.DeviceID,
		Protocol:   det.Protocol,
		Fields:     orderedFields(det.Fields),
	}
	body, err := wire.Marshal(&wire.Envelope{Detected: out})
	if err != nil {
		return err
	}

	err = n.publisher.Publish(body, wire.ContentTypeBinary, n.tcfg.DetectedQueue)
	if err == nil {
		return nil
	}
	if errors.Is(err, transport.ErrNotConnected) {
		if cerr := n.publisher.Connect(); cerr != nil {
			return cerr
		}
		return n.publisher.Publish(body, wire.ContentTypeBinary, n.tcfg.DetectedQueue)
	}
	return err
}

func orderedFields(in map[string]string) []wire.DeviceField {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]wire.DeviceField, 0, len(keys))
	for _, k := range keys {
		out = append(out, wire.DeviceField{Key: k, Value: in[k]})
	}
	return out
}

// printUnknown dumps the tail of the unknown-signal archive.
func printUnknown(dbPath string, limit int) error {
	store := storage.NewStore(dbPath)
	defer store.Close()
	ctx := context.Background()

	total, err := store.CountUnknown(ctx)
	if err != nil {
		return err
	}
	recs, err := store.ListUnknown(ctx, limit)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		log.Info().
			Int64("id", rec.ID).
			Time("received", rec.ReceivedAt).
			Str("modulation", rec.Modulation).
			Int("pulses", rec.PulseCount).
			Str("hex", rec.Hex).
			Msg("unknown signal")
	}
	log.Info().Str("total", humanize.Comma(total)).Int("shown", len(recs)).
		Msg("unknown signal archive")
	return nil
}

func (n *decodeNode) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.logStats()
		}
	}
}

func (n *decodeNode) logStats() {
	stats := n.consumer.Stats()
	log.Info().
		Str("consumed", humanize.Comma(int64(n.consumed.Load()))).
		Str("detected", humanize.Comma(int64(n.detected.Load()))).
		Str("unknown", humanize.Comma(int64(n.unknown.Load()))).
		Str("rejected", humanize.Comma(int64(n.rejected.Load()))).
		Uint64("reconnections", stats.Reconnections).
		Str("state", n.consumer.State().String()).
		Msg("decode stats")
}
