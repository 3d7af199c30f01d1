package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/pulsewire/pulsewire/internal/config"
	"github.com/pulsewire/pulsewire/internal/logging"
	"github.com/pulsewire/pulsewire/internal/observability"
	"github.com/pulsewire/pulsewire/internal/signal"
	"github.com/pulsewire/pulsewire/internal/signal/wire"
	"github.com/pulsewire/pulsewire/internal/transport"
)

// maxLineBytes bounds one input line; a full-capacity pulse train in
// JSON form stays well under this.
const maxLineBytes = 1 << 20

func main() {
	configPath := flag.String("config", "cmd/capture/config.toml", "path to capture config")
	input := flag.String("input", "", "pulse JSON stream path, - for stdin (overrides config)")
	format := flag.String("format", "", "wire format: binary|json (overrides config)")
	flag.Parse()

	logging.ConfigureRuntime("capture")
	observability.RegisterMetrics()

	cfg, err := config.LoadCaptureConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load capture config")
	}
	if *input != "" {
		cfg.Input = *input
	}
	if *format != "" {
		cfg.Format = *format
	}
	if err := config.ValidateCaptureConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid capture config")
	}
	log.Info().Str("path", *configPath).Str("node", cfg.NodeID).Msg("loaded capture config")

	tcfg, err := cfg.Broker.Transport(cfg.NodeID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid broker config")
	}

	session := transport.NewSession(tcfg)
	if err := session.Connect(); err != nil {
		log.Fatal().Err(err).Msg("broker connect failed")
	}
	defer session.Close()

	in, err := openInput(cfg.Input)
	if err != nil {
		log.Fatal().Err(err).Str("input", cfg.Input).Msg("cannot open input")
	}
	defer in.Close()

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	published, dropped := pump(ctx, cfg, tcfg, session, in)
	stats := session.Stats()
	log.Info().
		Str("published", humanize.Comma(published)).
		Str("dropped", humanize.Comma(dropped)).
		Uint64("send_errors", stats.SendErrors).
		Msg("capture finished")
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// pump reads one pulse record per line, stamps it with the next
// package id, and publishes it until input or context ends.
func pump(ctx context.Context, cfg config.CaptureConfig, tcfg transport.Config,
	session *transport.Session, in io.Reader) (published, dropped int64) {

	seq := signal.NewSequence(cfg.StartID)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			log.Info().Msg("shutdown requested")
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := prepare(line, cfg, seq)
		if err != nil {
			dropped++
			if errors.Is(err, signal.ErrBelowMinimumLength) {
				log.Debug().Msg("dropping noise train")
			} else {
				log.Warn().Err(err).Msg("skipping unparsable pulse record")
			}
			continue
		}

		body, contentType, err := encode(msg, cfg.Format)
		if err != nil {
			dropped++
			log.Warn().Err(err).Msg("skipping unencodable pulse record")
			continue
		}

		if err := publish(session, body, contentType, tcfg.SignalsQueue); err != nil {
			dropped++
			log.Error().Err(err).Uint64("package_id", *msg.PackageID).Msg("publish failed")
			continue
		}
		published++
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("input read failed")
	}
	return published, dropped
}

// prepare parses one pulse record and routes it through the payload
// selection policy. Short trains without a hex fallback come back as
// ErrBelowMinimumLength; they are false triggers and never ship.
func prepare(line []byte, cfg config.CaptureConfig, seq *signal.Sequence) (*signal.Message, error) {
	in, err := signal.DecodeJSON(line)
	if err != nil {
		return nil, err
	}
	train, _ := in.Payload.Train()
	hex, _ := in.Payload.HexJoined()

	msg, err := signal.Build(train, in.Modulation, in.Meta, hex)
	if err != nil {
		return nil, err
	}
	msg.Timestamp = in.Timestamp
	msg.Truncated = in.Truncated
	stamp(msg, cfg, seq)
	return msg, nil
}

func stamp(msg *signal.Message, cfg config.CaptureConfig, seq *signal.Sequence) {
	id := seq.Next()
	msg.PackageID = &id
	if msg.Timestamp == nil {
		now := uint64(time.Now().Unix())
		msg.Timestamp = &now
	}
	if msg.Meta.SampleRate == 0 {
		msg.Meta.SampleRate = cfg.SampleRateHz
	}
	if msg.Meta.FreqHz == 0 {
		msg.Meta.FreqHz = cfg.FrequencyHz
	}
}

func encode(msg *signal.Message, format string) ([]byte, string, error) {
	if format == "json" {
		body, err := signal.EncodeJSON(msg)
		return body, signal.ContentTypeJSON, err
	}
	body, err := wire.Marshal(&wire.Envelope{Signal: msg})
	return body, wire.ContentTypeBinary, err
}

// publish retries once through a reconnect; a persistent failure is
// the caller's problem.
func publish(session *transport.Session, body []byte, contentType, queue string) error {
	err := session.Publish(body, contentType, queue)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("publish failed, reconnecting")
	if rerr := session.Reconnect(); rerr != nil {
		return rerr
	}
	return session.Publish(body, contentType, queue)
}
