package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pulsewire/pulsewire/internal/observability"
)

// State is the session lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateConsuming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateConsuming:
		return "consuming"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Delivery is one received message handed to the consumer callback.
type Delivery struct {
	Body        []byte
	ContentType string
}

// Handler processes one delivery. A non-nil error drops the message;
// it is still acknowledged so the broker does not redeliver a payload
// that will never parse.
type Handler func(d Delivery) error

// Session is a broker connection state machine. One session serves one
// direction of traffic; publishing and consuming concurrently from
// multiple goroutines needs separate sessions.
type Session struct {
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	state      State
	deliveries <-chan amqp.Delivery
	consumeQ   string
	declared   map[string]bool
	closed     bool

	rng   *rand.Rand
	stats statsTracker
}

// NewSession prepares a disconnected session for cfg.
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:      cfg,
		log:      log.With().Str("component", "transport").Str("node", cfg.NodeID).Logger(),
		declared: make(map[string]bool),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a counter snapshot.
func (s *Session) Stats() Stats {
	return s.stats.snapshot()
}

// Connect dials the broker, opens a channel, and declares the
// configured exchange. Any sub-step failure tears down partial state
// and leaves the session disconnected.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.conn != nil {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	s.state = StateConnecting
	conn, err := amqp.DialConfig(s.cfg.URL(), amqp.Config{
		Dial:      amqp.DefaultDial(s.cfg.ConnectTimeout),
		Heartbeat: 10 * time.Second,
	})
	if err != nil {
		s.state = StateDisconnected
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		s.state = StateDisconnected
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	if err := ch.ExchangeDeclare(s.cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		s.state = StateDisconnected
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	s.conn = conn
	s.ch = ch
	s.state = StateConnected
	s.log.Info().Str("host", s.cfg.Host).Int("port", s.cfg.Port).
		Str("exchange", s.cfg.Exchange).Msg("connected")
	return nil
}

// Close tears the session down for good.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.teardownLocked()
}

func (s *Session) teardownLocked() error {
	var firstErr error
	if s.ch != nil {
		if err := s.ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.ch = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.conn = nil
	}
	s.deliveries = nil
	s.consumeQ = ""
	s.declared = make(map[string]bool)
	s.state = StateDisconnected
	return firstErr
}

// Publish sends one message to queue with the persistence flag set.
// The queue is declared and bound on first use; the routing key is the
// queue name. There is no wait for broker-side confirmation.
func (s *Session) Publish(body []byte, contentType, queue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return ErrNotConnected
	}
	if err := s.ensureQueueLocked(queue); err != nil {
		s.stats.sendError(err)
		observability.RecordTransportError(s.cfg.NodeID, "send")
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	err := s.ch.PublishWithContext(context.Background(),
		s.cfg.Exchange, queue, false, false,
		amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		s.stats.sendError(err)
		observability.RecordTransportError(s.cfg.NodeID, "send")
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	s.stats.sent()
	observability.RecordPublish(s.cfg.NodeID, queue)
	return nil
}

func (s *Session) ensureQueueLocked(queue string) error {
	if s.declared[queue] {
		return nil
	}
	if _, err := s.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := s.ch.QueueBind(queue, queue, s.cfg.Exchange, false, nil); err != nil {
		return err
	}
	s.declared[queue] = true
	return nil
}

// Consume waits up to timeout for one message from the signals queue
// and dispatches it to handler. The consumer is created on first call
// and reused afterwards. A timeout is a no-message result, not an
// error; a broken delivery channel resets consumer state so the next
// call re-declares it. Messages are acknowledged after dispatch, so a
// crash mid-handler causes redelivery.
func (s *Session) Consume(handler Handler, timeout time.Duration) (bool, error) {
	deliveries, err := s.consumerChannel()
	if err != nil {
		return false, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false, nil
	case d, ok := <-deliveries:
		if !ok {
			s.resetConsumer()
			err := fmt.Errorf("%w: delivery channel closed", ErrConsumeFailed)
			s.stats.receiveError(err)
			observability.RecordTransportError(s.cfg.NodeID, "receive")
			return false, err
		}
		s.stats.received()
		observability.RecordConsume(s.cfg.NodeID, s.cfg.SignalsQueue)

		if herr := handler(Delivery{Body: d.Body, ContentType: d.ContentType}); herr != nil {
			s.log.Warn().Err(herr).Uint64("tag", d.DeliveryTag).Msg("dropping undecodable message")
		}
		if aerr := d.Ack(false); aerr != nil {
			s.resetConsumer()
			err := fmt.Errorf("%w: ack: %v", ErrConsumeFailed, aerr)
			s.stats.receiveError(err)
			observability.RecordTransportError(s.cfg.NodeID, "receive")
			return true, err
		}
		return true, nil
	}
}

func (s *Session) consumerChannel() (<-chan amqp.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return nil, ErrNotConnected
	}
	if s.deliveries != nil {
		return s.deliveries, nil
	}

	queue := s.cfg.SignalsQueue
	if err := s.ensureQueueLocked(queue); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConsumeFailed, err)
	}
	deliveries, err := s.ch.Consume(queue, s.consumerTag(), false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConsumeFailed, err)
	}
	s.deliveries = deliveries
	s.consumeQ = queue
	s.state = StateConsuming
	return deliveries, nil
}

func (s *Session) consumerTag() string {
	return s.cfg.NodeID + "-consumer"
}

func (s *Session) resetConsumer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = nil
	s.consumeQ = ""
	if s.state == StateConsuming {
		s.state = StateConnected
	}
}

// Reconnect cancels any consumer, drops the connection, waits one
// backoff step, and connects again with the same config.
func (s *Session) Reconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateReconnecting
	if s.ch != nil && s.consumeQ != "" {
		s.ch.Cancel(s.consumerTag(), false)
	}
	s.teardownLocked()
	s.state = StateReconnecting
	delay := NextBackoffDelay(s.cfg.Backoff, 1, s.rng)
	s.mu.Unlock()

	time.Sleep(delay)

	if err := s.Connect(); err != nil {
		return err
	}
	s.stats.reconnected()
	observability.RecordReconnect(s.cfg.NodeID)
	return nil
}

// Run drives the consume loop until ctx is cancelled. Transport
// failures trigger reconnection with capped exponential backoff and
// unlimited attempts; shutdown latency is bounded by the poll timeout.
func (s *Session) Run(ctx context.Context, handler Handler, pollTimeout time.Duration) error {
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, err := s.Consume(handler, pollTimeout)
		if err == nil {
			continue
		}

		s.log.Warn().Err(err).Msg("consume failed, reconnecting")
		if rerr := s.reconnectWithBackoff(ctx); rerr != nil {
			return rerr
		}
	}
}

func (s *Session) reconnectWithBackoff(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.Reconnect()
		if err == nil {
			return nil
		}
		if err == ErrClosed {
			return err
		}

		delay := NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)
		s.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).
			Msg("reconnect failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
