// Package publisher relays aggregated telemetry to the remote broker.
// Delivery is best-effort with local durability elsewhere: a summary
// that cannot be sent within its interval's retry budget is abandoned,
// never queued, and the publisher never blocks the sampling path.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/mutker/windmon/internal/alert"
	"codeberg.org/mutker/windmon/internal/errors"
	"codeberg.org/mutker/windmon/internal/faults"
	"codeberg.org/mutker/windmon/internal/logger"
	"codeberg.org/mutker/windmon/internal/stats"
)

const (
	qosAtLeastOnce = 1

	statusOnline  = "online"
	statusOffline = "offline"
)

// Config fixes identity, topics and retry bounds.
type Config struct {
	DeviceID  string
	Namespace string
	MaxRetry  int // sends per interval, including the first attempt
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "windmon"
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = 3
	}
}

// Publisher owns the connection state machine. Not safe for concurrent
// use except for the transport-down notification, which only flips the
// connected flag.
type Publisher struct {
	transport Transport
	monitor   *faults.Monitor
	cfg       Config

	state State
	// lost is set asynchronously by the transport and folded into state
	// at the next operation on the main loop.
	lost chan error
}

func New(transport Transport, monitor *faults.Monitor, cfg Config) *Publisher {
	cfg.applyDefaults()

	p := &Publisher{
		transport: transport,
		monitor:   monitor,
		cfg:       cfg,
		state:     Disconnected,
		lost:      make(chan error, 1),
	}

	transport.OnConnectionLost(func(err error) {
		select {
		case p.lost <- err:
		default:
		}
	})

	return p
}

// State returns the current connection state, folding in any
// asynchronous transport loss first.
func (p *Publisher) State() State {
	p.foldLost()
	return p.state
}

// IsConnected is polled by the main loop each tick to drive the
// reconnect cadence.
func (p *Publisher) IsConnected() bool {
	return p.State() == Connected
}

func (p *Publisher) foldLost() {
	select {
	case err := <-p.lost:
		if p.state != Disconnected {
			logger.Warn().Err(err).Msg("Broker connection lost")
			p.state = Disconnected
			p.monitor.Set(faults.Network)
		}
	default:
	}
}

// Connect attempts a single connection handshake and, on success,
// publishes the retained online status. Retry cadence is the caller's
// responsibility; Connect itself never sleeps.
func (p *Publisher) Connect(ctx context.Context) error {
	p.foldLost()
	if p.state != Disconnected {
		return nil
	}

	p.state = Connecting

	will, _ := json.Marshal(statusMessage{Status: statusOffline, Timestamp: time.Now().UTC()})
	err := p.transport.Connect(ctx, Message{
		Topic:   p.topic("status"),
		Payload: will,
		QoS:     qosAtLeastOnce,
		Retain:  true,
	})
	if err != nil {
		p.state = Disconnected
		p.monitor.Set(faults.Network)
		return err
	}

	p.state = Connected
	p.monitor.Clear(faults.Network)
	logger.Info().Str("device_id", p.cfg.DeviceID).Msg("Connected to broker")

	online, _ := json.Marshal(statusMessage{Status: statusOnline, Timestamp: time.Now().UTC()})
	if err := p.publish(ctx, Message{
		Topic:   p.topic("status"),
		Payload: online,
		QoS:     qosAtLeastOnce,
		Retain:  true,
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish online status")
	}

	return nil
}

// PublishSummary serializes one window summary and attempts delivery
// with at most MaxRetry sends. Exhausting the budget abandons the
// summary for this interval; the next window is attempted on schedule.
func (p *Publisher) PublishSummary(ctx context.Context, summary stats.Summary) error {
	errFactory := errors.New()

	p.foldLost()
	if p.state != Connected {
		return errFactory.New(errors.ErrNotConnected)
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return errFactory.Wrap(errors.ErrPublishFailed, err)
	}
	msg := Message{Topic: p.topic("data"), Payload: payload, QoS: qosAtLeastOnce}

	p.state = Transmitting
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetry; attempt++ {
		lastErr = p.transport.Publish(ctx, msg)
		if lastErr == nil {
			p.state = Connected
			logger.Debug().Int("attempt", attempt).Int("bytes", len(payload)).Msg("Window summary published")
			return nil
		}

		p.foldLost()
		if p.state == Disconnected {
			// Connection is gone; further sends this interval are
			// pointless and reconnection is the loop's job.
			return errFactory.Wrap(errors.ErrPublishFailed, lastErr)
		}
		p.state = Transmitting
	}

	p.state = Connected
	logger.Warn().Err(lastErr).Int("max_retry", p.cfg.MaxRetry).Msg("Summary abandoned for this interval")

	return errFactory.Wrap(errors.ErrRetryExceeded, lastErr)
}

// SendAlert publishes one alert, best-effort: a single send, no retry.
// The caller records the alert durably before calling this.
func (p *Publisher) SendAlert(ctx context.Context, e alert.Event) error {
	errFactory := errors.New()

	p.foldLost()
	if p.state != Connected {
		return errFactory.New(errors.ErrNotConnected)
	}

	payload, err := json.Marshal(alertMessage{
		DeviceID:  p.cfg.DeviceID,
		Timestamp: e.Timestamp.UTC(),
		AlertType: e.Type,
		Message:   e.Message,
		Severity:  int(e.Severity),
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrPublishFailed, err)
	}

	return p.publish(ctx, Message{Topic: p.topic("alert"), Payload: payload, QoS: qosAtLeastOnce})
}

// Close publishes the retained offline status and disconnects.
func (p *Publisher) Close(ctx context.Context) error {
	p.foldLost()
	if p.state == Disconnected {
		return nil
	}

	offline, _ := json.Marshal(statusMessage{Status: statusOffline, Timestamp: time.Now().UTC()})
	if err := p.publish(ctx, Message{
		Topic:   p.topic("status"),
		Payload: offline,
		QoS:     qosAtLeastOnce,
		Retain:  true,
	}); err != nil {
		logger.Debug().Err(err).Msg("Failed to publish offline status")
	}

	p.state = Disconnected

	return p.transport.Disconnect()
}

func (p *Publisher) publish(ctx context.Context, msg Message) error {
	if err := p.transport.Publish(ctx, msg); err != nil {
		p.foldLost()
		return err
	}

	return nil
}

// topic builds <namespace>/<device_id>/<kind>.
func (p *Publisher) topic(kind string) string {
	return p.cfg.Namespace + "/" + p.cfg.DeviceID + "/" + kind
}

// statusMessage is the retained status payload, also used as last-will.
type statusMessage struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// alertMessage is the alert wire payload.
type alertMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	AlertType string    `json:"alert_type"`
	Message   string    `json:"message"`
	Severity  int       `json:"severity"`
}
