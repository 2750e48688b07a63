package publisher

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"codeberg.org/mutker/windmon/internal/errors"
	"codeberg.org/mutker/windmon/internal/logger"
)

// Message is one wire message.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Transport abstracts the broker connection so the publisher's state
// machine and retry policy can be tested without a live broker. All
// calls must respect their context deadline; none may block
// indefinitely.
type Transport interface {
	// Connect performs a single connection handshake. The will message,
	// if non-empty, is registered as the broker-side last-will.
	Connect(ctx context.Context, will Message) error

	// Publish sends one message over an established connection.
	Publish(ctx context.Context, msg Message) error

	// Disconnect closes the connection gracefully.
	Disconnect() error

	// OnConnectionLost registers a callback for asynchronous transport
	// failure. Called at most once per established connection.
	OnConnectionLost(fn func(error))
}

// MQTTConfig configures the paho-backed transport.
type MQTTConfig struct {
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// mqttTransport is the production Transport over eclipse/paho.
type mqttTransport struct {
	cfg    MQTTConfig
	client *paho.Client
	down   atomic.Pointer[func(error)]
}

func NewMQTTTransport(cfg MQTTConfig) Transport {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	return &mqttTransport{cfg: cfg}
}

func (t *mqttTransport) OnConnectionLost(fn func(error)) {
	t.down.Store(&fn)
}

func (t *mqttTransport) notifyDown(err error) {
	if fn := t.down.Load(); fn != nil {
		(*fn)(err)
	}
}

func (t *mqttTransport) Connect(ctx context.Context, will Message) error {
	errFactory := errors.New()

	addr := net.JoinHostPort(t.cfg.Broker, fmt.Sprintf("%d", t.cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, t.cfg.ConnectTimeout)
	if err != nil {
		return errFactory.Wrap(errors.ErrConnectFailed, err)
	}

	t.client = paho.NewClient(paho.ClientConfig{
		ClientID: t.cfg.ClientID,
		Conn:     conn,
		OnClientError: func(err error) {
			logger.Debug().Err(err).Msg("MQTT client error")
			t.notifyDown(err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			logger.Debug().Uint8("reason_code", d.ReasonCode).Msg("Server-initiated disconnect")
			t.notifyDown(errFactory.WithData(errors.ErrConnectFailed, d.ReasonCode))
		},
	})

	connect := &paho.Connect{
		ClientID:   t.cfg.ClientID,
		KeepAlive:  uint16(t.cfg.KeepAlive.Seconds()),
		CleanStart: true,
	}
	if t.cfg.Username != "" {
		connect.UsernameFlag = true
		connect.Username = t.cfg.Username
		connect.PasswordFlag = true
		connect.Password = []byte(t.cfg.Password)
	}
	if will.Topic != "" {
		connect.WillMessage = &paho.WillMessage{
			Retain:  will.Retain,
			QoS:     will.QoS,
			Topic:   will.Topic,
			Payload: will.Payload,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	connack, err := t.client.Connect(ctx, connect)
	if err != nil {
		conn.Close()
		return errFactory.Wrap(errors.ErrConnectFailed, err)
	}
	if connack.ReasonCode != 0 {
		conn.Close()
		return errFactory.WithData(errors.ErrConnectFailed, connack.ReasonCode)
	}

	return nil
}

func (t *mqttTransport) Publish(ctx context.Context, msg Message) error {
	if t.client == nil {
		return errors.New().New(errors.ErrNotConnected)
	}

	_, err := t.client.Publish(ctx, &paho.Publish{
		QoS:     msg.QoS,
		Retain:  msg.Retain,
		Topic:   msg.Topic,
		Payload: msg.Payload,
	})
	if err != nil {
		return errors.New().Wrap(errors.ErrPublishFailed, err)
	}

	return nil
}

func (t *mqttTransport) Disconnect() error {
	if t.client == nil {
		return nil
	}

	err := t.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	t.client = nil
	if err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
