package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"

	"github.com/mtecbridge/mtecbridge/pkg/common"
	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/pvdata"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTOptions configures the MQTT sink.
type MQTTOptions struct {
	// Server is host, host:port or a full broker URI.
	Server   string
	Username string
	Password string
	ClientID string

	// Topic is the base topic, metrics are published below
	// <Topic>/<station>[/<device>]/<metric>.
	Topic       string
	FloatFormat string
	QoS         byte
	Retain      bool
}

func (o MQTTOptions) withDefaults() MQTTOptions {
	if o.Topic == "" {
		o.Topic = "MTEC"
	}
	if o.ClientID == "" {
		o.ClientID = "mtecbridge"
	}
	if o.FloatFormat == "" {
		o.FloatFormat = pvdata.DefaultFloatFormat
	}
	return o
}

// MQTT publishes every metric of a snapshot as its own message.
type MQTT struct {
	pub  Publisher
	opts MQTTOptions
}

var _ Sink = (*MQTT)(nil)

// NewMQTT returns a sink publishing through pub.
func NewMQTT(pub Publisher, opts MQTTOptions) *MQTT {
	return &MQTT{pub: pub, opts: opts.withDefaults()}
}

// ConfiguredMQTT registers the MQTT flags. The returned sink has no publisher
// until Connect is called; Enabled reports whether a server was configured.
func ConfiguredMQTT() *MQTT {
	server := lflag.String("mqtt-server", common.Getenv("MQTT_SERVER", ""), "MQTT broker (host, host:port or URI), empty disables MQTT")
	login := lflag.String("mqtt-login", common.Getenv("MQTT_LOGIN", ""), "MQTT username")
	password := lflag.String("mqtt-password", common.Getenv("MQTT_PASSWORD", ""), "MQTT password")
	topic := lflag.String("mqtt-topic", common.Getenv("MQTT_TOPIC", "MTEC"), "MQTT base topic")
	clientID := lflag.String("mqtt-client-id", common.Getenv("MQTT_CLIENT_ID", "mtecbridge"), "MQTT client id")
	floatFormat := lflag.String("mqtt-float-format", common.Getenv("MQTT_FLOAT_FORMAT", pvdata.DefaultFloatFormat), "Format of float payloads")
	retain := lflag.Bool("mqtt-retain", false, "Publish with the retain flag set")

	m := &MQTT{}
	lflag.Do(func() {
		m.opts = MQTTOptions{
			Server:      *server,
			Username:    *login,
			Password:    *password,
			ClientID:    *clientID,
			Topic:       *topic,
			FloatFormat: *floatFormat,
			Retain:      *retain,
		}.withDefaults()
	})
	return m
}

// Enabled reports whether a broker is configured.
func (m *MQTT) Enabled() bool {
	return m.opts.Server != ""
}

// brokerURI turns the configured server into a paho broker URI, defaulting to
// tcp on port 1883.
func brokerURI(server string) string {
	if strings.Contains(server, "://") {
		return server
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "1883")
	}
	return "tcp://" + server
}

// Connect connects to the configured broker and reconnects automatically
// after the connection is lost.
func (m *MQTT) Connect(ctx context.Context) error {
	if !m.Enabled() {
		return errors.New("no mqtt server configured")
	}
	broker := brokerURI(m.opts.Server)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(m.opts.ClientID)
	if m.opts.Username != "" {
		opts.SetUsername(m.opts.Username)
	}
	if m.opts.Password != "" {
		opts.SetPassword(m.opts.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Ctx(ctx).WarnContext(ctx, "mqtt connection lost", slog.Any("error", err))
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Ctx(ctx).InfoContext(ctx, "connected to mqtt broker", slog.String("broker", broker))
	})

	client := mqtt.NewClient(opts)
	log.Ctx(ctx).InfoContext(ctx, "connecting to mqtt broker", slog.String("broker", broker))
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to mqtt broker %s: %w", broker, err)
	}
	m.pub = client
	return nil
}

func (m *MQTT) publish(ctx context.Context, base string, metrics []types.Metric) error {
	if m.pub == nil {
		return errors.New("mqtt not connected")
	}
	var errs []error
	for _, metric := range metrics {
		topic := base + "/" + metric.Name
		payload := pvdata.Payload(metric, m.opts.FloatFormat)
		log.Ctx(ctx).DebugContext(ctx, "mqtt publish", slog.String("topic", topic), slog.String("payload", payload))

		token := m.pub.Publish(topic, m.opts.QoS, m.opts.Retain, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("publishing %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MQTT) baseTopic(parts ...string) string {
	return strings.Join(append([]string{strings.TrimSuffix(m.opts.Topic, "/")}, parts...), "/")
}

// WriteStation publishes to <topic>/<station>/<metric>.
func (m *MQTT) WriteStation(ctx context.Context, snap types.StationSnapshot) error {
	return m.publish(ctx, m.baseTopic(snap.StationName), snap.Metrics)
}

// WriteDevice publishes to <topic>/<station>/<device>/<metric>.
func (m *MQTT) WriteDevice(ctx context.Context, snap types.DeviceSnapshot) error {
	return m.publish(ctx, m.baseTopic(snap.StationName, snap.DeviceName), snap.Metrics)
}

// Close disconnects from the broker if the publisher supports it.
func (m *MQTT) Close() error {
	if d, ok := m.pub.(interface{ Disconnect(quiesce uint) }); ok {
		d.Disconnect(250)
	}
	return nil
}
