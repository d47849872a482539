package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/ajitpratap0/wardsim/internal/models"
)

// SlogSink writes records to a structured logger. Equipment state changes are
// logged at debug level, everything else at info.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink over logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("component", "activity")}
}

func (s *SlogSink) Name() string { return "slog" }

func (s *SlogSink) Write(ctx context.Context, recs []Record) error {
	for _, r := range recs {
		level := slog.LevelInfo
		if r.Kind == models.EventEquipmentStateChanged {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, Describe(r.Event),
			"seq", r.Seq,
			"at", r.At,
			"kind", r.Kind,
			"run_id", r.RunID,
		)
	}
	return nil
}

func (s *SlogSink) Close() error { return nil }

// NATSSink publishes each record as JSON on "<prefix>.<kind>".
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink connects to url with unlimited reconnects.
func NewNATSSink(url, prefix string, logger *slog.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("wardsim"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn("nats error", "error", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &NATSSink{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Write(ctx context.Context, recs []Record) error {
	for _, r := range recs {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", r.Seq, err)
		}
		if err := s.nc.Publish(Subject(s.prefix, r.Kind), data); err != nil {
			return fmt.Errorf("publishing event %d: %w", r.Seq, err)
		}
	}
	return s.nc.FlushWithContext(ctx)
}

func (s *NATSSink) Close() error {
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}

// Subject returns the NATS subject for an event kind.
func Subject(prefix string, kind models.EventKind) string {
	return prefix + "." + string(kind)
}

// KafkaSink writes records to one topic keyed by run ID, so a run's events
// stay ordered within a partition.
type KafkaSink struct {
	w *kafka.Writer
}

// NewKafkaSink creates a writer for topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, recs []Record) error {
	msgs, err := KafkaMessages(recs)
	if err != nil {
		return err
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d messages to kafka: %w", len(msgs), err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }

// KafkaMessages encodes records as kafka messages keyed by run ID.
func KafkaMessages(recs []Record) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(recs))
	for _, r := range recs {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encoding event %d: %w", r.Seq, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.RunID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(r.Kind)},
			},
		})
	}
	return msgs, nil
}

// MQTTSink publishes each record as JSON on "<prefix>/<room>/<kind>", or
// "<prefix>/<kind>" for events not tied to a room.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTSink connects to broker.
func NewMQTTSink(broker, clientID, prefix string, qos byte, timeout time.Duration) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timed out after %s", broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", broker, err)
	}
	return &MQTTSink{client: c, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Write(ctx context.Context, recs []Record) error {
	for _, r := range recs {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", r.Seq, err)
		}
		token := s.client.Publish(Topic(s.prefix, r.Event), s.qos, false, payload)
		select {
		case <-token.Done():
		case <-ctx.Done():
			return fmt.Errorf("publishing event %d: %w", r.Seq, ctx.Err())
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing event %d: %w", r.Seq, err)
		}
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

// Topic returns the MQTT topic for an event.
func Topic(prefix string, e models.Event) string {
	if e.RoomID == "" {
		return prefix + "/" + string(e.Kind)
	}
	return prefix + "/" + e.RoomID + "/" + string(e.Kind)
}
