package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/curvesy/argus/internal/config"
)

// Bridge mirrors every event published through the distributor onto a
// Kafka topic, keyed by run ID. Write failures are logged and the event
// is dropped; the bridge never pushes back on publishers.
type Bridge struct {
	writer  *kafka.Writer
	conn    *Conn
	dist    *Distributor
	timeout time.Duration
}

// NewBridge connects to the distributor's system room and prepares a
// Kafka writer per the bridge config.
func NewBridge(cfg config.KafkaBridgeConfig, d *Distributor) *Bridge {
	timeout := time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	conn := d.Connect()
	d.Subscribe(conn, RoomSystem)
	return &Bridge{writer: w, conn: conn, dist: d, timeout: timeout}
}

// Run consumes the bridge connection until ctx is cancelled.
// This should be run as a goroutine.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-b.conn.Events():
			if !ok {
				return nil
			}
			b.forward(ctx, e)
		}
	}
}

func (b *Bridge) forward(ctx context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		slog.Warn("Bridge: marshal event", "type", e.Type, "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.RunID),
		Value: value,
		Time:  e.Timestamp,
	}
	writeCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.writer.WriteMessages(writeCtx, msg); err != nil {
		slog.Warn("Bridge: kafka write failed", "type", e.Type, "run_id", e.RunID, "error", err)
	}
}

// Close detaches the bridge from the distributor and closes the writer.
func (b *Bridge) Close() error {
	b.dist.Disconnect(b.conn)
	return b.writer.Close()
}
