// Package kafka wraps the segmentio writer used to relay outbox events.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Writer is the publishing surface; *kafka.Writer satisfies it.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Client owns a synchronous writer. Topic is set per message so one writer
// serves every topic.
type Client struct {
	writer  *kafka.Writer
	brokers []string
	timeout time.Duration
}

func New(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			WriteTimeout:           timeout,
			AllowAutoTopicCreation: false,
		},
		brokers: cfg.Brokers,
		timeout: timeout,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "brokers", cfg.Brokers), "kafka writer configured")
	}
	return c, nil
}

// WriteMessages blocks until every message is acknowledged by all in-sync replicas.
func (c *Client) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if c == nil || c.writer == nil {
		return errors.New("kafka client not initialized")
	}
	return c.writer.WriteMessages(ctx, msgs...)
}

// Ping dials the first reachable broker.
func (c *Client) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range c.brokers {
		dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
		conn, err := kafka.DialContext(dialCtx, "tcp", broker)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (c *Client) Close() error {
	if c == nil || c.writer == nil {
		return nil
	}
	return c.writer.Close()
}

// NewMessage builds a keyed message. Headers are sorted by name so identical
// inputs produce identical messages.
func NewMessage(topic string, key string, value []byte, headers map[string]string) kafka.Message {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	hs := make([]kafka.Header, 0, len(names))
	for _, name := range names {
		hs = append(hs, kafka.Header{Key: name, Value: []byte(headers[name])})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: hs,
		Time:    time.Now().UTC(),
	}
}
