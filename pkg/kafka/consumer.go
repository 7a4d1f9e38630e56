package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer wraps a Kafka reader with a worker pool and bounded retry.
type Consumer struct {
	cfg      *ConsumerConfig
	reader   *kafka.Reader
	handler  MessageHandler
	dlq      *kafka.Writer
	msgCh    chan kafka.Message
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer creates a Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		Workers:    2,
		RetryMax:   3,
		BackoffMin: 200 * time.Millisecond,
		BackoffMax: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group id is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	c := &Consumer{
		cfg:   cfg,
		msgCh: make(chan kafka.Message, 256),
	}

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.DLQTopic,
			Balancer: &kafka.LeastBytes{},
		}
	}

	return c, nil
}

// RegisterHandler sets the message handler for the consumer's topic.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	c.handler = h
}

// Start begins consuming. It blocks until Stop is called or the reader
// fails permanently.
func (c *Consumer) Start() error {
	if c.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		select {
		case c.msgCh <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.msgCh:
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	backoff := c.cfg.BackoffMin
	var err error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if err = c.handler.Handle(ctx, msg.Value); err == nil {
			if cerr := c.reader.CommitMessages(ctx, msg); cerr != nil {
				log.Printf("kafka: commit error: %v", cerr)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.BackoffMax {
			backoff = c.cfg.BackoffMax
		}
	}

	log.Printf("kafka: message exhausted retries on %s: %v", c.handler.Topic(), err)
	if c.dlq != nil {
		if derr := c.dlq.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value}); derr != nil {
			log.Printf("kafka: dlq write error: %v", derr)
		}
	}
	// commit anyway so a poison message does not wedge the partition
	if cerr := c.reader.CommitMessages(ctx, msg); cerr != nil {
		log.Printf("kafka: commit error: %v", cerr)
	}
}

// Stop stops the consumer and waits for workers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-done:
		}
		if cerr := c.reader.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return err
}
