package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/pkg/notify"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	maxDeliver = 5
	ackWait    = 30 * time.Second
)

// ConnectNats opens a reconnecting connection and its JetStream context.
func ConnectNats(url string, l *zap.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("tradingdb"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Sugar().Warnw("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			l.Sugar().Infow("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}
	return nc, js, nil
}

// message is the part of jetstream.Msg the consumer acts on.
type message interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
	Metadata() (*jetstream.MsgMetadata, error)
}

// NatsConsumer applies events from a durable JetStream consumer. A single
// message is in flight at a time so events are applied in stream order.
type NatsConsumer struct {
	js        jetstream.JetStream
	cfg       *config.NatsConfig
	processor *Processor
	notifier  notify.Notifier
	logger    *zap.Logger
}

func NewNatsConsumer(js jetstream.JetStream, cfg *config.Config, processor *Processor, notifier notify.Notifier, l *zap.Logger) *NatsConsumer {
	return &NatsConsumer{
		js:        js,
		cfg:       &cfg.NatsConfig,
		processor: processor,
		notifier:  notifier,
		logger:    l,
	}
}

// EnsureStream creates the event stream when it does not exist.
func (c *NatsConsumer) EnsureStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  []string{c.cfg.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.cfg.Stream, err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (c *NatsConsumer) Run(ctx context.Context) error {
	if err := c.EnsureStream(ctx); err != nil {
		return err
	}
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       c.cfg.Consumer,
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
		MaxAckPending: 1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", c.cfg.Consumer, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.cfg.Subject, err)
	}
	c.logger.Sugar().Infow("Consuming events",
		zap.String("stream", c.cfg.Stream),
		zap.String("subject", c.cfg.Subject),
		zap.String("consumer", c.cfg.Consumer),
	)

	<-ctx.Done()
	consumeCtx.Stop()
	c.logger.Sugar().Infow("Stopped consuming events")
	return nil
}

// handle acks applied messages, terminates ones that can never apply or ran
// out of deliveries and naks the rest for redelivery.
func (c *NatsConsumer) handle(ctx context.Context, msg message) {
	err := c.processor.Process(ctx, msg.Data())
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Sugar().Errorw("Failed to ack message", zap.Error(ackErr))
		}
	case IsPermanent(err):
		c.logger.Sugar().Errorw("Dropping message that cannot be applied", zap.Error(err))
		c.drop(ctx, msg, err)
	case isLastDelivery(msg):
		c.logger.Sugar().Errorw("Dropping message after its last delivery",
			zap.Int("maxDeliver", maxDeliver),
			zap.Error(err),
		)
		c.drop(ctx, msg, err)
	default:
		c.logger.Sugar().Warnw("Message will be redelivered", zap.Error(err))
		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Sugar().Errorw("Failed to nak message", zap.Error(nakErr))
		}
	}
}

func (c *NatsConsumer) drop(ctx context.Context, msg message, err error) {
	notify.Send(ctx, c.notifier, c.logger, "dropped chain event", err)
	if termErr := msg.Term(); termErr != nil {
		c.logger.Sugar().Errorw("Failed to terminate message", zap.Error(termErr))
	}
}

// isLastDelivery reports whether the server will not redeliver msg after a nak.
func isLastDelivery(msg message) bool {
	md, err := msg.Metadata()
	if err != nil || md == nil {
		return false
	}
	return md.NumDelivered >= maxDeliver
}
