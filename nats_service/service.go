package nats_service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsService is a store.Notifier backed by a JetStream stream, so gateways
// in different processes see each other's appends. History is read from the
// tree; consumers here only deliver what is published after they start.
type NatsService struct {
	js     jetstream.JetStream
	nc     *nats.Conn
	stream string
	prefix string
}

type Options struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxAge        time.Duration
}

// NewNatsService connects to NATS and makes sure the stream exists.
func NewNatsService(opts Options) (*NatsService, error) {
	nc, err := nats.Connect(opts.URL,
		nats.Name("pairchat"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats_disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats_reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = time.Hour
	}
	stream, err := js.Stream(ctx, opts.StreamName)
	if err != nil {
		logger.Info("nats_stream_missing", "stream", opts.StreamName)
		stream, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        opts.StreamName,
			Description: "Live chat appends",
			Subjects:    []string{opts.SubjectPrefix + ".*.*"},
			MaxAge:      maxAge,
			Storage:     jetstream.MemoryStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream '%s': %w", opts.StreamName, err)
		}
		logger.Info("nats_stream_created", "stream", opts.StreamName)
	} else {
		logger.Info("nats_stream_found", "stream", stream.CachedInfo().Config.Name)
	}

	return &NatsService{js: js, nc: nc, stream: opts.StreamName, prefix: opts.SubjectPrefix}, nil
}

// Close drains the NATS connection.
func (s *NatsService) Close() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
}

// Subject is the NATS subject carrying appends for one side of a chat.
func (s *NatsService) Subject(key models.ConversationKey) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, key.OwnerID, key.PartnerID)
}

// Publish sends an encoded message to the conversation's subject.
func (s *NatsService) Publish(ctx context.Context, key models.ConversationKey, payload []byte) error {
	subject := s.Subject(key)
	if _, err := s.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject '%s': %w", subject, err)
	}
	return nil
}

// Subscribe starts an ephemeral consumer that delivers new appends on the
// conversation's subject. onErr is called once if the consumer is lost.
func (s *NatsService) Subscribe(key models.ConversationKey, onEvent func(payload []byte), onErr func(error)) (func(), error) {
	subject := s.Subject(key)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cons, err := s.js.CreateOrUpdateConsumer(ctx, s.stream, jetstream.ConsumerConfig{
		FilterSubject:     subject,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckNonePolicy,
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for subject '%s': %w", subject, err)
	}

	var lost sync.Once
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		onEvent(msg.Data())
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		if errors.Is(err, jetstream.ErrConsumerDeleted) || errors.Is(err, jetstream.ErrNoHeartbeat) {
			lost.Do(func() { onErr(err) })
			return
		}
		logger.Warn("nats_consume_error", "subject", subject, "error", err)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming from subject '%s': %w", subject, err)
	}
	logger.Debug("nats_subscribed", "subject", subject)

	var once sync.Once
	return func() { once.Do(consumeCtx.Stop) }, nil
}
