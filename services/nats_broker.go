package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"

	"github.com/medilink/medilink-api/models"
)

const (
	chatStreamName    = "MEDILINK_CHAT"
	chatSubjectPrefix = "chat.messages"
)

// NatsBroker delivers message-insert events through NATS JetStream. Every
// conversation pair maps to its own subject under chat.messages.*, so a
// subscriber gets server-side filtering and per-subject commit ordering,
// which is exactly the per-pair ordering contract the conversation view
// relies on. Consumers are ephemeral: history always comes from the message
// store, the stream only carries what happens after subscribe.
type NatsBroker struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNatsBroker connects to NATS and ensures the chat stream exists
func NewNatsBroker(url string) (*NatsBroker, error) {
	nc, err := nats.Connect(url)
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

	if _, err := js.Stream(ctx, chatStreamName); err != nil {
		logrus.Infof("Stream %q not found, creating it", chatStreamName)
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        chatStreamName,
			Description: "Insert feed for chat messages",
			Subjects:    []string{chatSubjectPrefix + ".>"},
			MaxAge:      24 * time.Hour,
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %q: %w", chatStreamName, err)
		}
	}

	return &NatsBroker{nc: nc, js: js}, nil
}

// Close closes the NATS connection
func (b *NatsBroker) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}

// subjectFor maps a conversation pair to its NATS subject
func subjectFor(userA, userB uint) string {
	return fmt.Sprintf("%s.%s", chatSubjectPrefix, PairKey(userA, userB))
}

// Publish writes the persisted message onto its conversation subject
func (b *NatsBroker) Publish(msg *models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subject := subjectFor(msg.SenderID, msg.ReceiverID)
	if _, err := b.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", subject, err)
	}
	return nil
}

// Subscribe creates an ephemeral consumer filtered to the pair's subject and
// runs onInsert for each delivered message. DeliverNew skips everything
// already in the stream; the caller has that history from the store.
func (b *NatsBroker) Subscribe(userA, userB uint, onInsert func(*models.Message)) (*Subscription, error) {
	subject := subjectFor(userA, userB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, chatStreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckNonePolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: consumer for %q: %v", ErrChannelClosed, subject, err)
	}

	consumeCtx, err := consumer.Consume(func(jsMsg jetstream.Msg) {
		var msg models.Message
		if err := json.Unmarshal(jsMsg.Data(), &msg); err != nil {
			logrus.WithError(err).WithField("subject", jsMsg.Subject()).Warn("Dropping undecodable feed message")
			return
		}
		onInsert(&msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: consume on %q: %v", ErrChannelClosed, subject, err)
	}

	// ConsumeContext.Stop is already safe after a connection drop; the
	// Subscription adds idempotence on top.
	return &Subscription{stop: consumeCtx.Stop}, nil
}
