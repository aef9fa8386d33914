// Package watermillrewards hands resolved victories to reward and quest collaborators over a
// watermill pub/sub.
package watermillrewards

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"combatd/internal/app/ports"
)

const (
	TopicVictory = "combat.session.victory"

	metaSessionID   = "session_id"
	metaCharacterID = "character_id"
)

type Handler func(ctx context.Context, event ports.CombatResolved) error

type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger *slog.Logger
}

// NewGoChannelBus builds an in-process bus. Messages published with no subscriber are dropped.
func NewGoChannelBus(logger *slog.Logger) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewStdLogger(false, false))
	return NewBus(ch, ch, logger)
}

func NewBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{pub: pub, sub: sub, logger: logger}
}

func (b *Bus) PublishCombatResolved(_ context.Context, event ports.CombatResolved) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode combat resolved: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaSessionID, event.SessionID)
	msg.Metadata.Set(metaCharacterID, event.CharacterID)
	if err := b.pub.Publish(TopicVictory, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicVictory, err)
	}
	return nil
}

// Subscribe runs handler for every victory until ctx is done. It returns once the
// subscription is registered.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, TopicVictory)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicVictory, err)
	}
	go func() {
		for msg := range messages {
			var event ports.CombatResolved
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Error("drop malformed combat resolved message", "msg_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			if err := handler(msg.Context(), event); err != nil {
				b.logger.Error("combat resolved handler failed", "session_id", event.SessionID, "error", err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	if err := b.pub.Close(); err != nil {
		return err
	}
	// GoChannel serves both sides
	if any(b.sub) != any(b.pub) {
		return b.sub.Close()
	}
	return nil
}
