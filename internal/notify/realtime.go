package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubnub "github.com/pubnub/go/v7"

	"ticket-ledger/logger"
	"ticket-ledger/models"
	"ticket-ledger/utils"
)

// Publisher sends one message to one realtime channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// PubNubPublisher publishes through a PubNub client.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(cfg PubNubConfig) *PubNubPublisher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey
	return &PubNubPublisher{pn: pubnub.NewPubNub(pnConfig)}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, message any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, status, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish %s (status %d): %w", channel, status.StatusCode, err)
	}
	return nil
}

// Message is the realtime payload pushed to a wallet channel.
type Message struct {
	Type  string             `json:"type"`
	Seq   uint64             `json:"seq"`
	At    time.Time          `json:"at"`
	Event models.DomainEvent `json:"event"`
}

// Realtime pushes each envelope to the channel of every address in its
// audience. A tripped breaker drops notifications instead of stalling the
// dispatcher.
type Realtime struct {
	pub     Publisher
	prefix  string
	breaker *utils.CircuitBreaker
}

func NewRealtime(pub Publisher, channelPrefix string) *Realtime {
	return &Realtime{
		pub:     pub,
		prefix:  channelPrefix,
		breaker: utils.NewCircuitBreaker("realtime"),
	}
}

func (r *Realtime) Name() string { return "realtime" }

// Channel is the per-wallet channel name.
func (r *Realtime) Channel(addr models.Address) string {
	return r.prefix + addr.String()
}

func (r *Realtime) Publish(ctx context.Context, env models.Envelope) error {
	audience := env.Audience()
	if len(audience) == 0 {
		return nil
	}
	msg := Message{Type: env.Topic, Seq: env.Seq, At: env.At, Event: env.Event}

	var errs []error
	for _, addr := range audience {
		channel := r.Channel(addr)
		_, err := r.breaker.Execute(ctx, func() (any, error) {
			return nil, r.pub.Publish(ctx, channel, msg)
		})
		if err != nil {
			logger.Warnf(ctx, "realtime %s seq %d: %v", channel, env.Seq, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
