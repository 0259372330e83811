package events

import (
	"context"
	"encoding/json"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/internal/watch"
	"github.com/amouradev/amoura-backend/pkg/enums"
	"github.com/amouradev/amoura-backend/pkg/logger"
)

const (
	publishTimeout = 10 * time.Second

	TypeReputationChanged   = "reputation.tier_changed"
	TypeSubscriptionChanged = "subscription.changed"
	TypeAccessChanged       = "access.changed"
)

// Envelope is the JSON payload published to the domain topic.
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`

	// Type-specific fields, present depending on EventType.
	Tier          string     `json:"tier,omitempty"`
	Kind          string     `json:"kind,omitempty"`
	CounterpartID *uuid.UUID `json:"counterpart_id,omitempty"`
}

type remotePublisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// Publisher fans domain change events out to the in-process watch registry
// and to the Pub/Sub domain topic. Remote publish failures are logged, not
// surfaced: the local state change already committed.
type Publisher struct {
	registry *watch.Registry
	remote   remotePublisher
	logg     *logger.Logger
	now      func() time.Time
}

// NewPublisher builds the domain event publisher. remote may be nil, in
// which case events stay in-process only.
func NewPublisher(registry *watch.Registry, remote *gcppubsub.Publisher, logg *logger.Logger) *Publisher {
	return &Publisher{
		registry: registry,
		remote:   newGCPPublisher(remote),
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReputationChanged reports a reputation tier transition.
func (p *Publisher) ReputationChanged(ctx context.Context, userID uuid.UUID, tier enums.ReputationTier) {
	p.emit(ctx, watch.Event{UserID: userID, Topic: watch.TopicReputation, Kind: tier.String()}, Envelope{
		EventType: TypeReputationChanged,
		UserID:    userID,
		Tier:      tier.String(),
	})
}

// SubscriptionChanged reports a subscription tier or status transition.
func (p *Publisher) SubscriptionChanged(ctx context.Context, userID uuid.UUID, tier enums.SubscriptionTier) {
	p.emit(ctx, watch.Event{UserID: userID, Topic: watch.TopicSubscription, Kind: tier.String()}, Envelope{
		EventType: TypeSubscriptionChanged,
		UserID:    userID,
		Tier:      tier.String(),
	})
}

// AccessChanged reports a private-access lifecycle transition. Both sides
// of the pair get a local event; the remote topic gets one message.
func (p *Publisher) AccessChanged(ctx context.Context, ownerID, counterpartID uuid.UUID, kind string) {
	at := p.now()
	if p.registry != nil {
		p.registry.Publish(watch.Event{UserID: ownerID, Topic: watch.TopicAccess, Kind: kind, At: at})
		p.registry.Publish(watch.Event{UserID: counterpartID, Topic: watch.TopicAccess, Kind: kind, At: at})
	}
	p.publishRemote(ctx, Envelope{
		EventType:     TypeAccessChanged,
		UserID:        ownerID,
		OccurredAt:    at,
		Kind:          kind,
		CounterpartID: &counterpartID,
	})
}

func (p *Publisher) emit(ctx context.Context, local watch.Event, envelope Envelope) {
	at := p.now()
	local.At = at
	envelope.OccurredAt = at
	if p.registry != nil {
		p.registry.Publish(local)
	}
	p.publishRemote(ctx, envelope)
}

func (p *Publisher) publishRemote(ctx context.Context, envelope Envelope) {
	if p.remote == nil {
		return
	}
	envelope.EventID = uuid.NewString()

	data, err := json.Marshal(envelope)
	if err != nil {
		p.logError(ctx, envelope, err)
		return
	}
	attributes := map[string]string{
		"event_id":    envelope.EventID,
		"event_type":  envelope.EventType,
		"user_id":     envelope.UserID.String(),
		"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.remote.Publish(publishCtx, data, attributes); err != nil {
		p.logError(ctx, envelope, err)
	}
}

func (p *Publisher) logError(ctx context.Context, envelope Envelope, err error) {
	if p.logg == nil {
		return
	}
	ctx = p.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"user_id":    envelope.UserID.String(),
	})
	p.logg.Error(ctx, "publish domain event", err)
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func newGCPPublisher(pub *gcppubsub.Publisher) remotePublisher {
	if pub == nil {
		return nil
	}
	return &gcpPublisher{pub: pub}
}

func (g *gcpPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := g.pub.Publish(ctx, &gcppubsub.Message{Data: data, Attributes: attributes})
	if result == nil {
		return nil
	}
	_, err := result.Get(ctx)
	return err
}
