package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/internal/watch"
	"github.com/amouradev/amoura-backend/pkg/enums"
)

type stubRemote struct {
	payloads   [][]byte
	attributes []map[string]string
	err        error
}

func (s *stubRemote) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	s.payloads = append(s.payloads, data)
	s.attributes = append(s.attributes, attributes)
	return s.err
}

func testPublisher(registry *watch.Registry, remote remotePublisher) *Publisher {
	return &Publisher{
		registry: registry,
		remote:   remote,
		now:      func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func TestReputationChangedFansOutBothWays(t *testing.T) {
	registry := watch.NewRegistry()
	defer registry.Close()
	remote := &stubRemote{}
	pub := testPublisher(registry, remote)
	userID := uuid.New()

	events, cancel := registry.Subscribe(userID)
	defer cancel()

	pub.ReputationChanged(context.Background(), userID, enums.ReputationTierTrusted)

	select {
	case event := <-events:
		if event.Topic != watch.TopicReputation || event.Kind != "trusted" {
			t.Fatalf("unexpected local event %+v", event)
		}
	default:
		t.Fatal("expected local event")
	}

	if len(remote.payloads) != 1 {
		t.Fatalf("expected one remote publish, got %d", len(remote.payloads))
	}
	var envelope Envelope
	if err := json.Unmarshal(remote.payloads[0], &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.EventType != TypeReputationChanged || envelope.Tier != "trusted" || envelope.UserID != userID {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.EventID == "" {
		t.Fatal("expected event id assigned")
	}
	if remote.attributes[0]["event_type"] != TypeReputationChanged {
		t.Fatalf("unexpected attributes %v", remote.attributes[0])
	}
}

func TestAccessChangedNotifiesBothParties(t *testing.T) {
	registry := watch.NewRegistry()
	defer registry.Close()
	pub := testPublisher(registry, nil)
	owner, requester := uuid.New(), uuid.New()

	ownerEvents, cancelOwner := registry.Subscribe(owner)
	defer cancelOwner()
	requesterEvents, cancelRequester := registry.Subscribe(requester)
	defer cancelRequester()

	pub.AccessChanged(context.Background(), owner, requester, "granted")

	for name, ch := range map[string]<-chan watch.Event{"owner": ownerEvents, "requester": requesterEvents} {
		select {
		case event := <-ch:
			if event.Kind != "granted" {
				t.Fatalf("%s: unexpected event %+v", name, event)
			}
		default:
			t.Fatalf("%s: expected event", name)
		}
	}
}

func TestRemoteFailureDoesNotPanicOrBlock(t *testing.T) {
	registry := watch.NewRegistry()
	defer registry.Close()
	remote := &stubRemote{err: errors.New("topic unavailable")}
	pub := testPublisher(registry, remote)

	pub.SubscriptionChanged(context.Background(), uuid.New(), enums.SubscriptionTierPlus)

	if len(remote.payloads) != 1 {
		t.Fatalf("expected publish attempted, got %d", len(remote.payloads))
	}
}

func TestNilRegistryAndRemoteAreTolerated(t *testing.T) {
	pub := testPublisher(nil, nil)
	pub.SubscriptionChanged(context.Background(), uuid.New(), enums.SubscriptionTierElite)
	pub.AccessChanged(context.Background(), uuid.New(), uuid.New(), "revoked")
}
