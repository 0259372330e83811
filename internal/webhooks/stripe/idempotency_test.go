package stripewebhook

import (
	"context"
	"testing"
	"time"
)

type stubIdempotencyStore struct {
	keys map[string]bool
}

func (s *stubIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *stubIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	if s.keys[key] {
		return "1", nil
	}
	return "", nil
}

func (s *stubIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func TestIdempotencyGuardMarksOnce(t *testing.T) {
	guard, err := NewIdempotencyGuard(&stubIdempotencyStore{}, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery must not be seen, got seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("redelivery must be seen, got seen=%v err=%v", seen, err)
	}
}

func TestIdempotencyGuardDeleteAllowsRetry(t *testing.T) {
	guard, err := NewIdempotencyGuard(&stubIdempotencyStore{}, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), "evt_2"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := guard.Delete(context.Background(), "evt_2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, err := guard.CheckAndMark(context.Background(), "evt_2")
	if err != nil || seen {
		t.Fatalf("cleared event must be processable again, got seen=%v err=%v", seen, err)
	}
}
