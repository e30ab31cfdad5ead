package infra

import (
	"errors"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
)

func TestNewStore_RequiresValidSpecs(t *testing.T) {
	if _, err := NewStore(nil); err == nil {
		t.Fatalf("expected error for empty specs")
	}
	_, err := NewStore([]LimitSpec{{MaxCount: 0, Window: time.Second}})
	if !errors.Is(err, ErrInvalidMaxCount) {
		t.Fatalf("expected ErrInvalidMaxCount, got %v", err)
	}
}

func TestStore_GetSameKeyReturnsSameAdmitter(t *testing.T) {
	s, err := NewStore([]LimitSpec{{MaxCount: 10, Window: time.Second}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a1 := s.Get(domain.Key("k"))
	a2 := s.Get(domain.Key("k"))
	if a1 != a2 {
		t.Fatalf("expected same admitter pointer for same key")
	}
}

func TestStore_TryAdmitBlocksWhenKeyIsFull(t *testing.T) {
	s, err := NewStore([]LimitSpec{{MaxCount: 1, Window: time.Second}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now()
	adm := s.Get(domain.Key("k"))

	if _, ok := adm.TryAdmit(now); !ok {
		t.Fatalf("expected first TryAdmit to be admitted")
	}
	retry, ok := adm.TryAdmit(now)
	if ok {
		t.Fatalf("expected second immediate TryAdmit to be blocked (maxCount=1)")
	}
	if retry != 1*time.Second {
		t.Fatalf("expected retry of a full window, got %s", retry)
	}

	// outra chave tem janelas próprias
	if _, ok := s.Get(domain.Key("other")).TryAdmit(now); !ok {
		t.Fatalf("expected a fresh key to be admitted")
	}
}

type fullLimit struct{}

func (fullLimit) CheckDelay(time.Time) time.Duration { return time.Minute }
func (fullLimit) RecordTimestamp(time.Time)          {}

type countingLimit struct{ records int }

func (c *countingLimit) CheckDelay(time.Time) time.Duration { return 0 }
func (c *countingLimit) RecordTimestamp(time.Time)          { c.records++ }

func TestStoreEntry_TryAdmitIsAllOrNothing(t *testing.T) {
	counting := &countingLimit{}
	e := &storeEntry{limits: []domain.Limit{fullLimit{}, counting}}

	retry, ok := e.TryAdmit(time.Now())
	if ok {
		t.Fatalf("expected rejection while one limit is full")
	}
	if retry != time.Minute {
		t.Fatalf("expected retry from the full limit, got %s", retry)
	}
	if counting.records != 0 {
		t.Fatalf("rejection must not record on any limit, got %d records", counting.records)
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	s, err := NewStore(
		[]LimitSpec{{MaxCount: 10, Window: time.Second}},
		WithIdleTTL(2*time.Millisecond),
		WithCleanupEvery(0),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := s.Get(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected admitter to be recreated after cleanup")
	}
}
