package infra

import (
	"testing"
	"time"
)

func TestTokenBucketLimit_ZeroDelayWithTokenAvailable(t *testing.T) {
	lim := NewTokenBucketLimit(10, 1)

	now := time.Now()
	if d := lim.CheckDelay(now); d != 0 {
		t.Fatalf("expected zero delay with a full bucket, got %s", d)
	}
	// CheckDelay não consome: repetir não muda nada
	if d := lim.CheckDelay(now); d != 0 {
		t.Fatalf("expected CheckDelay to be consumption-free, got %s", d)
	}
}

func TestTokenBucketLimit_RecordConsumesToken(t *testing.T) {
	lim := NewTokenBucketLimit(10, 1)

	now := time.Now()
	lim.RecordTimestamp(now)

	d := lim.CheckDelay(now)
	if d < 90*time.Millisecond || d > 110*time.Millisecond {
		t.Fatalf("expected ~100ms delay after consuming the burst at 10rps, got %s", d)
	}
	// depois do delay anunciado, o token voltou
	if d2 := lim.CheckDelay(now.Add(d + time.Millisecond)); d2 != 0 {
		t.Fatalf("expected zero delay after the refill, got %s", d2)
	}
}

func TestTokenBucketLimit_Accessors(t *testing.T) {
	lim := NewTokenBucketLimit(2.5, 7)
	if got := lim.RPS(); got != 2.5 {
		t.Fatalf("expected RPS=2.5, got %v", got)
	}
	if got := lim.Burst(); got != 7 {
		t.Fatalf("expected Burst=7, got %d", got)
	}
}
