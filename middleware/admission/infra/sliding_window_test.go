package infra

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewSlidingWindowLimit_Validation(t *testing.T) {
	if _, err := NewSlidingWindowLimit(0, time.Second); !errors.Is(err, ErrInvalidMaxCount) {
		t.Fatalf("expected ErrInvalidMaxCount, got %v", err)
	}
	if _, err := NewSlidingWindowLimit(-1, time.Second); !errors.Is(err, ErrInvalidMaxCount) {
		t.Fatalf("expected ErrInvalidMaxCount for negative, got %v", err)
	}
	if _, err := NewSlidingWindowLimit(1, 0); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestSlidingWindowLimit_EmptyHistoryHasZeroDelay(t *testing.T) {
	lim, err := NewSlidingWindowLimit(1, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := lim.CheckDelay(time.Now()); d != 0 {
		t.Fatalf("expected zero delay with empty history, got %s", d)
	}
}

func TestSlidingWindowLimit_DelayComesFromOldestEntry(t *testing.T) {
	lim, err := NewSlidingWindowLimit(2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t0 := time.Now()
	lim.RecordTimestamp(t0)
	lim.RecordTimestamp(t0.Add(100 * time.Millisecond))

	// cheio: a vaga abre quando a MAIS ANTIGA sair, não a mais recente
	if d := lim.CheckDelay(t0.Add(200 * time.Millisecond)); d != 800*time.Millisecond {
		t.Fatalf("expected 800ms delay from oldest entry, got %s", d)
	}
}

func TestSlidingWindowLimit_BoundaryIsNonStrict(t *testing.T) {
	lim, err := NewSlidingWindowLimit(1, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t0 := time.Now()
	lim.RecordTimestamp(t0)

	if d := lim.CheckDelay(t0.Add(999 * time.Millisecond)); d != 1*time.Millisecond {
		t.Fatalf("expected 1ms just before the boundary, got %s", d)
	}
	// exatamente oldest+window: a entrada já saiu, admissão sem espera
	if d := lim.CheckDelay(t0.Add(1 * time.Second)); d != 0 {
		t.Fatalf("expected zero delay exactly at the boundary, got %s", d)
	}
}

func TestSlidingWindowLimit_TrimIsIdempotent(t *testing.T) {
	lim, err := NewSlidingWindowLimit(2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t0 := time.Now()
	lim.RecordTimestamp(t0)
	lim.RecordTimestamp(t0.Add(10 * time.Millisecond))

	now := t0.Add(500 * time.Millisecond)
	first := lim.CheckDelay(now)
	for i := 0; i < 5; i++ {
		if d := lim.CheckDelay(now); d != first {
			t.Fatalf("expected repeated CheckDelay to be stable, got %s then %s", first, d)
		}
	}
}

func TestSlidingWindowLimit_ClockRegressionNeverUndercounts(t *testing.T) {
	lim, err := NewSlidingWindowLimit(1, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t0 := time.Now()
	lim.RecordTimestamp(t0)

	// relógio regrediu: a entrada fica "no futuro", não é descartada, e o
	// atraso pode passar da janela: mais restritivo, nunca negativo
	d := lim.CheckDelay(t0.Add(-100 * time.Millisecond))
	if d != 1100*time.Millisecond {
		t.Fatalf("expected 1.1s delay after regression, got %s", d)
	}
	if d < 0 {
		t.Fatalf("delay must never be negative, got %s", d)
	}
}

func TestSlidingWindowLimit_ConcurrentUseKeepsInvariant(t *testing.T) {
	lim, err := NewSlidingWindowLimit(3, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			lim.RecordTimestamp(base.Add(time.Duration(n) * time.Millisecond))
			_ = lim.CheckDelay(base.Add(time.Duration(n) * time.Millisecond))
		}(i)
	}
	wg.Wait()

	lim.mu.Lock()
	got := len(lim.history)
	lim.mu.Unlock()
	if got != 20 {
		t.Fatalf("expected all 20 in-window records kept, got %d", got)
	}
	if d := lim.CheckDelay(base.Add(time.Second)); d <= 0 {
		t.Fatalf("expected positive delay with a full window, got %s", d)
	}
}
