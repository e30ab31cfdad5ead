package infra

import (
	"context"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
)

func TestMemoryStatsStore_RecordAccumulates(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))

	_ = s.Record(context.Background(), domain.StatsEvent{
		Key: "k1", Admitted: true, Waited: 150 * time.Millisecond,
		Method: "GET", Path: "/painel",
	})
	_ = s.Record(context.Background(), domain.StatsEvent{
		Key: "k1", Admitted: false, Waited: 50 * time.Millisecond,
		Method: "GET", Path: "/painel",
	})

	total := s.Total()
	if total.Admitted != 1 || total.Rejected != 1 {
		t.Fatalf("expected 1 admitted / 1 rejected, got %+v", total)
	}
	if total.Waited != 200*time.Millisecond {
		t.Fatalf("expected accumulated wait of 200ms, got %s", total.Waited)
	}

	route := s.ByRoute()["GET /painel"]
	if route.Admitted != 1 || route.Rejected != 1 {
		t.Fatalf("expected per-route counters, got %+v", route)
	}

	key := s.ByKey()["k1"]
	if key.Admitted != 1 || key.Rejected != 1 {
		t.Fatalf("expected per-key counters with WithTrackKeys, got %+v", key)
	}
}
