package infra

import (
	"fmt"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// LimitSpec descreve um limite de janela deslizante (maxCount ações por window).
type LimitSpec struct {
	MaxCount int
	Window   time.Duration
}

func (s LimitSpec) String() string {
	return fmt.Sprintf("%d/%s", s.MaxCount, s.Window)
}

// Store é uma implementação de infra que mantém um conjunto de limites por
// chave, com cache e limpeza periódica. Cada chave nova ganha janelas novas
// construídas a partir dos mesmos specs.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	specs        []LimitSpec
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

// storeEntry guarda os limites de uma chave e um lock próprio para que a
// decisão verificar-todos-depois-registrar-todos seja atômica por chave.
type storeEntry struct {
	mu       sync.Mutex
	limits   []domain.Limit
	lastSeen time.Time
}

// TryAdmit implementa domain.Admitter: ou todos os limites liberam agora (e
// todos registram o mesmo instante), ou nada é registrado e retry informa a
// maior espera entre os limites.
func (e *storeEntry) TryAdmit(now time.Time) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var retry time.Duration
	for _, lim := range e.limits {
		if d := lim.CheckDelay(now); d > retry {
			retry = d
		}
	}
	if retry > 0 {
		return retry, false
	}
	for _, lim := range e.limits {
		lim.RecordTimestamp(now)
	}
	return 0, true
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func NewStore(specs []LimitSpec, opts ...StoreOption) (*Store, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("store: at least one limit spec is required")
	}
	for _, spec := range specs {
		// Valida cedo para que Get nunca falhe.
		if _, err := NewSlidingWindowLimit(spec.MaxCount, spec.Window); err != nil {
			return nil, fmt.Errorf("store: invalid spec %s: %w", spec, err)
		}
	}

	s := &Store{
		entries:      make(map[string]*storeEntry),
		specs:        append([]LimitSpec(nil), specs...),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Specs() []LimitSpec          { return append([]LimitSpec(nil), s.specs...) }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.AdmitterStore.
func (s *Store) Get(key domain.Key) domain.Admitter {
	return s.getString(string(key))
}

func (s *Store) getString(key string) *storeEntry {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}

	limits := make([]domain.Limit, 0, len(s.specs))
	for _, spec := range s.specs {
		lim, _ := NewSlidingWindowLimit(spec.MaxCount, spec.Window) // specs validados no construtor
		limits = append(limits, lim)
	}
	ent := &storeEntry{limits: limits, lastSeen: now}
	s.entries[key] = ent
	return ent
}

func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
