package infra

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrInvalidMaxCount = errors.New("maxCount must be > 0")
	ErrInvalidWindow   = errors.New("window must be > 0")
)

// SlidingWindowLimit limita a maxCount ações dentro de qualquer intervalo
// móvel de duração window terminando em "agora".
//
// A janela é deslizante (e não fixa/calendário) de propósito: janelas fixas
// permitem dobrar a taxa na virada (rajada logo antes + logo depois do reset).
// Aqui cada ação admitida vira um timestamp em history; a contagem em qualquer
// instante é uma medição real dos últimos window.
//
// Sincronização própria via mutex: a instância pode ser usada diretamente por
// vários goroutines, ou compartilhada entre compostos, sem depender do lock
// de admissão de quem a envolve.
//
// Relógio: se o relógio regredir entre chamadas, entradas "no futuro" não são
// descartadas e o atraso calculado pode passar de window. O limite fica mais
// restritivo, nunca mais permissivo; o atraso retornado nunca é negativo.
type SlidingWindowLimit struct {
	mu       sync.Mutex
	maxCount int
	window   time.Duration
	// history guarda os instantes admitidos, mais antigo primeiro.
	// Cresce pelo fim (RecordTimestamp) e encolhe pelo começo (trim).
	history []time.Time
}

func NewSlidingWindowLimit(maxCount int, window time.Duration) (*SlidingWindowLimit, error) {
	if maxCount <= 0 {
		return nil, fmt.Errorf("sliding window: %w (got %d)", ErrInvalidMaxCount, maxCount)
	}
	if window <= 0 {
		return nil, fmt.Errorf("sliding window: %w (got %s)", ErrInvalidWindow, window)
	}
	return &SlidingWindowLimit{
		maxCount: maxCount,
		window:   window,
	}, nil
}

func (l *SlidingWindowLimit) MaxCount() int         { return l.maxCount }
func (l *SlidingWindowLimit) Window() time.Duration { return l.window }

// CheckDelay descarta entradas expiradas em relação a now e devolve quanto
// falta para liberar uma vaga. Zero significa admissão possível agora.
//
// O descarte é puro e idempotente: chamar de novo com o mesmo now não muda o
// resultado. Nenhuma vaga é consumida aqui.
func (l *SlidingWindowLimit) CheckDelay(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.trimLocked(now)

	if len(l.history) < l.maxCount {
		return 0
	}

	// Cheio: a vaga abre quando a entrada mais antiga ainda contada sair da
	// janela (e não quando a mais recente sair).
	d := l.history[0].Add(l.window).Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

// RecordTimestamp consome uma vaga no instante now.
// Não verifica nada: a decisão de admitir é de quem chama (ex: o composto,
// com o lock de admissão em mãos).
func (l *SlidingWindowLimit) RecordTimestamp(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, now)
}

// trimLocked remove do início as entradas com idade >= window.
// A fronteira é não estrita: uma entrada com exatamente window de idade já
// saiu, então um chamador que chega em oldest+window é admitido sem espera.
func (l *SlidingWindowLimit) trimLocked(now time.Time) {
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(l.history) && !l.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.history = append(l.history[:0], l.history[i:]...)
	}
}
