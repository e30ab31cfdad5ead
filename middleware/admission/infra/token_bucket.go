package infra

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimit adapta um token bucket (golang.org/x/time/rate) para o
// contrato domain.Limit, permitindo misturar um limite de suavização com
// janelas deslizantes dentro do mesmo composto.
//
// A leitura (CheckDelay) usa TokensAt e não reserva nada; o consumo acontece
// só em RecordTimestamp. Isso preserva a separação verificar/registrar que o
// composto exige.
type TokenBucketLimit struct {
	lim *rate.Limiter
}

func NewTokenBucketLimit(rps float64, burst int) *TokenBucketLimit {
	return &TokenBucketLimit{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *TokenBucketLimit) RPS() float64 { return float64(t.lim.Limit()) }
func (t *TokenBucketLimit) Burst() int   { return t.lim.Burst() }

// CheckDelay devolve quanto falta, a partir de now, para existir 1 token.
func (t *TokenBucketLimit) CheckDelay(now time.Time) time.Duration {
	tokens := t.lim.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	limit := t.lim.Limit()
	if limit == rate.Inf {
		return 0
	}
	seconds := (1 - tokens) / float64(limit)
	return time.Duration(seconds * float64(time.Second))
}

// RecordTimestamp consome 1 token no instante now.
// O retorno de AllowN é ignorado: quem chama já confirmou a admissão.
func (t *TokenBucketLimit) RecordTimestamp(now time.Time) {
	_ = t.lim.AllowN(now, 1)
}
