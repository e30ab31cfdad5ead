package application

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// Service concentra a regra de aplicação da admissão bloqueante.
//
// Ele não sabe nada sobre HTTP (headers/status): limita a espera por MaxWait
// e devolve uma decisão com quanto se esperou e, ao rejeitar, um Retry-After
// derivado dos próprios limites.
type Service struct {
	Composite *CompositeLimiter
	// MaxWait limita quanto tempo um chamador pode ficar na fila de admissão.
	// Zero ou negativo: espera indefinida (até o ctx do chamador encerrar).
	MaxWait time.Duration
	// RetryAfter é o fallback quando o composto não informa espera.
	RetryAfter time.Duration
}

// Admit executa a ação protegida respeitando MaxWait.
//
// MaxWait limita só a fila: uma ação já admitida roda sob o ctx original do
// chamador e nunca é abortada pelo teto de espera. Retorna a decisão e,
// separado, o erro da própria ação (quando admitido e a ação falhou). Se a
// espera estourou ou o ctx encerrou antes da admissão, Admitted=false e err
// é nil: a rejeição já está descrita na decisão.
func (s Service) Admit(ctx context.Context, arg any) (domain.Decision, error) {
	if s.Composite == nil {
		return domain.Decision{Admitted: true}, nil
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	start := time.Now()
	waitCtx := ctx
	if s.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.MaxWait)
		defer cancel()
	}

	admitted := false
	err := s.Composite.perform(waitCtx, ctx, arg, func() { admitted = true })
	waited := time.Since(start)

	if !admitted {
		// Desistência antes do registro: nada foi consumido e err é só o
		// encerramento de waitCtx.
		retry := s.Composite.Delay(time.Now())
		if retry <= 0 {
			retry = s.RetryAfter
		}
		return domain.Decision{Admitted: false, Waited: waited, RetryAfter: retry}, nil
	}

	return domain.Decision{Admitted: true, Waited: waited}, err
}

// KeyedService concentra a regra de admissão sem espera, por chave.
//
// Ele não sabe nada sobre HTTP, apenas retorna uma decisão.
type KeyedService struct {
	Store      domain.AdmitterStore
	RetryAfter time.Duration
}

func (s KeyedService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Admitted: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	adm := s.Store.Get(key)
	if adm == nil {
		return domain.Decision{Admitted: true}
	}

	retry, ok := adm.TryAdmit(time.Now())
	if ok {
		return domain.Decision{Admitted: true}
	}
	if retry <= 0 {
		retry = s.RetryAfter
	}
	return domain.Decision{Admitted: false, RetryAfter: retry}
}
