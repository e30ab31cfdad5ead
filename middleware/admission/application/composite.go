package application

import (
	"context"
	"errors"
	"time"

	"admission-gateway/middleware/admission/domain"
)

var (
	// ErrNoAction indica construção sem a função protegida.
	ErrNoAction = errors.New("admission: action is required")
	// ErrNoLimits indica construção sem nenhum limite.
	ErrNoLimits = errors.New("admission: at least one limit is required")
)

// CompositeLimiter combina vários limites independentes em uma única decisão
// de admissão e executa a ação protegida somente quando todos liberam no
// mesmo instante.
//
// Protocolo de admissão (serializado por um slot de capacidade 1):
//
//  1. adquire o slot (só uma tentativa de admissão avança por vez);
//  2. calcula delay_i = CheckDelay(now) em cada limite; maxDelay = max(delay_i);
//  3. maxDelay == 0: registra now em todos os limites (tudo-ou-nada, ainda
//     com o slot em mãos), executa a ação e devolve o erro dela como veio;
//  4. maxDelay > 0: dorme exatamente maxDelay SEM soltar o slot e volta ao
//     passo 2. Soltar o slot durante a espera permitiria outro chamador
//     consumir a "última" vaga entre a checagem e o registro.
//
// Nada é registrado até maxDelay == 0; registro parcial não existe. Um
// timestamp registrado nunca é retirado, inclusive quando a ação falha: a
// vaga foi legitimamente consumida na admissão.
//
// O slot é um channel (e não sync.Mutex) para que a espera seja cancelável:
// o chamador pode desistir via ctx tanto na fila do slot quanto durante o
// sono do passo 4. Depois do registro não há mais cancelamento.
type CompositeLimiter struct {
	limits []domain.Limit
	action domain.Action
	slot   chan struct{}
	now    func() time.Time
}

type CompositeOption func(*CompositeLimiter)

// WithClock troca a fonte de "agora" (padrão time.Now). Útil em testes.
func WithClock(now func() time.Time) CompositeOption {
	return func(c *CompositeLimiter) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCompositeLimiter(action domain.Action, limits []domain.Limit, opts ...CompositeOption) (*CompositeLimiter, error) {
	if action == nil {
		return nil, ErrNoAction
	}
	if len(limits) == 0 {
		return nil, ErrNoLimits
	}

	c := &CompositeLimiter{
		limits: append([]domain.Limit(nil), limits...),
		action: action,
		slot:   make(chan struct{}, 1),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Perform bloqueia até todos os limites liberarem simultaneamente, executa a
// ação exatamente uma vez com arg repassado sem modificação e retorna o que a
// ação retornar.
//
// Cancelamento via ctx só acontece antes do registro: na fila do slot ou
// durante a espera de maxDelay. Se ctx encerrar aí, nada foi consumido e o
// erro do ctx é retornado.
func (c *CompositeLimiter) Perform(ctx context.Context, arg any) error {
	return c.perform(ctx, ctx, arg, nil)
}

// perform separa o ctx da espera do ctx da ação: waitCtx só governa a fila e
// o sono do passo 4; a ação admitida roda sob actionCtx. Quem impõe um teto
// de fila (Service.MaxWait) cancela apenas waitCtx, nunca uma ação em voo.
// onAdmit, quando não-nil, é chamado logo após o registro, antes da ação.
func (c *CompositeLimiter) perform(waitCtx, actionCtx context.Context, arg any, onAdmit func()) error {
	select {
	case c.slot <- struct{}{}:
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
	defer func() { <-c.slot }()

	for {
		now := c.now()

		maxDelay := maxCheckDelay(c.limits, now)
		if maxDelay == 0 {
			// Todos liberam neste instante: reserva em todos com o mesmo now,
			// atômico em relação a outras tentativas (slot ainda em mãos).
			for _, lim := range c.limits {
				lim.RecordTimestamp(now)
			}
			if onAdmit != nil {
				onAdmit()
			}
			return c.action(actionCtx, arg)
		}

		// Dorme exatamente maxDelay e rechecar. Acordar tarde é seguro (a
		// vaga continua aberta); acordar cedo seria bug, e timers do runtime
		// nunca disparam antes da hora.
		timer := time.NewTimer(maxDelay)
		select {
		case <-timer.C:
		case <-waitCtx.Done():
			timer.Stop()
			return waitCtx.Err()
		}
	}
}

// Delay informa, sem bloquear nem reservar nada, a espera atualmente prevista
// (o maior atraso entre os limites). Serve para derivar Retry-After.
func (c *CompositeLimiter) Delay(now time.Time) time.Duration {
	return maxCheckDelay(c.limits, now)
}

func maxCheckDelay(limits []domain.Limit, now time.Time) time.Duration {
	var maxDelay time.Duration
	for _, lim := range limits {
		if d := lim.CheckDelay(now); d > maxDelay {
			maxDelay = d
		}
	}
	return maxDelay
}
