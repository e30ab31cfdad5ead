package domain

// Camada de domínio do controle de admissão.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// Limit representa uma restrição de taxa consultável e consumível.
//
// O contrato é dividido de propósito: CheckDelay nunca reserva vaga e
// RecordTimestamp nunca verifica. Quem coordena (ex: um limiter composto)
// decide quando registrar, de forma atômica em relação a outros chamadores.
//
// Implementações devem ser seguras para uso concorrente direto, mesmo quando
// também estiverem dentro de um composto que serializa por fora.
type Limit interface {
	// CheckDelay informa quanto tempo falta, a partir de now, para que este
	// limite libere uma vaga. Zero significa "pode agora". Pode descartar
	// entradas expiradas como efeito colateral, mas nunca consome vaga.
	CheckDelay(now time.Time) time.Duration

	// RecordTimestamp consome uma vaga no instante now. Só deve ser chamado
	// depois que o chamador confirmou a admissão por fora.
	RecordTimestamp(now time.Time)
}

// Action é a função protegida pelo limiter composto.
// O argumento é repassado sem modificação; o erro retorna ao chamador como veio.
type Action func(ctx context.Context, arg any) error

// Admitter decide e registra uma admissão em um único passo atômico.
//
// É a variante "sem espera" do contrato: ou admite agora (registrando em todos
// os limites envolvidos), ou devolve quanto falta para a próxima vaga.
type Admitter interface {
	TryAdmit(now time.Time) (retry time.Duration, ok bool)
}

// AdmitterStore obtém um Admitter por chave (ex: IP, API key, usuário).
// A implementação pode manter cache, TTL, etc.
type AdmitterStore interface {
	Get(Key) Admitter
}

type Decision struct {
	Admitted bool
	// Waited é quanto o chamador ficou bloqueado até a decisão.
	Waited time.Duration
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
