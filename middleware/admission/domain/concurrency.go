package domain

import "context"

// SlotPool representa um recurso com capacidade finita (ex: conexões concorrentes).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
//
// Com capacidade 1 o pool vira um lock cancelável via contexto, o que um
// sync.Mutex não oferece.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
