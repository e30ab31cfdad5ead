// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingWindowLimit: janela deslizante por timestamps (o limite central)
//   - TokenBucketLimit: adapter de golang.org/x/time/rate para domain.Limit
//   - Store: conjuntos de limites por chave, com TTL e janitor
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: estatísticas de admissão
package infra
