// Package admission fornece adapters HTTP (net/http) para controle de admissão
// por janelas deslizantes compostas, admissão por chave e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (CompositeLimiter, espera limitada, decisão por chave)
//   - infra: implementações concretas (janela deslizante, token bucket, store por chave)
//   - admission (este pacote): middlewares HTTP + wiring/extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. O middleware composto segura cada request até TODOS os limites globais
//     liberarem no mesmo instante (ou até MaxWait estourar -> 429 + Retry-After)
//  2. O middleware por chave decide sem esperar: extrai a chave do cliente
//     (IP/header/XFF) e responde 429 quando os limites daquela chave não liberam
//  3. O middleware de concorrência limita requests em voo (503 ao estourar)
//  4. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como ADMIT_LIMITS, ADMIT_MAX_WAIT, PERKEY_LIMITS, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package admission
