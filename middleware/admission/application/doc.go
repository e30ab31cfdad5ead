// Package application contém os casos de uso (regras de aplicação) do controle
// de admissão.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: CompositeLimiter.Perform(ctx, arg) bloqueia até todos os limites
// liberarem e executa a ação protegida; Service.Admit limita a espera;
// KeyedService.Decide decide sem esperar.
package application
