package admission

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

// PerKeyOptions configura o middleware de admissão por chave (sem espera).
type PerKeyOptions struct {
	// Store entrega um Admitter por chave (ex: infra.Store). Obrigatório
	// para o middleware ter efeito; nil vira passthrough.
	Store               domain.AdmitterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddAdmissionHeaders bool
}

// PerKeyMiddleware decide sem esperar: ou os limites da chave liberam agora
// (registrando a admissão de forma atômica por chave), ou responde
// RejectStatus com Retry-After derivado do limite mais apertado.
func PerKeyMiddleware(opts PerKeyOptions) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.KeyedService{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddAdmissionHeaders {
				w.Header().Set("X-Admission-Key", key)
			}

			dec := svc.Decide(domain.Key(key))
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:      domain.Key(key),
					Admitted: dec.Admitted,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       time.Now(),
				})
			}
			if !dec.Admitted {
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
