package admission

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

type KeyFunc func(r *http.Request) string

// Options configura o middleware de admissão composta (bloqueante).
type Options struct {
	// Limits são os limites globais avaliados em conjunto. Obrigatório.
	Limits []domain.Limit
	Stats  domain.StatsStore
	// KeyFn identifica o cliente apenas para fins de estatística; a admissão
	// composta é global, não por chave.
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	// MaxWait limita quanto tempo um request pode esperar na fila de admissão
	// antes de receber RejectStatus. Zero: espera até o cliente desistir.
	MaxWait             time.Duration
	RetryAfter          time.Duration
	AddAdmissionHeaders bool
}

// limitInfo é o mínimo que um limite precisa expor para virar header.
type limitInfo interface {
	MaxCount() int
	Window() time.Duration
}

// serveCall carrega um request através do CompositeLimiter.
type serveCall struct {
	next http.Handler
	w    http.ResponseWriter
	r    *http.Request

	start      time.Time
	addHeaders bool
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware segura cada request até todos os limites liberarem no mesmo
// instante, então repassa ao próximo handler. O handler executa dentro da
// seção de admissão, ou seja, as chamadas protegidas são serializadas. Esse
// é o contrato do composto, pensado para proteger upstreams com teto de taxa.
//
// Retorna erro de configuração quando Limits está vazio.
func Middleware(opts Options) (func(next http.Handler) http.Handler, error) {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	composite, err := application.NewCompositeLimiter(
		func(_ context.Context, arg any) error {
			call := arg.(serveCall)
			if call.addHeaders {
				// Precisa entrar antes do handler escrever a resposta.
				call.w.Header().Set("X-Admission-Wait", formatFloat(time.Since(call.start).Seconds()))
			}
			call.next.ServeHTTP(call.w, call.r)
			return nil
		},
		opts.Limits,
	)
	if err != nil {
		return nil, err
	}

	svc := application.Service{
		Composite:  composite,
		MaxWait:    opts.MaxWait,
		RetryAfter: opts.RetryAfter,
	}

	limitsHeader := describeLimits(opts.Limits)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddAdmissionHeaders {
				w.Header().Set("X-Admission-Key", key)
				if limitsHeader != "" {
					w.Header().Set("X-Admission-Limits", limitsHeader)
				}
			}

			dec, _ := svc.Admit(r.Context(), serveCall{
				next:       next,
				w:          w,
				r:          r,
				start:      time.Now(),
				addHeaders: opts.AddAdmissionHeaders,
			})
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:      domain.Key(key),
					Admitted: dec.Admitted,
					Waited:   dec.Waited,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       time.Now(),
				})
			}
			if !dec.Admitted {
				if opts.AddAdmissionHeaders {
					w.Header().Set("X-Admission-Wait", formatFloat(dec.Waited.Seconds()))
				}
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			// Admitido: o próximo handler já rodou dentro da ação do composto.
		})
	}, nil
}

func describeLimits(limits []domain.Limit) string {
	parts := make([]string, 0, len(limits))
	for _, lim := range limits {
		if li, ok := lim.(limitInfo); ok {
			parts = append(parts, formatInt(li.MaxCount())+"/"+li.Window().String())
		}
	}
	return strings.Join(parts, " ")
}
