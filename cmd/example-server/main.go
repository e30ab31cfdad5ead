package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

func main() {
	// Exemplo: injetando os middlewares diretamente no seu webserver (sem proxy)
	perSecond, err := infra.NewSlidingWindowLimit(5, 1*time.Second)
	if err != nil {
		log.Fatalf("limit error: %v", err)
	}

	perKeyStore, err := infra.NewStore([]infra.LimitSpec{
		{MaxCount: 2, Window: 1 * time.Second},
	})
	if err != nil {
		log.Fatalf("store error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	perKeyStore.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{Max: 50})(h)

	mw, err := admission.Middleware(admission.Options{
		Limits:              []domain.Limit{perSecond},
		MaxWait:             3 * time.Second,
		AddAdmissionHeaders: true,
	})
	if err != nil {
		log.Fatalf("middleware error: %v", err)
	}
	h = mw(h)

	h = admission.PerKeyMiddleware(admission.PerKeyOptions{
		Store:               perKeyStore,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddAdmissionHeaders: true,
	})(h)

	srv := &http.Server{
		Addr:              ":8082",
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
