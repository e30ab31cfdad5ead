package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

// Exemplo: usando o CompositeLimiter direto (sem middleware) para espaçar
// chamadas HTTP a um serviço com teto de taxa.
//
//	TARGET_URL=http://localhost:8081/painel CALLS=10 go run ./cmd/example-client
func main() {
	targetURL := getenvDefault("TARGET_URL", "http://localhost:8081/painel")
	calls := getenvIntDefault("CALLS", 10)

	// Limite apertado (1 por segundo) + teto folgado por minuto: o apertado
	// dita o espaçamento, o folgado segura rajadas longas.
	perSecond, err := infra.NewSlidingWindowLimit(1, 1*time.Second)
	if err != nil {
		log.Fatalf("limit error: %v", err)
	}
	perMinute, err := infra.NewSlidingWindowLimit(30, 1*time.Minute)
	if err != nil {
		log.Fatalf("limit error: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	fetch := func(ctx context.Context, arg any) error {
		url := arg.(string)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		log.Printf("GET %s -> %s", url, resp.Status)
		return nil
	}

	limiter, err := application.NewCompositeLimiter(fetch, []domain.Limit{perSecond, perMinute})
	if err != nil {
		log.Fatalf("limiter error: %v", err)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := limiter.Perform(context.Background(), targetURL); err != nil {
				log.Printf("call %d error: %v", n, err)
				return
			}
			log.Printf("call %d admitted after %s", n, time.Since(start).Round(time.Millisecond))
		}(i)
	}
	wg.Wait()

	log.Printf("%d calls in %s", calls, time.Since(start).Round(time.Millisecond))
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
