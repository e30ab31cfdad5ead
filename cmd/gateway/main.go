package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	var statsStore domain.StatsStore
	if cfg.statsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h := http.Handler(proxy)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)

	if cfg.admitEnabled {
		limits, err := buildLimits(cfg.admitSpecs, cfg.admitSmoothRPS, cfg.admitSmoothBurst)
		if err != nil {
			log.Fatalf("admit limits error: %v", err)
		}
		mw, err := admission.Middleware(admission.Options{
			Limits:              limits,
			Stats:               statsStore,
			KeyHeader:           cfg.keyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			MaxWait:             cfg.admitMaxWait,
			RetryAfter:          cfg.retryAfter,
			AddAdmissionHeaders: cfg.addHeaders,
		})
		if err != nil {
			log.Fatalf("admission middleware error: %v", err)
		}
		h = mw(h)
	}

	if cfg.perKeyEnabled {
		store, err := infra.NewStore(cfg.perKeySpecs)
		if err != nil {
			log.Fatalf("per-key store error: %v", err)
		}
		store.StartJanitor(ctx)

		h = admission.PerKeyMiddleware(admission.PerKeyOptions{
			Store:               store,
			Stats:               statsStore,
			KeyHeader:           cfg.keyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddAdmissionHeaders: cfg.addHeaders,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("admit: enabled=%v limits=%q maxWait=%s smoothRPS=%.3f smoothBurst=%d", cfg.admitEnabled, specsString(cfg.admitSpecs), cfg.admitMaxWait, cfg.admitSmoothRPS, cfg.admitSmoothBurst)
	log.Printf("per-key: enabled=%v limits=%q keyHeader=%q trustXFF=%v", cfg.perKeyEnabled, specsString(cfg.perKeySpecs), cfg.keyHeader, cfg.trustXFF)
	log.Printf("stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v", cfg.statsEnabled, cfg.statsRedisAddr, cfg.statsBucket, cfg.statsTTL, cfg.statsTrackKeys)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr  string
	upstreamURL string

	admitEnabled     bool
	admitSpecs       []infra.LimitSpec
	admitMaxWait     time.Duration
	admitSmoothRPS   float64
	admitSmoothBurst int

	perKeyEnabled bool
	perKeySpecs   []infra.LimitSpec

	keyHeader  string
	trustXFF   bool
	retryAfter time.Duration
	addHeaders bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.admitEnabled = getenvBoolDefault("ADMIT_ENABLED", true)
	admitLimits := getenvDefault("ADMIT_LIMITS", "2/1s,100/1m")
	cfg.admitMaxWait = getenvDurationDefault("ADMIT_MAX_WAIT", 10*time.Second)
	cfg.admitSmoothRPS = getenvFloatDefault("ADMIT_SMOOTH_RPS", 0)
	cfg.admitSmoothBurst = getenvIntDefault("ADMIT_SMOOTH_BURST", 1)

	cfg.perKeyEnabled = getenvBoolDefault("PERKEY_ENABLED", false)
	perKeyLimits := getenvDefault("PERKEY_LIMITS", "")

	cfg.keyHeader = os.Getenv("KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.addHeaders = getenvBoolDefault("ADD_ADMISSION_HEADERS", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "admission:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}

	var err error
	if cfg.admitEnabled {
		cfg.admitSpecs, err = parseLimitSpecs(admitLimits)
		if err != nil {
			return config{}, fmt.Errorf("ADMIT_LIMITS: %w", err)
		}
	}
	if cfg.perKeyEnabled {
		if strings.TrimSpace(perKeyLimits) == "" {
			return config{}, errors.New("PERKEY_LIMITS is required when PERKEY_ENABLED=true")
		}
		cfg.perKeySpecs, err = parseLimitSpecs(perKeyLimits)
		if err != nil {
			return config{}, fmt.Errorf("PERKEY_LIMITS: %w", err)
		}
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	if cfg.admitSmoothRPS < 0 {
		return config{}, errors.New("ADMIT_SMOOTH_RPS must be >= 0")
	}
	if cfg.admitSmoothRPS > 0 && cfg.admitSmoothBurst <= 0 {
		return config{}, errors.New("ADMIT_SMOOTH_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

// parseLimitSpecs aceita "2/1s,100/1m": pares maxCount/janela separados por vírgula.
func parseLimitSpecs(s string) ([]infra.LimitSpec, error) {
	parts := strings.Split(s, ",")
	specs := make([]infra.LimitSpec, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		count, window, ok := strings.Cut(part, "/")
		if !ok {
			return nil, fmt.Errorf("invalid limit %q (want maxCount/window, e.g. 2/1s)", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid maxCount in %q", part)
		}
		w, err := time.ParseDuration(strings.TrimSpace(window))
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("invalid window in %q", part)
		}
		specs = append(specs, infra.LimitSpec{MaxCount: n, Window: w})
	}
	if len(specs) == 0 {
		return nil, errors.New("no limits given")
	}
	return specs, nil
}

func buildLimits(specs []infra.LimitSpec, smoothRPS float64, smoothBurst int) ([]domain.Limit, error) {
	limits := make([]domain.Limit, 0, len(specs)+1)
	for _, spec := range specs {
		lim, err := infra.NewSlidingWindowLimit(spec.MaxCount, spec.Window)
		if err != nil {
			return nil, err
		}
		limits = append(limits, lim)
	}
	if smoothRPS > 0 {
		limits = append(limits, infra.NewTokenBucketLimit(smoothRPS, smoothBurst))
	}
	return limits, nil
}

func specsString(specs []infra.LimitSpec) string {
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ",")
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

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
