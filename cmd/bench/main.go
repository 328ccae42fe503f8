// Command bench runs a synthetic Zipf workload against one of the cache
// engines and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/approxcache/cache"
	pmet "github.com/IvanBrykalov/approxcache/metrics/prom"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		capacity    = flag.Int("cap", 100_000, "cache capacity (entries)")
		concurrency = flag.Int("concurrency", 0, "expected concurrent writers, sizes LFU partitions (0=auto)")
		policy      = flag.String("policy", "lru", "eviction engine: lru | lfu")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = cap/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr; empty = disabled")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, config{
		capacity:    *capacity,
		concurrency: *concurrency,
		policy:      *policy,
		workers:     *workers,
		duration:    *duration,
		readPct:     *readPct,
		keys:        *keys,
		zipfS:       *zipfS,
		zipfV:       *zipfV,
		seed:        *seed,
		preload:     *preload,
		pprofAddr:   *pprofAddr,
		metricsAddr: *metricsAddr,
	}); err != nil {
		logger.Error("bench failed", slog.Any("err", err))
		os.Exit(1)
	}
}

type config struct {
	capacity, concurrency int
	policy                string

	workers  int
	duration time.Duration
	readPct  int

	keys         int
	zipfS, zipfV float64
	seed         int64
	preload      int

	pprofAddr, metricsAddr string
}

func run(logger *slog.Logger, cfg config) error {
	p, err := cache.ParsePolicy(cfg.policy)
	if err != nil {
		return err
	}
	if cfg.keys < 1 {
		return errors.New("keys must be positive")
	}
	if cfg.workers <= 0 {
		cfg.workers = 1
	}

	serve(logger, "pprof", cfg.pprofAddr)

	var metrics cache.Metrics = cache.NoopMetrics{}
	if cfg.metricsAddr != "" {
		metrics = pmet.New(nil, "approxcache", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		serve(logger, "metrics", cfg.metricsAddr)
	}

	c, err := cache.New[string, string](cache.Options[string, string]{
		Capacity:    cfg.capacity,
		Concurrency: cfg.concurrency,
		Policy:      p,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	// Preload to get a realistic hit-rate.
	pl := cfg.preload
	if pl == 0 {
		pl = cfg.capacity / 2
	}
	for i := 0; i < pl; i++ {
		if _, _, err := c.Put("k:"+strconv.Itoa(i), "v"+strconv.Itoa(i)); err != nil {
			return err
		}
	}

	var reads, writes, hits atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.workers; w++ {
		g.Go(func() error {
			// rand.Rand is not goroutine-safe: one per worker.
			r := rand.New(rand.NewSource(cfg.seed + int64(w)*9973))
			zipf := rand.NewZipf(r, cfg.zipfS, cfg.zipfV, uint64(cfg.keys-1))

			for ctx.Err() == nil {
				k := "k:" + strconv.FormatUint(zipf.Uint64(), 10)
				if int(r.Int31n(100)) < cfg.readPct {
					reads.Add(1)
					_, ok, err := c.Get(k)
					if err != nil {
						return err
					}
					if ok {
						hits.Add(1)
					}
					continue
				}
				writes.Add(1)
				if _, _, err := c.Put(k, "v"+strconv.Itoa(r.Int())); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	readsN, writesN, hitsN := reads.Load(), writes.Load(), hits.Load()
	ops := readsN + writesN
	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("policy=%s cap=%d workers=%d keys=%d dur=%v seed=%d\n",
		p, cfg.capacity, cfg.workers, cfg.keys, elapsed, cfg.seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, readsN-hitsN, hitRate)
	if s, ok := c.(interface{ Stats() cache.Stats }); ok {
		st := s.Stats()
		fmt.Printf("evictions=%d\n", st.Evictions)
	}
	fmt.Printf("Size()=%d\n", c.Size())
	return nil
}

// serve starts DefaultServeMux on addr in the background; empty addr is a no-op.
func serve(logger *slog.Logger, name, addr string) {
	if addr == "" {
		return
	}
	go func() {
		logger.Info("serving", slog.String("what", name), slog.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error("http server stopped", slog.String("what", name), slog.Any("err", err))
		}
	}()
}
