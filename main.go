package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/listingwatcher/config"
	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/detector"
	"sjsage522/listingwatcher/internal/monitoring"
	"sjsage522/listingwatcher/logger"
	werrors "sjsage522/listingwatcher/pkg/errors"
	"sjsage522/listingwatcher/services/cache"
	"sjsage522/listingwatcher/services/publisher"
	"sjsage522/listingwatcher/services/store"
	"sjsage522/listingwatcher/services/worker"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(parent context.Context, cfg *config.Config) error {
	// Initialize logger first
	logger.Init()
	logger.SetVerbose(cfg.Verbose)
	log := logger.Default

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(werrors.NewConfiguration("invalid configuration", err)).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Strs("search_urls", cfg.SearchURLs).
		Dur("watch_interval", cfg.WatchInterval).
		Bool("bootstrap", cfg.Bootstrap).
		Str("detector", cfg.Detector).
		Msg("Starting listing watcher")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	w := newWorker(cfg, services, store.Load(cfg.SeenPath))

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Worker exited with error")
			return err
		}
		log.Info().Msg("Worker exited normally")
	}

	log.Info().Msg("Shutting down gracefully...")
	return nil
}

// Services holds all the initialized services
type Services struct {
	Fetcher  crawler.Fetcher
	Browser  *crawler.BrowserFetcher
	Cache    cache.CacheService
	Reporter publisher.Reporter
	Metrics  *monitoring.Metrics
	Server   *monitoring.Server
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Reporter != nil {
		if err := s.Reporter.Close(); err != nil {
			logger.Default.Warn().Err(err).Msg("Failed to close reporters")
		}
	}
	if s.Browser != nil {
		s.Browser.Close()
	}
	if s.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Server.Shutdown(ctx); err != nil {
			logger.Default.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
}

// initializeServices wires the optional backends. A backend that cannot be
// reached is logged and left out; only configuration errors are fatal.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	log := logger.Default
	services := &Services{}

	if cfg.MetricsAddr != "" {
		services.Metrics = monitoring.NewMetrics()
		services.Server = monitoring.NewServer(cfg.MetricsAddr, services.Metrics.Registry)
		services.Server.Start()
	}

	var fetcher crawler.Fetcher = helpers.NewClient(cfg.FetchTimeout, cfg.UserAgent)

	if cfg.BrowserFallback {
		services.Browser = crawler.NewBrowserFetcher(cfg.UserAgent, cfg.BrowserTimeout)
		fetcher = crawler.NewFallbackFetcher(fetcher, services.Browser)
		log.Info().Dur("timeout", cfg.BrowserTimeout).Msg("Headless browser fallback enabled")
	}

	if cfg.BlockCooldown > 0 {
		services.Cache = newCooldownCache(cfg)
		fetcher = crawler.NewCooldownFetcher(fetcher, services.Cache, cfg.BlockCooldown)
		log.Info().Dur("cooldown", cfg.BlockCooldown).Msg("Hard block cooldown enabled")
	}
	services.Fetcher = fetcher

	reporters := []publisher.Reporter{publisher.NewConsoleReporter(os.Stdout)}
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, stream reporting disabled")
			_ = redisPublisher.Close()
		} else {
			reporters = append(reporters, publisher.NewStreamReporter(redisPublisher))
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", redisPublisher.Stream()).
				Msg("Connected to Redis")
		}
	}
	services.Reporter = publisher.NewMultiReporter(reporters...)

	return services
}

// newCooldownCache prefers memcache so cooldowns survive restarts
func newCooldownCache(cfg *config.Config) cache.CacheService {
	log := logger.ForCache()
	if cfg.MemcacheAddr == "" {
		log.Info().Msg("No memcache configured, keeping cooldowns in memory")
		return cache.NewMemoryCache()
	}

	mc := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := mc.Ping(); err != nil {
		log.Warn().Err(err).Msg("Memcache unavailable, keeping cooldowns in memory")
		return cache.NewMemoryCache()
	}
	log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
	return mc
}

func newWorker(cfg *config.Config, services *Services, seen *store.SeenStore) *worker.Worker {
	var policyOpts []crawler.PolicyOption
	var workerOpts []worker.Option

	if services.Metrics != nil {
		policyOpts = append(policyOpts, crawler.WithObserver(services.Metrics))
		workerOpts = append(workerOpts, worker.WithMetrics(services.Metrics))
	}

	policy := crawler.NewPolicy(services.Fetcher, crawler.PolicyConfig{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBase,
		Jitter:      cfg.RetryJitter,
	}, policyOpts...)

	if cfg.Detector == config.DetectorGold {
		var observer detector.VerdictObserver
		if services.Metrics != nil {
			observer = services.Metrics
		}
		d := detector.New(
			services.Fetcher,
			detector.NewGoldStrategy(cfg.MaxPrice, cfg.Currency),
			cfg.DebugCandidates,
			observer,
		)
		workerOpts = append(workerOpts, worker.WithDetector(d))
	}

	return worker.NewWorker(
		policy,
		seen,
		services.Reporter,
		cfg.SearchURLs,
		cfg.WatchInterval,
		cfg.Bootstrap,
		workerOpts...,
	)
}
