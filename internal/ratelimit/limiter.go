package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/config"
	"github.com/registrylabs/registrar-indexer/internal/logger"
)

// redisHealthInterval is the time between Redis availability probes
const redisHealthInterval = 10 * time.Second

// RequestFunc is a function that performs the actual outbound request
// It receives a context and returns the result and any error
type RequestFunc func(ctx context.Context) (interface{}, error)

// requestResult wraps the result and error of a request
type requestResult struct {
	value interface{}
	err   error
}

// Limiter defines the interface for throttling outbound service calls.
// Limits are enforced across all indexer processes sharing the same Redis,
// so a backfill run and the live daemon together stay under a service's quota.
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit.go -package=mocks -mock_names=Limiter=MockRateLimiter
type Limiter interface {
	// Request submits a rate-limited request for execution
	Request(ctx context.Context, service string, fn RequestFunc) (interface{}, error)

	// Close gracefully shuts down the limiter
	Close() error
}

// limiter is the concrete implementation backed by Redis with a local fallback
type limiter struct {
	config         config.RateLimiterConfig
	pool           pond.ResultPool[*requestResult]
	services       map[string]*serviceLimiter
	redis          adapter.RedisClient
	clock          adapter.Clock
	closed         atomic.Bool
	closeOnce      sync.Once
	stopCh         chan struct{}
	redisAvailable atomic.Bool
}

// serviceLimiter holds the rate limiting state for a single outbound service
type serviceLimiter struct {
	name               string
	config             config.ServiceLimitConfig
	distributedLimiter adapter.RedisRateLimiter
	localLimiter       *rate.Limiter
	preFilterLimiter   *rate.Limiter
}

// NewLimiter creates a new outbound request limiter
func NewLimiter(cfg config.RateLimiterConfig, rc adapter.RedisClient, clock adapter.Clock) (Limiter, error) {
	// Validate and set defaults
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Test Redis connectivity
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisAvailable := true
	if err := rc.Ping(ctx).Err(); err != nil {
		redisAvailable = false
		if !cfg.EnableLocalFallback {
			return nil, fmt.Errorf("redis unavailable and fallback disabled: %w", err)
		}
		logger.Warn("Redis unavailable, will use local fallback", zap.Error(err))
	}

	// Create distributed rate limiter
	distributedLimiter := rc.NewRateLimiter()

	// Create per-service limiters
	services := make(map[string]*serviceLimiter)
	for name, serviceConfig := range cfg.Services {
		// Local fallback runs at a reduced rate since other processes may be
		// consuming the same quota without coordination. Minimum rate of 1.0.
		localRate := max(float64(serviceConfig.RequestsPerSecond)*cfg.LocalFallbackMultiplier, 1.0)
		localLimiter := rate.NewLimiter(rate.Limit(localRate), serviceConfig.Burst)

		// Pre-filter at the full service rate to reduce Redis pressure
		preFilterLimiter := rate.NewLimiter(rate.Limit(serviceConfig.RequestsPerSecond), serviceConfig.Burst)

		services[name] = &serviceLimiter{
			name:               name,
			config:             serviceConfig,
			distributedLimiter: distributedLimiter,
			localLimiter:       localLimiter,
			preFilterLimiter:   preFilterLimiter,
		}
	}

	// Create worker pool with result support
	pool := pond.NewResultPool[*requestResult](
		cfg.MaxWorkers,
		pond.WithQueueSize(cfg.MaxQueueSize),
	)

	l := &limiter{
		config:   cfg,
		pool:     pool,
		services: services,
		redis:    rc,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
	l.redisAvailable.Store(redisAvailable)

	// Start Redis health check goroutine
	go l.monitorRedisHealth()

	logger.Info("Rate limiter initialized",
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("max_queue_size", cfg.MaxQueueSize),
		zap.Int("services", len(cfg.Services)),
		zap.Bool("local_fallback", cfg.EnableLocalFallback),
	)

	return l, nil
}

// Request submits a rate-limited request and returns the result with type
// safety. A nil limiter executes the function directly, so callers never need
// to branch on whether limiting is configured.
func Request[T any](ctx context.Context, l Limiter, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	if l == nil {
		return fn(ctx)
	}

	var zero T
	result, err := l.Request(ctx, service, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// Request submits a rate-limited request for execution and returns the result as interface{}
// The function blocks until:
// 1. A token is acquired and the request completes
// 2. The context is canceled
// 3. The maximum queue time is exceeded
func (l *limiter) Request(ctx context.Context, service string, fn RequestFunc) (interface{}, error) {
	if l.closed.Load() {
		return nil, fmt.Errorf("limiter is closed")
	}

	sl, ok := l.services[service]
	if !ok {
		return nil, fmt.Errorf("service '%s' not configured", service)
	}

	// Bound the total time a request may spend queued and waiting for a token
	queueCtx, cancel := context.WithTimeout(ctx, sl.config.MaxQueueTime)
	defer cancel()

	resultTask := l.pool.Submit(func() *requestResult {
		value, err := l.executeWithRateLimit(queueCtx, sl, fn)
		return &requestResult{value: value, err: err}
	})

	result, err := resultTask.Wait()
	if err != nil {
		return nil, err
	}
	if result.err != nil {
		return nil, result.err
	}
	return result.value, nil
}

// executeWithRateLimit executes the request after acquiring a rate limit token
func (l *limiter) executeWithRateLimit(ctx context.Context, sl *serviceLimiter, fn RequestFunc) (interface{}, error) {
	if err := l.acquireToken(ctx, sl); err != nil {
		return nil, err
	}

	// No timeout wrapper here, the HTTP adapter owns request timeouts
	return fn(ctx)
}

// acquireToken acquires a rate limit token, blocking until one is available
func (l *limiter) acquireToken(ctx context.Context, sl *serviceLimiter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Try distributed limiter first if Redis is available
		if l.redisAvailable.Load() {
			allowed, retryAfter, err := l.tryDistributedLimit(ctx, sl)
			if err != nil {
				// Context errors can surface from the pre-filter or the Redis call
				if ctx.Err() != nil {
					return ctx.Err()
				}

				// Redis error - mark as unavailable and fall back to local if enabled
				l.redisAvailable.Store(false)

				if !l.config.EnableLocalFallback {
					return fmt.Errorf("redis rate limiter unavailable: %w", err)
				}

				logger.Warn("Redis rate limiter error, falling back to local",
					zap.String("service", sl.name),
					zap.Error(err),
				)
			} else if allowed {
				return nil
			} else if retryAfter > 0 {
				// Rate limited - sleep with jitter (50-150% of retryAfter) so
				// competing processes don't retry in lockstep
				jitter := time.Duration(float64(retryAfter) * (0.5 + rand.Float64())) //nolint:gosec,G404
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-l.clock.After(jitter):
					continue
				}
			}
		}

		// Use local limiter as fallback when Redis is unavailable
		if !l.redisAvailable.Load() && l.config.EnableLocalFallback {
			if err := sl.localLimiter.Wait(ctx); err != nil {
				return err
			}
			return nil
		}

		// No token acquired this iteration, back off briefly and retry
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(100 * time.Millisecond):
		}
	}
}

// tryDistributedLimit attempts to acquire a token from the distributed limiter
// Returns: (allowed bool, retryAfter duration, error)
func (l *limiter) tryDistributedLimit(ctx context.Context, sl *serviceLimiter) (bool, time.Duration, error) {
	if sl.distributedLimiter == nil {
		return false, 0, fmt.Errorf("distributed limiter not available")
	}

	// Pre-filter requests to reduce Redis pressure
	if err := sl.preFilterLimiter.Wait(ctx); err != nil {
		return false, 0, err
	}

	redisKey := fmt.Sprintf("%s%s", l.config.RedisKeyPrefix, sl.name)

	res, err := sl.distributedLimiter.Allow(ctx, redisKey, redis_rate.PerSecond(sl.config.RequestsPerSecond))
	if err != nil {
		return false, 0, err
	}

	if res.Allowed == 0 {
		logger.Debug("Rate limit token unavailable, waiting",
			zap.String("service", sl.name),
			zap.Duration("retry_after", res.RetryAfter),
			zap.Int("remaining", res.Remaining),
		)
		return false, res.RetryAfter, nil
	}

	return true, 0, nil
}

// monitorRedisHealth periodically checks Redis health and updates availability status
func (l *limiter) monitorRedisHealth() {
	for {
		select {
		case <-l.stopCh:
			return
		case <-l.clock.After(redisHealthInterval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := l.redis.Ping(ctx).Err()
		cancel()

		redisAvailable := err == nil
		wasAvailable := l.redisAvailable.Load()
		l.redisAvailable.Store(redisAvailable)

		if !wasAvailable && redisAvailable {
			logger.Info("Redis connection restored")
		}
	}
}

// Close gracefully shuts down the limiter
// It waits for in-flight requests to complete
func (l *limiter) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.stopCh)

		logger.Info("Shutting down rate limiter")

		// Stop the pool and wait for tasks to complete
		tasks := l.pool.Stop()
		if errTasks := tasks.Wait(); errTasks != nil {
			logger.Warn("Error waiting for pool tasks to complete", zap.Error(errTasks))
			err = errTasks
		}

		// Close Redis connection
		if closeErr := l.redis.Close(); closeErr != nil {
			logger.Warn("Error closing Redis connection", zap.Error(closeErr))
			err = closeErr
		}

		logger.Info("Rate limiter shutdown complete")
	})
	return err
}

// validateConfig validates and sets defaults for the configuration
func validateConfig(cfg *config.RateLimiterConfig) error {
	if cfg.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required")
	}

	if len(cfg.Services) == 0 {
		return fmt.Errorf("at least one service must be configured")
	}

	for name, service := range cfg.Services {
		if service.RequestsPerSecond <= 0 {
			return fmt.Errorf("service %s: requests_per_second must be positive", name)
		}

		if service.Burst <= 0 {
			service.Burst = service.RequestsPerSecond
		}

		if service.MaxQueueTime <= 0 {
			service.MaxQueueTime = 5 * time.Minute
		}

		cfg.Services[name] = service
	}

	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "registrar:indexer:limiter:"
	}

	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU() * 10
	}

	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 10000
	}

	if cfg.LocalFallbackMultiplier <= 0 {
		cfg.LocalFallbackMultiplier = 0.5
	}

	return nil
}
