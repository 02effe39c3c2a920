package mafia

import (
	"context"
	"errors"
	"sync"
	"time"

	appErr "party-service/pkg/errors"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Call describes one public engine operation passing through the chain.
type Call struct {
	Op        string
	SessionID string
	PlayerID  string
}

type Handler func(ctx context.Context) error

// Interceptor wraps an engine operation. Implementations call next at most
// once per attempt and return its error or their own.
type Interceptor interface {
	Intercept(ctx context.Context, call Call, next Handler) error
}

type InterceptorFunc func(ctx context.Context, call Call, next Handler) error

func (f InterceptorFunc) Intercept(ctx context.Context, call Call, next Handler) error {
	return f(ctx, call, next)
}

// chain composes interceptors so that the first one is the outermost.
func chain(interceptors []Interceptor, call Call, h Handler) Handler {
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic, next := interceptors[i], h
		h = func(ctx context.Context) error {
			return ic.Intercept(ctx, call, next)
		}
	}
	return h
}

type LoggingInterceptor struct {
	Log *zap.Logger
}

func (l LoggingInterceptor) Intercept(ctx context.Context, call Call, next Handler) error {
	start := time.Now()
	err := next(ctx)
	fields := []zap.Field{
		zap.String("op", call.Op),
		zap.String("sessionID", call.SessionID),
		zap.String("playerID", call.PlayerID),
		zap.Duration("elapsed", time.Since(start)),
	}
	switch code := appErr.CodeOf(err); {
	case err == nil:
		l.Log.Debug("engine call", fields...)
	case code == appErr.CodeIllegalAction || code == appErr.CodeRateLimited || code == appErr.CodeNotFound:
		l.Log.Info("engine call rejected", append(fields, zap.Error(err))...)
	default:
		l.Log.Warn("engine call failed", append(fields, zap.Error(err))...)
	}
	return err
}

type TracingInterceptor struct {
	Tracer trace.Tracer
}

func NewTracingInterceptor() TracingInterceptor {
	return TracingInterceptor{Tracer: otel.Tracer("party-service/mafia")}
}

func (t TracingInterceptor) Intercept(ctx context.Context, call Call, next Handler) error {
	ctx, span := t.Tracer.Start(ctx, "mafia."+call.Op,
		trace.WithAttributes(
			attribute.String("session.id", call.SessionID),
			attribute.String("player.id", call.PlayerID),
		),
	)
	defer span.End()

	err := next(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.code", string(appErr.CodeOf(err))))
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

type MetricsInterceptor struct{}

func (MetricsInterceptor) Intercept(ctx context.Context, call Call, next Handler) error {
	start := time.Now()
	err := next(ctx)
	code := "OK"
	if err != nil {
		code = string(appErr.CodeOf(err))
	}
	engineCalls.WithLabelValues(call.Op, code).Inc()
	engineDuration.WithLabelValues(call.Op).Observe(time.Since(start).Seconds())
	return err
}

// RateLimitInterceptor throttles each player of each session independently.
// Calls without a player (timers, system) pass through.
type RateLimitInterceptor struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*playerLimiter
}

type playerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	maxLimiters     = 4096
	limiterIdleTime = 10 * time.Minute
)

func NewRateLimitInterceptor(perSecond float64, burst int) *RateLimitInterceptor {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitInterceptor{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*playerLimiter),
	}
}

func (r *RateLimitInterceptor) Intercept(ctx context.Context, call Call, next Handler) error {
	if call.PlayerID == "" || r.limit <= 0 {
		return next(ctx)
	}
	if !r.get(call.SessionID + "/" + call.PlayerID).Allow() {
		return appErr.ErrRateLimited
	}
	return next(ctx)
}

func (r *RateLimitInterceptor) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if pl, ok := r.limiters[key]; ok {
		pl.lastSeen = now
		return pl.limiter
	}
	if len(r.limiters) >= maxLimiters {
		for k, pl := range r.limiters {
			if now.Sub(pl.lastSeen) > limiterIdleTime {
				delete(r.limiters, k)
			}
		}
	}
	pl := &playerLimiter{limiter: rate.NewLimiter(r.limit, r.burst), lastSeen: now}
	r.limiters[key] = pl
	return pl.limiter
}

// RetryInterceptor re-runs an operation with exponential backoff when it
// fails with Conflict or Timeout. Every attempt re-reads the session.
type RetryInterceptor struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	MaxTries        uint
	Log             *zap.Logger
}

func (r RetryInterceptor) Intercept(ctx context.Context, call Call, next Handler) error {
	b := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if r.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(r.MaxElapsed))
	}
	if r.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(r.MaxTries))
	}
	if r.Log != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			r.Log.Debug("retrying engine call",
				zap.String("op", call.Op),
				zap.String("sessionID", call.SessionID),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := next(ctx)
		if err != nil && !appErr.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}
