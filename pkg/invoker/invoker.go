// Package invoker calls stored functions on the remote data service.
//
// It is the only place that talks to the network. Every call goes through the
// cache, is retried with exponential backoff on transient failures, and is
// classified into the error kinds of pkg/errors.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/cache"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultRPCPath           = "/rest/v1/rpc"
	DefaultMaxAttempts       = 3
	DefaultBaseDelay         = time.Second
	DefaultSlowCallThreshold = 3 * time.Second

	// HeaderCorrelationID carries the assembly correlation id to the remote service
	HeaderCorrelationID = "X-Correlation-ID"
)

// Caller is implemented by Invoker and consumed by the resolvers and the registry
type Caller interface {
	Call(ctx context.Context, function string, params map[string]any, conn models.Connection, opts ...CallOption) (*Result, error)
}

// Config controls retry, caching and observability of remote calls
type Config struct {
	RPCPath           string
	MaxAttempts       int
	BaseDelay         time.Duration
	SlowCallThreshold time.Duration
	CacheTTL          time.Duration
}

// DefaultConfig returns the default invoker configuration
func DefaultConfig() Config {
	return Config{
		RPCPath:           DefaultRPCPath,
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		SlowCallThreshold: DefaultSlowCallThreshold,
		CacheTTL:          cache.DefaultTTL,
	}
}

// Invoker is the retrying, caching caller for remote stored functions
type Invoker struct {
	client    *httpclient.Client
	cache     cache.Store
	evaluator *expressions.Evaluator
	cfg       Config
	logger    ectologger.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// New creates an invoker. A nil store disables caching.
func New(client *httpclient.Client, store cache.Store, cfg Config, logger ectologger.Logger) *Invoker {
	if store == nil {
		store = cache.NoopStore{}
	}
	if cfg.RPCPath == "" {
		cfg.RPCPath = DefaultRPCPath
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.SlowCallThreshold <= 0 {
		cfg.SlowCallThreshold = DefaultSlowCallThreshold
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	return &Invoker{
		client:    client,
		cache:     store,
		evaluator: expressions.NewEvaluator(),
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// Backoff returns the delay before the attempt following the given one: base * 2^(attempt-1)
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(int64(1)<<(attempt-1))
}

// CacheKey returns the key under which the result of a call against conn is cached
func (i *Invoker) CacheKey(conn models.Connection, function string, params map[string]any) string {
	return cache.Key(i.endpoint(conn, function), params)
}

// Prime stores a known result for a call so later reads against the same store are served from the cache
func (i *Invoker) Prime(ctx context.Context, conn models.Connection, function string, params map[string]any, raw []byte) {
	i.cache.Put(ctx, i.CacheKey(conn, function, params), string(raw), i.cfg.CacheTTL)
}

// CompileExpression checks an extraction expression ahead of the first call that uses it
func (i *Invoker) CompileExpression(expression string) error {
	if err := i.evaluator.Compile(expression); err != nil {
		return fernerrors.NewConfigurationError("result expression %q: %v", expression, err)
	}
	return nil
}

// endpoint is the URL of function on the store conn points at
func (i *Invoker) endpoint(conn models.Connection, function string) string {
	return strings.TrimRight(strings.TrimSpace(conn.BaseURL), "/") + "/" + strings.Trim(i.cfg.RPCPath, "/") + "/" + function
}

// Call invokes a remote stored function
func (i *Invoker) Call(ctx context.Context, function string, params map[string]any, conn models.Connection, opts ...CallOption) (*Result, error) {
	o := defaultCallOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if conn.Empty() {
		return nil, fernerrors.NewConfigurationError("remote service connection is not configured (base URL and token are required)")
	}
	if strings.TrimSpace(function) == "" {
		return nil, fernerrors.NewValidationError("remote function name is required")
	}
	if params == nil {
		params = map[string]any{}
	}

	ctx, span := tracing.StartSpan(ctx, "Invoker.Call")
	defer span.End()
	span.SetAttributes(attribute.String("rpc.function", function))

	fields := appctx.LogFields(ctx)
	fields["function"] = function
	log := i.logger.WithContext(ctx).WithFields(fields)

	key := i.CacheKey(conn, function, params)
	if o.readCache {
		if raw, ok := i.cache.Get(ctx, key); ok {
			result, err := i.finish(newResult([]byte(raw)), o)
			if err != nil {
				return nil, err
			}
			result.FromCache = true
			span.SetAttributes(attribute.Bool("rpc.cache_hit", true))
			metrics.RPCCallsTotal.WithLabelValues(function, "cache_hit").Inc()
			log.Debug("Served remote function result from cache")
			return result, nil
		}
	}

	start := i.now()
	var lastErr error
	for attempt := 1; attempt <= i.cfg.MaxAttempts; attempt++ {
		resp, err := i.attempt(ctx, function, params, conn, attempt, log)
		elapsed := i.now().Sub(start)

		if err == nil {
			result, err := i.finish(newResult(resp.Body), o)
			if err != nil {
				return nil, err
			}
			result.Attempts = attempt
			result.Duration = elapsed

			if o.writeCache && !result.Empty() {
				i.cache.Put(ctx, key, string(resp.Body), i.cfg.CacheTTL)
			}
			if !result.Parsed {
				log.Warn("Remote function returned a non-JSON body, using raw text as the result")
			}

			span.SetAttributes(attribute.Int("rpc.attempts", attempt))
			metrics.RPCCallsTotal.WithLabelValues(function, "success").Inc()
			log.WithFields(map[string]any{
				"attempts":    attempt,
				"duration_ms": elapsed.Milliseconds(),
			}).Infof("Remote function %s succeeded", function)
			return result, nil
		}

		classified, ok := fernerrors.As(err)
		if !ok || !classified.Retryable() {
			if ok {
				classified.WithAttempts(attempt, elapsed)
			}
			tracing.RecordError(span, err, "remote function call failed")
			metrics.RPCCallsTotal.WithLabelValues(function, string(outcomeKind(err))).Inc()
			log.WithError(err).WithFields(map[string]any{
				"attempts":    attempt,
				"duration_ms": elapsed.Milliseconds(),
				"error_kind":  string(outcomeKind(err)),
			}).Errorf("Remote function %s failed", function)
			return nil, err
		}

		lastErr = err
		if attempt == i.cfg.MaxAttempts {
			break
		}

		delay := Backoff(i.cfg.BaseDelay, attempt)
		metrics.RPCRetriesTotal.WithLabelValues(function).Inc()
		log.WithError(err).Warnf("Transient failure, retrying in %v (attempt %d/%d)", delay, attempt, i.cfg.MaxAttempts)

		if err := i.sleep(ctx, delay); err != nil {
			tracing.RecordError(span, err, "retry cancelled")
			metrics.RPCCallsTotal.WithLabelValues(function, "cancelled").Inc()
			return nil, fmt.Errorf("retry of %s cancelled after %d attempts: %w", function, attempt, err)
		}
	}

	elapsed := i.now().Sub(start)
	exhausted := fernerrors.NewRetryExhaustedError(function, i.cfg.MaxAttempts, elapsed, lastErr)
	tracing.RecordError(span, exhausted, "retries exhausted")
	metrics.RPCCallsTotal.WithLabelValues(function, string(fernerrors.KindRetryExhausted)).Inc()
	log.WithError(exhausted).WithFields(map[string]any{
		"attempts":    i.cfg.MaxAttempts,
		"duration_ms": elapsed.Milliseconds(),
		"error_kind":  string(fernerrors.KindRetryExhausted),
	}).Errorf("Remote function %s failed after exhausting retries", function)
	return nil, exhausted
}

// attempt performs one HTTP call and classifies the outcome
func (i *Invoker) attempt(ctx context.Context, function string, params map[string]any, conn models.Connection, attempt int, log ectologger.Logger) (*httpclient.Response, error) {
	url := i.endpoint(conn, function)

	headers := map[string]string{
		"Authorization": "Bearer " + conn.Token,
		"apikey":        conn.Token,
	}
	if id := appctx.GetCorrelationID(ctx); id != "" {
		headers[HeaderCorrelationID] = id
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers["traceparent"] = traceparent
	}

	start := i.now()
	resp, err := i.client.PostJSON(ctx, url, headers, params)
	duration := i.now().Sub(start)

	attemptLog := log.WithFields(map[string]any{
		"attempt":     attempt,
		"duration_ms": duration.Milliseconds(),
	})
	if duration > i.cfg.SlowCallThreshold {
		metrics.RPCSlowCallsTotal.WithLabelValues(function).Inc()
		attemptLog.Warnf("Slow remote function call: %s took %v", function, duration)
	}

	if err != nil {
		metrics.RPCAttemptDuration.WithLabelValues(function, "error").Observe(duration.Seconds())
		if ctx.Err() != nil {
			return nil, fmt.Errorf("call to %s aborted: %w", function, ctx.Err())
		}
		if errors.Is(err, httpclient.ErrInvalidRequest) {
			invalid := fernerrors.NewValidationError("%v", err)
			invalid.Function = function
			return nil, invalid
		}
		attemptLog.WithError(err).Warn("Remote function attempt failed at the transport level")
		return nil, fernerrors.NewTransientError(function, 0, err)
	}

	metrics.RPCAttemptDuration.WithLabelValues(function, strconv.Itoa(resp.StatusCode)).Observe(duration.Seconds())
	attemptLog.WithField("status_code", resp.StatusCode).Debugf("Remote function attempt completed")

	switch {
	case httpclient.IsSuccessStatus(resp.StatusCode):
		return resp, nil
	case httpclient.IsAuthStatus(resp.StatusCode):
		return nil, fernerrors.NewAuthError(function, resp.StatusCode, httpclient.ErrorMessage(resp.Body))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fernerrors.NewNotFoundError(function, httpclient.ErrorMessage(resp.Body))
	case httpclient.IsRetryableStatus(resp.StatusCode):
		var cause error
		if msg := httpclient.ErrorMessage(resp.Body); msg != "" {
			cause = fmt.Errorf("%s", msg)
		}
		return nil, fernerrors.NewTransientError(function, resp.StatusCode, cause)
	default:
		return nil, fernerrors.NewClientError(function, resp.StatusCode, httpclient.ErrorMessage(resp.Body))
	}
}

// finish applies the extraction expression, if any, to a successful result
func (i *Invoker) finish(result *Result, o callOptions) (*Result, error) {
	if o.extract == "" || !result.Parsed || result.Value == nil {
		return result, nil
	}

	value, err := i.evaluator.Evaluate(o.extract, result.Value)
	if err != nil {
		return nil, fernerrors.NewConfigurationError("result expression %q: %v", o.extract, err)
	}
	extracted := *result
	extracted.Value = value
	return &extracted, nil
}

func outcomeKind(err error) fernerrors.Kind {
	if kind := fernerrors.KindOf(err); kind != "" {
		return kind
	}
	return "error"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
