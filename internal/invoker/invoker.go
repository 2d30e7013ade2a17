package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/homepilot/homepilot/internal/domain"
)

// Observer receives a side-channel observation after every call attempt and
// breaker transition. Implementations must not block.
type Observer interface {
	ObserveAttempt(endpoint, outcome string, d time.Duration)
	ObserveRetry(endpoint string)
	ObserveBreakerState(endpoint string, state int)
}

// Attempt outcomes reported to the Observer.
const (
	OutcomeSuccess       = "success"
	OutcomeError         = "error"
	OutcomeTimeout       = "timeout"
	OutcomeRejected      = "rejected"
	OutcomeFastFail      = "fast_fail"
	OutcomePoolExhausted = "pool_exhausted"
)

// Options configure retry, breaker, and pooling behavior.
type Options struct {
	MaxAttempts         int           // retry budget for idempotent calls (default 3)
	BaseBackoff         time.Duration // first retry delay, doubled per attempt (default 1s)
	CallTimeout         time.Duration // per-attempt timeout (default 10s)
	BreakerThreshold    int           // consecutive failures before opening (default 5)
	BreakerCooldown     time.Duration // open-state cooldown (default 30s)
	MaxConnsPerEndpoint int           // connection slots per endpoint (default 8)
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.BreakerThreshold <= 0 {
		o.BreakerThreshold = 5
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	if o.MaxConnsPerEndpoint <= 0 {
		o.MaxConnsPerEndpoint = 8
	}
	return o
}

// errorEnvelope is the JSON error body downstream capabilities answer with.
type errorEnvelope struct {
	Detail string `json:"detail"`
	Safe   bool   `json:"safe,omitempty"`
}

// Invoker performs resilient JSON calls against downstream capability
// endpoints. Safe for concurrent use.
type Invoker struct {
	opts     Options
	breakers *BreakerSet
	client   *http.Client
	observer Observer
	logger   *zap.Logger

	mu    sync.Mutex
	slots map[string]*semaphore.Weighted

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Invoker. A nil observer disables observations.
func New(opts Options, observer Observer, logger *zap.Logger) *Invoker {
	opts = opts.withDefaults()
	if observer == nil {
		observer = nopObserver{}
	}

	inv := &Invoker{
		opts: opts,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: opts.MaxConnsPerEndpoint,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		observer: observer,
		logger:   logger,
		slots:    make(map[string]*semaphore.Weighted),
		sleep:    sleepCtx,
	}
	inv.breakers = NewBreakerSet(opts.BreakerThreshold, opts.BreakerCooldown).
		WithTransitionHook(func(endpoint string, state BreakerState) {
			observer.ObserveBreakerState(endpoint, int(state))
			logger.Info("circuit breaker transition",
				zap.String("endpoint", endpoint),
				zap.String("state", state.String()),
			)
		})
	return inv
}

// Breakers exposes the breaker set for endpoint-health reads.
func (inv *Invoker) Breakers() *BreakerSet { return inv.breakers }

// EndpointState reports the circuit state for an endpoint.
func (inv *Invoker) EndpointState(ep domain.Endpoint) BreakerState {
	return inv.breakers.State(ep.Addr())
}

// Invoke posts payload as JSON to the endpoint and decodes the reply.
// Only idempotent calls are retried; retries use exponential backoff with
// jitter and stop as soon as the circuit opens or the context deadline
// elapses. The connection slot is held for the duration of the call; when no
// slot frees up before the deadline the call fails with ErrPoolExhausted.
func (inv *Invoker) Invoke(
	ctx context.Context, ep domain.Endpoint, path string, payload any, idempotent bool,
) (domain.Reply, error) {
	addr := ep.Addr()

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("marshal payload: %w", err)
	}

	sem := inv.slot(addr)
	if !sem.TryAcquire(1) {
		if err := sem.Acquire(ctx, 1); err != nil {
			inv.observer.ObserveAttempt(addr, OutcomePoolExhausted, 0)
			return domain.Reply{}, fmt.Errorf("endpoint %s: %w", addr, domain.ErrPoolExhausted)
		}
	}
	defer sem.Release(1)

	var lastErr error
	for attempt := 0; attempt < inv.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if !idempotent {
				break
			}
			delay := inv.backoff(attempt)
			if err := inv.sleep(ctx, delay); err != nil {
				return domain.Reply{}, fmt.Errorf("endpoint %s: %w", addr, domain.ErrTimeout)
			}
			inv.observer.ObserveRetry(addr)
		}

		if err := inv.breakers.Allow(addr); err != nil {
			inv.observer.ObserveAttempt(addr, OutcomeFastFail, 0)
			if lastErr != nil {
				// Circuit opened mid-retry; report the call failure that got us here.
				return domain.Reply{}, lastErr
			}
			return domain.Reply{}, err
		}

		reply, retryable, err := inv.attempt(ctx, ep, path, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable {
			return domain.Reply{}, err
		}
		if ctx.Err() != nil {
			return domain.Reply{}, fmt.Errorf("endpoint %s: %w", addr, domain.ErrTimeout)
		}
	}

	return domain.Reply{}, lastErr
}

// attempt performs a single network call. The bool result reports whether
// the failure is retryable.
func (inv *Invoker) attempt(
	ctx context.Context, ep domain.Endpoint, path string, body []byte,
) (domain.Reply, bool, error) {
	addr := ep.Addr()

	attemptCtx, cancel := context.WithTimeout(ctx, inv.opts.CallTimeout)
	defer cancel()

	url := "http://" + addr + path
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Reply{}, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := inv.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		inv.breakers.OnFailure(addr)
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() != nil {
			inv.observer.ObserveAttempt(addr, OutcomeTimeout, elapsed)
			if ctx.Err() != nil {
				return domain.Reply{}, false, fmt.Errorf("endpoint %s: %w", addr, domain.ErrTimeout)
			}
			return domain.Reply{}, true, fmt.Errorf("endpoint %s attempt timed out: %w", addr, domain.ErrTimeout)
		}
		inv.observer.ObserveAttempt(addr, OutcomeError, elapsed)
		return domain.Reply{}, true, fmt.Errorf("endpoint %s: %w: %w", addr, domain.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		inv.breakers.OnSuccess(addr)
		inv.observer.ObserveAttempt(addr, OutcomeSuccess, elapsed)

		var reply domain.Reply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return domain.Reply{}, false, fmt.Errorf("decode reply from %s: %w", addr, err)
		}
		if reply.ServiceUsed == "" {
			reply.ServiceUsed = addr
		}
		return reply, false, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests:
		// Client-side rejection: counts as a failure but is never retried.
		inv.breakers.OnFailure(addr)
		inv.observer.ObserveAttempt(addr, OutcomeRejected, elapsed)

		env := decodeErrorEnvelope(resp.Body)
		return domain.Reply{}, false, domain.NewRejected(resp.StatusCode, env.Detail, env.Safe)

	default:
		inv.breakers.OnFailure(addr)
		inv.observer.ObserveAttempt(addr, OutcomeError, elapsed)
		return domain.Reply{}, true, fmt.Errorf("endpoint %s status %d: %w", addr, resp.StatusCode, domain.ErrUnavailable)
	}
}

// backoff returns base * 2^(attempt-1) plus up to 50% jitter.
func (inv *Invoker) backoff(attempt int) time.Duration {
	delay := inv.opts.BaseBackoff << (attempt - 1)
	jitter := time.Duration(rand.Int64N(int64(delay)/2 + 1))
	return delay + jitter
}

// slot returns the bounded connection semaphore for an endpoint.
func (inv *Invoker) slot(addr string) *semaphore.Weighted {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	sem, ok := inv.slots[addr]
	if !ok {
		sem = semaphore.NewWeighted(int64(inv.opts.MaxConnsPerEndpoint))
		inv.slots[addr] = sem
	}
	return sem
}

func decodeErrorEnvelope(r io.Reader) errorEnvelope {
	var env errorEnvelope
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&env); err != nil {
		return errorEnvelope{}
	}
	return env
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, string, time.Duration) {}
func (nopObserver) ObserveRetry(string)                          {}
func (nopObserver) ObserveBreakerState(string, int)              {}
