package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/minimart/order-service/pkg/errors"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_rejections_total",
		Help: "Requests rejected because the circuit breaker was open.",
	}, []string{"name"})
)

// errDownstreamStatus marks a 5xx response so the breaker counts it as a
// failure while the response is still handed back to the caller.
var errDownstreamStatus = errors.New("downstream returned server error")

// BreakerConfig controls the gobreaker wrapping a downstream dependency.
type BreakerConfig struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval between counter resets while closed.
	Interval time.Duration
	// Timeout before an open breaker transitions to half-open.
	Timeout time.Duration
	// ConsecutiveFailures before the breaker trips.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns production defaults for name.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// CircuitBreaker wraps a Doer with gobreaker. Transport errors and 5xx
// responses count as failures; an open circuit fails fast with
// ErrServiceUnavail so callers classify it as dependency unavailability.
type CircuitBreaker struct {
	name    string
	next    Doer
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewCircuitBreaker wraps next with a breaker configured from cfg.
func NewCircuitBreaker(next Doer, cfg BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateValue(to))
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))

	return &CircuitBreaker{
		name:    cfg.Name,
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

// Do executes the request through the breaker.
func (cb *CircuitBreaker) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := cb.breaker.Execute(func() (*http.Response, error) {
		resp, err := cb.next.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, fmt.Errorf("%w: status %d", errDownstreamStatus, resp.StatusCode)
		}
		return resp, nil
	})

	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errDownstreamStatus) && resp != nil:
		// The failure was counted; the caller still gets the response.
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		breakerRejections.WithLabelValues(cb.name).Inc()
		return nil, apperrors.ServiceUnavailable(
			fmt.Sprintf("%s is unavailable (circuit breaker open)", cb.name))
	default:
		return nil, err
	}
}

// State exposes the current breaker state for readiness reporting.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
