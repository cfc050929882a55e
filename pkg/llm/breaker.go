package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerClient wraps a Client with a circuit breaker so that a flapping
// generation endpoint fails fast instead of stalling every remaining item in
// a batch behind network timeouts.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps inner with default breaker settings: the circuit
// opens after 5 consecutive failures and probes again after 30 seconds.
func NewBreakerClient(inner Client) *BreakerClient {
	settings := gobreaker.Settings{
		Name:    "llm",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Chat executes the request through the circuit breaker.
func (c *BreakerClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Chat(ctx, messages)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

// Close closes the wrapped client.
func (c *BreakerClient) Close() error {
	return c.inner.Close()
}
