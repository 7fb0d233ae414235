package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned while the breaker refuses publishes.
var ErrBreakerOpen = errors.New("queue: publisher circuit open")

type BreakerConfig struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	Logger      *zap.Logger
}

type breakerPublisher struct {
	inner Publisher
	cb    *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerPublisher wraps p so that a failing broker is skipped quickly
// instead of stalling every caller on dial timeouts.
func NewBreakerPublisher(p Publisher, cfg BreakerConfig) Publisher {
	if p == nil {
		return nil
	}
	if cfg.Name == "" {
		cfg.Name = "nsq"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	threshold := cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("publisher breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &breakerPublisher{inner: p, cb: cb}
}

func (p *breakerPublisher) Publish(topic string, body []byte) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.inner.Publish(topic, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrBreakerOpen, topic)
	}
	return err
}

// State reports the breaker state for status endpoints.
func (p *breakerPublisher) State() string {
	return p.cb.State().String()
}
