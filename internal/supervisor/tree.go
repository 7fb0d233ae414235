// Package supervisor runs the long-lived services under a suture tree so a
// crashing consumer is restarted without taking the HTTP API down.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree has three layers:
//   - ingest: NSQ consumer, MQTT subscriber, retention cleanup
//   - realtime: hub, Redis relay, NSQ depth poller
//   - api: HTTP server
type Tree struct {
	root     *suture.Supervisor
	ingest   *suture.Supervisor
	realtime *suture.Supervisor
	api      *suture.Supervisor
}

func NewTree(log *zap.Logger, cfg TreeConfig) *Tree {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultTreeConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay <= 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	spec := func(hook suture.EventHook) suture.Spec {
		return suture.Spec{
			EventHook:        hook,
			FailureThreshold: cfg.FailureThreshold,
			FailureDecay:     cfg.FailureDecay,
			FailureBackoff:   cfg.FailureBackoff,
			Timeout:          cfg.ShutdownTimeout,
		}
	}

	root := suture.New("coastwatch", spec(EventHook(log)))
	t := &Tree{
		root:     root,
		ingest:   suture.New("ingest", spec(nil)),
		realtime: suture.New("realtime", spec(nil)),
		api:      suture.New("api", spec(nil)),
	}
	root.Add(t.realtime)
	root.Add(t.ingest)
	root.Add(t.api)
	return t
}

// EventHook logs supervisor events with zap.
func EventHook(log *zap.Logger) suture.EventHook {
	return func(e suture.Event) {
		fields := make([]zap.Field, 0, 4)
		for k, v := range e.Map() {
			fields = append(fields, zap.Any(k, v))
		}
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeStopTimeout:
			log.Error(e.String(), fields...)
		case suture.EventTypeResume:
			log.Info(e.String(), fields...)
		default:
			log.Warn(e.String(), fields...)
		}
	}
}

func (t *Tree) AddIngest(svc suture.Service) suture.ServiceToken   { return t.ingest.Add(svc) }
func (t *Tree) AddRealtime(svc suture.Service) suture.ServiceToken { return t.realtime.Add(svc) }
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken      { return t.api.Add(svc) }

// ServeBackground starts the tree; the channel yields its result once ctx is done.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
