// Package consumer feeds sensor readings published to NSQ into the ingest
// path.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/ingest"
	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/nsqio/go-nsq"
	"go.uber.org/zap"
)

// Recorder is the ingest entry point; *ingest.Readings satisfies it.
type Recorder interface {
	Record(ctx context.Context, in ingest.Input) (model.SensorReading, error)
}

type Options struct {
	NSQDAddress string
	Topic       string
	Channel     string
	Concurrency int
	MaxInFlight int
}

// ReadingsConsumer is a supervised service reading the sensor-readings topic.
type ReadingsConsumer struct {
	opts     Options
	readings Recorder
	log      *zap.Logger
	stats    *obs.Stats
}

func NewReadingsConsumer(opts Options, readings Recorder, log *zap.Logger, stats *obs.Stats) *ReadingsConsumer {
	if opts.Topic == "" {
		opts.Topic = "sensor-readings"
	}
	if opts.Channel == "" {
		opts.Channel = "coastwatch-ingest"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 200
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReadingsConsumer{opts: opts, readings: readings, log: log, stats: stats}
}

func (c *ReadingsConsumer) String() string { return "nsq-readings-consumer" }

func (c *ReadingsConsumer) Serve(ctx context.Context) error {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = c.opts.MaxInFlight
	nsqCfg.MsgTimeout = 30 * time.Second
	cons, err := nsq.NewConsumer(c.opts.Topic, c.opts.Channel, nsqCfg)
	if err != nil {
		return err
	}
	cons.SetLogger(zap.NewStdLog(c.log.Named("nsq")), nsq.LogLevelWarning)
	cons.AddConcurrentHandlers(c, c.opts.Concurrency)

	if err := connectToNSQDWithRetry(ctx, c.log, cons, c.opts.NSQDAddress, c.opts.Topic, c.opts.Channel); err != nil {
		cons.Stop()
		return err
	}
	c.log.Info("nsq consumer connected",
		zap.String("topic", c.opts.Topic),
		zap.String("channel", c.opts.Channel))

	select {
	case <-ctx.Done():
	case <-cons.StopChan:
		return errors.New("nsq consumer stopped")
	}
	cons.Stop()
	<-cons.StopChan
	return ctx.Err()
}

// HandleMessage implements nsq.Handler. Readings that can never succeed are
// finished and dropped; storage failures are returned so nsqd requeues them.
func (c *ReadingsConsumer) HandleMessage(m *nsq.Message) error {
	return c.handle(m.Body)
}

func (c *ReadingsConsumer) handle(body []byte) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, err := ingest.Decode(body)
	if err == nil {
		_, err = c.readings.Record(ctx, in)
	}

	var invalid *ingest.InvalidError
	switch {
	case err == nil:
		c.stats.ObserveConsumerMessage(time.Since(start), nil)
		return nil
	case errors.As(err, &invalid), errors.Is(err, store.ErrNotFound):
		c.stats.ObserveConsumerMessage(time.Since(start), nil)
		c.log.Warn("dropping reading", zap.String("sensor_id", in.SensorID), zap.Error(err))
		return nil
	default:
		c.stats.ObserveConsumerMessage(time.Since(start), err)
		return err
	}
}

func connectToNSQDWithRetry(ctx context.Context, log *zap.Logger, cons *nsq.Consumer, addr, topic, channel string) error {
	const (
		totalWait = 2 * time.Minute
		maxDelay  = 5 * time.Second
	)
	deadline := time.Now().Add(totalWait)
	delay := 300 * time.Millisecond
	var lastErr error

	for {
		err := cons.ConnectToNSQD(addr)
		if err == nil {
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return fmt.Errorf("connect nsqd addr=%s topic=%s channel=%s: %w", addr, topic, channel, lastErr)
		}
		log.Warn("nsq connect failed; retrying",
			zap.String("addr", addr),
			zap.String("topic", topic),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
