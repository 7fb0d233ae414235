// Package mqttin subscribes to sensor telemetry published over MQTT.
package mqttin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/consumer"
	"github.com/DivyPatel-31/coastwatch/internal/ingest"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const DefaultTopic = "coastwatch/sensors/+/readings"

type Options struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
}

// Subscriber is a supervised service. Messages on
// coastwatch/sensors/<sensorId>/readings carry {"value", "unit"}; the sensor id
// in the topic wins over one in the payload.
type Subscriber struct {
	opts     Options
	readings consumer.Recorder
	log      *zap.Logger
	stats    *obs.Stats
}

func NewSubscriber(opts Options, readings consumer.Recorder, log *zap.Logger, stats *obs.Stats) *Subscriber {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = "coastwatch"
	}
	if opts.QoS > 1 {
		opts.QoS = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{opts: opts, readings: readings, log: log, stats: stats}
}

func (s *Subscriber) String() string { return "mqtt-subscriber" }

func (s *Subscriber) Serve(ctx context.Context) error {
	if s.opts.Broker == "" {
		return errors.New("mqtt broker is empty")
	}
	o := mqtt.NewClientOptions()
	o.AddBroker(s.opts.Broker)
	o.SetClientID(s.opts.ClientID)
	if s.opts.Username != "" {
		o.SetUsername(s.opts.Username)
	}
	if s.opts.Password != "" {
		o.SetPassword(s.opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(true)
	o.SetConnectTimeout(10 * time.Second)
	o.SetOnConnectHandler(func(c mqtt.Client) {
		// Subscriptions do not survive a clean-session reconnect.
		if err := s.subscribe(c); err != nil {
			s.log.Error("mqtt resubscribe", zap.Error(err))
		}
	})
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(o)
	if token := client.Connect(); !waitToken(ctx, token) {
		return ctx.Err()
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("connect mqtt broker %s: %w", s.opts.Broker, err)
	}
	s.log.Info("mqtt subscriber connected", zap.String("broker", s.opts.Broker), zap.String("topic", s.opts.Topic))

	<-ctx.Done()
	client.Disconnect(250)
	return ctx.Err()
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	token := c.Subscribe(s.opts.Topic, s.opts.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handle(msg.Topic(), msg.Payload()); err != nil {
			s.log.Warn("mqtt reading rejected", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.opts.Topic, err)
	}
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) bool {
	select {
	case <-token.Done():
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Subscriber) handle(topic string, payload []byte) error {
	start := time.Now()
	in, err := ingest.Decode(payload)
	if err == nil {
		if id := SensorIDFromTopic(topic); id != "" {
			in.SensorID = id
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = s.readings.Record(ctx, in)
		cancel()
	}
	// MQTT has no redelivery at QoS 0, so every failure is final.
	var invalid *ingest.InvalidError
	if errors.As(err, &invalid) || errors.Is(err, store.ErrNotFound) {
		s.stats.ObserveConsumerMessage(time.Since(start), nil)
	} else {
		s.stats.ObserveConsumerMessage(time.Since(start), err)
	}
	return err
}

// SensorIDFromTopic extracts <id> from ".../sensors/<id>/readings".
func SensorIDFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "sensors" && parts[i+2] == "readings" {
			return parts[i+1]
		}
	}
	return ""
}
