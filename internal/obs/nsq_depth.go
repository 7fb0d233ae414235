package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type nsqStats struct {
	Topics []struct {
		TopicName string `json:"topic_name"`
		Depth     int64  `json:"depth"`
		Channels  []struct {
			ChannelName   string `json:"channel_name"`
			Depth         int64  `json:"depth"`
			InFlightCount int64  `json:"in_flight_count"`
			DeferredCount int64  `json:"deferred_count"`
		} `json:"channels"`
	} `json:"topics"`
}

// NSQDepthPoller samples nsqd's /stats endpoint and records the backlog of
// the configured topics. It runs as a supervised service.
type NSQDepthPoller struct {
	Stats    *Stats
	URL      string
	Topics   []string
	Interval time.Duration
	Client   *http.Client
}

func NewNSQDepthPoller(stats *Stats, nsqdHTTPAddr string, topics ...string) *NSQDepthPoller {
	url := strings.TrimSpace(nsqdHTTPAddr)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return &NSQDepthPoller{
		Stats:    stats,
		URL:      strings.TrimRight(url, "/") + "/stats?format=json",
		Topics:   topics,
		Interval: 5 * time.Second,
		Client:   &http.Client{Timeout: 2 * time.Second},
	}
}

func (p *NSQDepthPoller) String() string { return "nsq-depth-poller" }

func (p *NSQDepthPoller) Serve(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = p.pollOnce(ctx)
		}
	}
}

func (p *NSQDepthPoller) pollOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	res, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("nsqd stats http status=%d", res.StatusCode)
	}
	var payload nsqStats
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return err
	}
	depths := map[string]int64{}
	for _, t := range payload.Topics {
		// A topic without channels buffers in its own queue.
		total := t.Depth
		for _, ch := range t.Channels {
			total += ch.Depth + ch.InFlightCount + ch.DeferredCount
		}
		depths[t.TopicName] = total
	}
	for _, topic := range p.Topics {
		if v, ok := depths[topic]; ok {
			p.Stats.SetNSQDepth(topic, v)
		}
	}
	return nil
}
