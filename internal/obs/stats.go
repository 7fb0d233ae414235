package obs

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds process-local counters. All methods are safe on a nil receiver
// so components can be built without observability in tests.
type Stats struct {
	start time.Time

	httpRequests     atomic.Int64
	httpErrors       atomic.Int64
	httpLatencyUS    atomic.Int64
	httpLatencyCount atomic.Int64

	wsConnections   atomic.Int64
	wsConnected     atomic.Int64
	wsDropped       atomic.Int64
	wsThrottled     atomic.Int64
	eventsPublished atomic.Int64
	eventsDelivered atomic.Int64

	sinkForwards atomic.Int64
	sinkErrors   atomic.Int64

	nsqPublishTotal  atomic.Int64
	nsqPublishErrors atomic.Int64
	nsqPublishBytes  atomic.Int64

	depthMu   sync.Mutex
	nsqDepths map[string]int64

	consumerMessages     atomic.Int64
	consumerErrors       atomic.Int64
	consumerLatencyUS    atomic.Int64
	consumerLatencyCount atomic.Int64

	readingsIngested atomic.Int64
	readingsRejected atomic.Int64

	notificationsCreated atomic.Int64
	notificationErrors   atomic.Int64

	tsdbPoints atomic.Int64
	tsdbErrors atomic.Int64

	cleanupDeletedNotifications atomic.Int64
}

func New() *Stats {
	return &Stats{start: time.Now(), nsqDepths: map[string]int64{}}
}

func (s *Stats) ObserveHTTP(status int, dur time.Duration) {
	if s == nil {
		return
	}
	s.httpRequests.Add(1)
	if status >= 500 {
		s.httpErrors.Add(1)
	}
	s.httpLatencyUS.Add(dur.Microseconds())
	s.httpLatencyCount.Add(1)
}

func (s *Stats) ObserveConnect() {
	if s == nil {
		return
	}
	s.wsConnections.Add(1)
	s.wsConnected.Add(1)
}

func (s *Stats) ObserveDisconnect(dropped bool) {
	if s == nil {
		return
	}
	s.wsConnected.Add(-1)
	if dropped {
		s.wsDropped.Add(1)
	}
}

func (s *Stats) ObserveThrottled() {
	if s == nil {
		return
	}
	s.wsThrottled.Add(1)
}

func (s *Stats) ObservePublish(delivered int) {
	if s == nil {
		return
	}
	s.eventsPublished.Add(1)
	s.eventsDelivered.Add(int64(delivered))
}

func (s *Stats) ObserveSinkForward(err error) {
	if s == nil {
		return
	}
	s.sinkForwards.Add(1)
	if err != nil {
		s.sinkErrors.Add(1)
	}
}

func (s *Stats) ObserveNSQPublish(bytes int, err error) {
	if s == nil {
		return
	}
	s.nsqPublishTotal.Add(1)
	s.nsqPublishBytes.Add(int64(bytes))
	if err != nil {
		s.nsqPublishErrors.Add(1)
	}
}

func (s *Stats) SetNSQDepth(topic string, depth int64) {
	if s == nil || topic == "" {
		return
	}
	s.depthMu.Lock()
	s.nsqDepths[topic] = depth
	s.depthMu.Unlock()
}

func (s *Stats) ObserveConsumerMessage(dur time.Duration, err error) {
	if s == nil {
		return
	}
	s.consumerMessages.Add(1)
	if err != nil {
		s.consumerErrors.Add(1)
	}
	s.consumerLatencyUS.Add(dur.Microseconds())
	s.consumerLatencyCount.Add(1)
}

func (s *Stats) ObserveReading(accepted bool) {
	if s == nil {
		return
	}
	if accepted {
		s.readingsIngested.Add(1)
	} else {
		s.readingsRejected.Add(1)
	}
}

func (s *Stats) ObserveNotification(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.notificationErrors.Add(1)
		return
	}
	s.notificationsCreated.Add(1)
}

func (s *Stats) ObserveTSDBWrite(points int, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.tsdbErrors.Add(1)
		return
	}
	s.tsdbPoints.Add(int64(points))
}

func (s *Stats) ObserveCleanupDeleted(notifications int64) {
	if s == nil || notifications <= 0 {
		return
	}
	s.cleanupDeletedNotifications.Add(notifications)
}

type TopicDepth struct {
	Topic string `json:"topic"`
	Depth int64  `json:"depth"`
}

type Snapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	HTTP struct {
		Requests int64   `json:"requests"`
		Errors   int64   `json:"errors"`
		AvgMS    float64 `json:"avg_ms"`
	} `json:"http"`

	Realtime struct {
		Connected   int64 `json:"connected"`
		Connections int64 `json:"connections_total"`
		Dropped     int64 `json:"dropped_total"`
		Throttled   int64 `json:"throttled_total"`
		Published   int64 `json:"published_total"`
		Delivered   int64 `json:"delivered_total"`
		SinkForward int64 `json:"sink_forward_total"`
		SinkErrors  int64 `json:"sink_errors_total"`
	} `json:"realtime"`

	NSQ struct {
		PublishTotal  int64        `json:"publish_total"`
		PublishErrors int64        `json:"publish_errors"`
		PublishBytes  int64        `json:"publish_bytes"`
		Depths        []TopicDepth `json:"depths"`
	} `json:"nsq"`

	Consumer struct {
		Messages int64   `json:"messages"`
		Errors   int64   `json:"errors"`
		AvgMS    float64 `json:"avg_ms"`
	} `json:"consumer"`

	Readings struct {
		Ingested int64 `json:"ingested"`
		Rejected int64 `json:"rejected"`
	} `json:"readings"`

	Notifications struct {
		Created int64 `json:"created"`
		Errors  int64 `json:"errors"`
	} `json:"notifications"`

	TSDB struct {
		Points int64 `json:"points"`
		Errors int64 `json:"errors"`
	} `json:"tsdb"`

	Cleanup struct {
		DeletedNotifications int64 `json:"deleted_notifications"`
	} `json:"cleanup"`
}

func (s *Stats) Snapshot() Snapshot {
	var snap Snapshot
	if s == nil {
		return snap
	}
	snap.UptimeSeconds = int64(time.Since(s.start).Seconds())

	snap.HTTP.Requests = s.httpRequests.Load()
	snap.HTTP.Errors = s.httpErrors.Load()
	if n := s.httpLatencyCount.Load(); n > 0 {
		snap.HTTP.AvgMS = float64(s.httpLatencyUS.Load()) / float64(n) / 1000.0
	}

	snap.Realtime.Connected = s.wsConnected.Load()
	snap.Realtime.Connections = s.wsConnections.Load()
	snap.Realtime.Dropped = s.wsDropped.Load()
	snap.Realtime.Throttled = s.wsThrottled.Load()
	snap.Realtime.Published = s.eventsPublished.Load()
	snap.Realtime.Delivered = s.eventsDelivered.Load()
	snap.Realtime.SinkForward = s.sinkForwards.Load()
	snap.Realtime.SinkErrors = s.sinkErrors.Load()

	snap.NSQ.PublishTotal = s.nsqPublishTotal.Load()
	snap.NSQ.PublishErrors = s.nsqPublishErrors.Load()
	snap.NSQ.PublishBytes = s.nsqPublishBytes.Load()
	s.depthMu.Lock()
	for topic, depth := range s.nsqDepths {
		snap.NSQ.Depths = append(snap.NSQ.Depths, TopicDepth{Topic: topic, Depth: depth})
	}
	s.depthMu.Unlock()
	sort.Slice(snap.NSQ.Depths, func(i, j int) bool { return snap.NSQ.Depths[i].Topic < snap.NSQ.Depths[j].Topic })

	snap.Consumer.Messages = s.consumerMessages.Load()
	snap.Consumer.Errors = s.consumerErrors.Load()
	if n := s.consumerLatencyCount.Load(); n > 0 {
		snap.Consumer.AvgMS = float64(s.consumerLatencyUS.Load()) / float64(n) / 1000.0
	}

	snap.Readings.Ingested = s.readingsIngested.Load()
	snap.Readings.Rejected = s.readingsRejected.Load()
	snap.Notifications.Created = s.notificationsCreated.Load()
	snap.Notifications.Errors = s.notificationErrors.Load()
	snap.TSDB.Points = s.tsdbPoints.Load()
	snap.TSDB.Errors = s.tsdbErrors.Load()
	snap.Cleanup.DeletedNotifications = s.cleanupDeletedNotifications.Load()
	return snap
}

func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
