package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "coastwatch"

// Collector exposes a Stats snapshot in the Prometheus exposition format.
type Collector struct {
	stats *Stats

	httpRequests  *prometheus.Desc
	httpErrors    *prometheus.Desc
	wsConnected   *prometheus.Desc
	wsDropped     *prometheus.Desc
	wsThrottled   *prometheus.Desc
	published     *prometheus.Desc
	delivered     *prometheus.Desc
	sinkErrors    *prometheus.Desc
	nsqPublished  *prometheus.Desc
	nsqErrors     *prometheus.Desc
	nsqDepth      *prometheus.Desc
	consumed      *prometheus.Desc
	consumeErrors *prometheus.Desc
	readings      *prometheus.Desc
	notifications *prometheus.Desc
	tsdbPoints    *prometheus.Desc
	cleaned       *prometheus.Desc
}

func NewCollector(stats *Stats) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		stats:         stats,
		httpRequests:  desc("http_requests_total", "HTTP requests served."),
		httpErrors:    desc("http_errors_total", "HTTP responses with status >= 500."),
		wsConnected:   desc("realtime_connected_clients", "Currently connected realtime clients."),
		wsDropped:     desc("realtime_dropped_clients_total", "Realtime clients dropped for a full send buffer."),
		wsThrottled:   desc("realtime_throttled_messages_total", "Inbound realtime messages rejected by the rate limiter."),
		published:     desc("realtime_events_published_total", "Events published to the local hub."),
		delivered:     desc("realtime_events_delivered_total", "Event copies queued to connected clients."),
		sinkErrors:    desc("realtime_sink_errors_total", "Failed forwards to external event sinks."),
		nsqPublished:  desc("nsq_publish_total", "Messages published to nsqd."),
		nsqErrors:     desc("nsq_publish_errors_total", "Failed nsqd publishes."),
		nsqDepth:      desc("nsq_topic_depth", "Backlog per nsqd topic.", "topic"),
		consumed:      desc("ingest_messages_total", "Messages consumed from NSQ and MQTT."),
		consumeErrors: desc("ingest_errors_total", "Consumed messages that failed and were requeued."),
		readings:      desc("readings_total", "Sensor readings by outcome.", "outcome"),
		notifications: desc("notifications_created_total", "Notifications created by the notifier."),
		tsdbPoints:    desc("tsdb_points_total", "Reading points mirrored to InfluxDB."),
		cleaned:       desc("cleanup_deleted_notifications_total", "Read notifications removed by retention."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.httpRequests, c.httpErrors, c.wsConnected, c.wsDropped, c.wsThrottled, c.published, c.delivered,
		c.sinkErrors, c.nsqPublished, c.nsqErrors, c.nsqDepth, c.consumed, c.consumeErrors, c.readings,
		c.notifications, c.tsdbPoints, c.cleaned,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}

	counter(c.httpRequests, snap.HTTP.Requests)
	counter(c.httpErrors, snap.HTTP.Errors)
	gauge(c.wsConnected, snap.Realtime.Connected)
	counter(c.wsDropped, snap.Realtime.Dropped)
	counter(c.wsThrottled, snap.Realtime.Throttled)
	counter(c.published, snap.Realtime.Published)
	counter(c.delivered, snap.Realtime.Delivered)
	counter(c.sinkErrors, snap.Realtime.SinkErrors)
	counter(c.nsqPublished, snap.NSQ.PublishTotal)
	counter(c.nsqErrors, snap.NSQ.PublishErrors)
	for _, d := range snap.NSQ.Depths {
		gauge(c.nsqDepth, d.Depth, d.Topic)
	}
	counter(c.consumed, snap.Consumer.Messages)
	counter(c.consumeErrors, snap.Consumer.Errors)
	counter(c.readings, snap.Readings.Ingested, "accepted")
	counter(c.readings, snap.Readings.Rejected, "rejected")
	counter(c.notifications, snap.Notifications.Created)
	counter(c.tsdbPoints, snap.TSDB.Points)
	counter(c.cleaned, snap.Cleanup.DeletedNotifications)
}

// Registry returns a registry carrying the process collectors and c.
func (c *Collector) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
