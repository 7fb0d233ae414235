package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/goccy/go-json"
)

const (
	PathUser               = "/api/auth/user"
	PathSensors            = "/api/sensors"
	PathSensorReadings     = "/api/sensor-readings"
	PathAlerts             = "/api/alerts"
	PathActiveAlerts       = "/api/alerts/active"
	PathReports            = "/api/reports"
	PathMyReports          = "/api/reports/mine"
	PathNotifications      = "/api/notifications"
	PathStats              = "/api/analytics/stats"
	PathWaterLevelTrends   = "/api/analytics/water-level-trends"
	PathThreatDistribution = "/api/analytics/threat-distribution"
)

func SensorReadingsPath(sensorID string) string {
	return PathSensors + "/" + url.PathEscape(sensorID) + "/readings"
}

// Family groups the cache entries one mutation or event makes outdated.
type Family string

const (
	FamilyUser          Family = "user"
	FamilyAlerts        Family = "alerts"
	FamilyActiveAlerts  Family = "alerts/active"
	FamilySensors       Family = "sensors"
	FamilyAnalytics     Family = "analytics"
	FamilyReports       Family = "reports"
	FamilyNotifications Family = "notifications"
)

var eventFamilies = map[realtime.Kind][]Family{
	realtime.KindNewAlert:      {FamilyAlerts, FamilyActiveAlerts},
	realtime.KindAlertResolved: {FamilyAlerts, FamilyActiveAlerts},
	realtime.KindSensorReading: {FamilySensors, FamilyAnalytics},
	realtime.KindNewReport:     {FamilyReports},
	realtime.KindNotification:  {FamilyNotifications},
}

// FamiliesFor returns the families an event of kind k invalidates.
func FamiliesFor(k realtime.Kind) []Family {
	return append([]Family(nil), eventFamilies[k]...)
}

// FamilyOf maps an endpoint path to its family, or "" for paths nothing
// invalidates.
func FamilyOf(path string) Family {
	switch {
	case path == PathUser:
		return FamilyUser
	case path == PathAlerts:
		return FamilyAlerts
	case path == PathActiveAlerts:
		return FamilyActiveAlerts
	case path == PathSensors, strings.HasPrefix(path, PathSensors+"/"):
		return FamilySensors
	case strings.HasPrefix(path, "/api/analytics/"):
		return FamilyAnalytics
	case path == PathReports, path == PathMyReports:
		return FamilyReports
	case path == PathNotifications:
		return FamilyNotifications
	}
	return ""
}

// Key identifies a cached read: the path plus its query with keys sorted.
func Key(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

type entry struct {
	path     string
	query    url.Values
	family   Family
	body     []byte
	stale    bool
	watchers int
	// gen is bumped by every invalidation; a fetch that started under an
	// older gen must not clear stale.
	gen uint64
}

// Cache holds response bodies per endpoint. A watched entry is one some view
// is displaying: invalidation refetches it immediately. Unwatched entries are
// only marked stale and refetched on their next Get.
type Cache struct {
	client *Client

	mu      sync.Mutex
	entries map[string]*entry

	// OnRefresh, when set, is called with the key of every entry that was
	// refetched by an invalidation.
	OnRefresh func(key string)
}

func NewCache(c *Client) *Cache {
	return &Cache{client: c, entries: map[string]*entry{}}
}

func (c *Cache) Client() *Client { return c.client }

// Get decodes the cached body for path+query into out, fetching it first if
// it is missing or stale.
func (c *Cache) Get(ctx context.Context, path string, query url.Values, out any) error {
	key := Key(path, query)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.body != nil && !e.stale {
		body := e.body
		c.mu.Unlock()
		return json.Unmarshal(body, out)
	}
	c.mu.Unlock()

	body, err := c.fetch(ctx, key, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *Cache) fetch(ctx context.Context, key, path string, query url.Values) ([]byte, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{path: path, query: cloneValues(query), family: FamilyOf(path), stale: true}
		c.entries[key] = e
	}
	gen := e.gen
	c.mu.Unlock()

	body, err := c.client.raw(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e.body = body
	e.stale = e.gen != gen
	return body, nil
}

// Watch marks path+query as displayed until the returned func is called.
func (c *Cache) Watch(path string, query url.Values) (unwatch func()) {
	key := Key(path, query)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{path: path, query: cloneValues(query), family: FamilyOf(path), stale: true}
		c.entries[key] = e
	}
	e.watchers++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if e.watchers > 0 {
				e.watchers--
			}
			c.mu.Unlock()
		})
	}
}

// Stale reports whether the entry for path+query needs a refetch.
func (c *Cache) Stale(path string, query url.Values) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[Key(path, query)]
	return !ok || e.body == nil || e.stale
}

// Invalidate marks every entry in the given families stale and refetches the
// watched ones. Refetch failures leave the entry stale and are returned joined.
func (c *Cache) Invalidate(ctx context.Context, families ...Family) error {
	if len(families) == 0 {
		return nil
	}
	want := make(map[Family]bool, len(families))
	for _, f := range families {
		want[f] = true
	}

	type refetch struct {
		key   string
		path  string
		query url.Values
	}
	var todo []refetch

	c.mu.Lock()
	for key, e := range c.entries {
		if !want[e.family] {
			continue
		}
		e.stale = true
		e.gen++
		if e.watchers > 0 {
			todo = append(todo, refetch{key: key, path: e.path, query: e.query})
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, r := range todo {
		if _, err := c.fetch(ctx, r.key, r.path, r.query); err != nil {
			errs = append(errs, fmt.Errorf("refetch %s: %w", r.key, err))
			continue
		}
		if c.OnRefresh != nil {
			c.OnRefresh(r.key)
		}
	}
	return errors.Join(errs...)
}

// Apply invalidates the families mapped to e's kind.
func (c *Cache) Apply(ctx context.Context, e realtime.Event) error {
	return c.Invalidate(ctx, FamiliesFor(e.Kind())...)
}

func cloneValues(q url.Values) url.Values {
	if len(q) == 0 {
		return nil
	}
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func cached[T any](ctx context.Context, c *Cache, path string, query url.Values) (T, error) {
	var out T
	err := c.Get(ctx, path, query, &out)
	return out, err
}

func (c *Cache) CurrentUser(ctx context.Context) (model.User, error) {
	return cached[model.User](ctx, c, PathUser, nil)
}

func (c *Cache) Sensors(ctx context.Context) ([]model.Sensor, error) {
	return cached[[]model.Sensor](ctx, c, PathSensors, nil)
}

func (c *Cache) SensorReadings(ctx context.Context, sensorID string, from, to time.Time) ([]model.SensorReading, error) {
	return cached[[]model.SensorReading](ctx, c, SensorReadingsPath(sensorID), readingsQuery(from, to))
}

func (c *Cache) Alerts(ctx context.Context) ([]model.Alert, error) {
	return cached[[]model.Alert](ctx, c, PathAlerts, nil)
}

func (c *Cache) ActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	return cached[[]model.Alert](ctx, c, PathActiveAlerts, nil)
}

func (c *Cache) Reports(ctx context.Context) ([]model.Report, error) {
	return cached[[]model.Report](ctx, c, PathReports, nil)
}

func (c *Cache) MyReports(ctx context.Context) ([]model.Report, error) {
	return cached[[]model.Report](ctx, c, PathMyReports, nil)
}

func (c *Cache) Notifications(ctx context.Context) ([]model.Notification, error) {
	return cached[[]model.Notification](ctx, c, PathNotifications, nil)
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	return cached[Stats](ctx, c, PathStats, nil)
}

// Mutations go to the server first; the cache is only invalidated after the
// write succeeded.

func (c *Cache) CreateAlert(ctx context.Context, in AlertInput) (model.Alert, error) {
	a, err := c.client.CreateAlert(ctx, in)
	if err != nil {
		return a, err
	}
	return a, c.Invalidate(ctx, FamilyAlerts, FamilyActiveAlerts)
}

func (c *Cache) ResolveAlert(ctx context.Context, id string) error {
	if err := c.client.ResolveAlert(ctx, id); err != nil {
		return err
	}
	return c.Invalidate(ctx, FamilyAlerts, FamilyActiveAlerts)
}

func (c *Cache) CreateReport(ctx context.Context, in ReportInput) (model.Report, error) {
	r, err := c.client.CreateReport(ctx, in)
	if err != nil {
		return r, err
	}
	return r, c.Invalidate(ctx, FamilyReports)
}

func (c *Cache) CreateSensorReading(ctx context.Context, in ReadingInput) (model.SensorReading, error) {
	r, err := c.client.CreateSensorReading(ctx, in)
	if err != nil {
		return r, err
	}
	return r, c.Invalidate(ctx, FamilySensors, FamilyAnalytics)
}

func (c *Cache) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.client.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	return c.Invalidate(ctx, FamilyNotifications)
}

func (c *Cache) UpdateRole(ctx context.Context, role model.Role) (model.User, error) {
	u, err := c.client.UpdateRole(ctx, role)
	if err != nil {
		return u, err
	}
	return u, c.Invalidate(ctx, FamilyUser)
}
