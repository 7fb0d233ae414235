// Package client talks to the coastwatch dashboard API. Client issues raw
// requests; Cache layers endpoint caching and family invalidation on top, and
// Subscriber keeps the cache in step with realtime events.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/validate"
	"github.com/goccy/go-json"
)

const (
	SDKName    = "coastwatch-go"
	SDKVersion = "0.1.0"
)

// ErrUnauthorized means the session is missing or expired; callers should
// send the user back through login.
var ErrUnauthorized = errors.New("coastwatch: unauthorized")

// APIError is any non-2xx response other than 401.
type APIError struct {
	Status  int
	Message string
	Errors  []validate.FieldError
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("coastwatch: %d %s", e.Status, e.Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("coastwatch: %d %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

func New(options Options) (*Client, error) {
	baseURL, err := normalizeBaseURL(options.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := options.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(options.Token),
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

func normalizeBaseURL(baseURL string) (string, error) {
	s := strings.TrimSpace(baseURL)
	if s == "" {
		return "", errors.New("baseURL is required")
	}
	return strings.TrimRight(s, "/"), nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Token() string { return c.token }

// raw performs one request and returns the body of a 2xx response.
func (c *Client) raw(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", SDKName+"/"+SDKVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case res.StatusCode < 200 || res.StatusCode >= 300:
		apiErr := &APIError{Status: res.StatusCode}
		var eb struct {
			Message string                `json:"message"`
			Errors  []validate.FieldError `json:"errors"`
		}
		if json.Unmarshal(body, &eb) == nil {
			apiErr.Message = eb.Message
			apiErr.Errors = eb.Errors
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	body, err := c.raw(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, path, query, nil, &out)
	return out, err
}

func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	return get[model.User](ctx, c, PathUser, nil)
}

func (c *Client) Sensors(ctx context.Context) ([]model.Sensor, error) {
	return get[[]model.Sensor](ctx, c, PathSensors, nil)
}

// SensorReadings lists a sensor's readings; zero from/to leave the window open.
func (c *Client) SensorReadings(ctx context.Context, sensorID string, from, to time.Time) ([]model.SensorReading, error) {
	return get[[]model.SensorReading](ctx, c, SensorReadingsPath(sensorID), readingsQuery(from, to))
}

func (c *Client) Alerts(ctx context.Context) ([]model.Alert, error) {
	return get[[]model.Alert](ctx, c, PathAlerts, nil)
}

func (c *Client) ActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	return get[[]model.Alert](ctx, c, PathActiveAlerts, nil)
}

func (c *Client) Reports(ctx context.Context) ([]model.Report, error) {
	return get[[]model.Report](ctx, c, PathReports, nil)
}

func (c *Client) MyReports(ctx context.Context) ([]model.Report, error) {
	return get[[]model.Report](ctx, c, PathMyReports, nil)
}

func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	return get[[]model.Notification](ctx, c, PathNotifications, nil)
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	return get[Stats](ctx, c, PathStats, nil)
}

func (c *Client) WaterLevelTrends(ctx context.Context) (Series, error) {
	return get[Series](ctx, c, PathWaterLevelTrends, nil)
}

func (c *Client) ThreatDistribution(ctx context.Context) (Series, error) {
	return get[Series](ctx, c, PathThreatDistribution, nil)
}

type Stats struct {
	ActiveAlerts  int64 `json:"activeAlerts"`
	SensorsOnline int64 `json:"sensorsOnline"`
	TotalReports  int64 `json:"totalReports"`
}

type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type AlertInput struct {
	Type        model.AlertType `json:"type"`
	Severity    model.Severity  `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location"`
	Latitude    *string         `json:"latitude,omitempty"`
	Longitude   *string         `json:"longitude,omitempty"`
}

type ReportInput struct {
	Type        model.ReportType `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Location    string           `json:"location"`
	Latitude    *string          `json:"latitude,omitempty"`
	Longitude   *string          `json:"longitude,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
}

type ReadingInput struct {
	SensorID string  `json:"sensorId"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
}

func (c *Client) CreateAlert(ctx context.Context, in AlertInput) (model.Alert, error) {
	var out model.Alert
	err := c.do(ctx, http.MethodPost, PathAlerts, nil, in, &out)
	return out, err
}

func (c *Client) ResolveAlert(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, PathAlerts+"/"+url.PathEscape(id)+"/resolve", nil, struct{}{}, nil)
}

func (c *Client) CreateReport(ctx context.Context, in ReportInput) (model.Report, error) {
	var out model.Report
	err := c.do(ctx, http.MethodPost, PathReports, nil, in, &out)
	return out, err
}

func (c *Client) CreateSensorReading(ctx context.Context, in ReadingInput) (model.SensorReading, error) {
	var out model.SensorReading
	err := c.do(ctx, http.MethodPost, PathSensorReadings, nil, in, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, PathNotifications+"/"+url.PathEscape(id)+"/read", nil, struct{}{}, nil)
}

func (c *Client) UpdateRole(ctx context.Context, role model.Role) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodPatch, PathUser+"/role", nil, map[string]model.Role{"role": role}, &out)
	return out, err
}

func readingsQuery(from, to time.Time) url.Values {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.UTC().Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		q.Set("to", to.UTC().Format(time.RFC3339Nano))
	}
	return q
}
