package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	PostgresURL     string
	DBMaxOpenConns  int
	SeedDemoData    bool
	MaintenanceMode bool

	AuthSecret   []byte
	AuthTokenTTL time.Duration
	AuthDevLogin bool

	LogLevel  string
	LogFormat string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EnableMetrics bool
	RealtimeRelay bool

	NSQDAddress      string
	NSQDHTTPAddress  string
	NSQEventsTopic   string
	NSQReadingsTopic string
	NSQChannel       string
	RunConsumers     bool

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	WSAllowedOrigins   []string
	RealtimeSendBuffer int
	NotificationTTL    time.Duration
}

func FromEnv() (Config, error) {
	authSecretRaw := strings.TrimSpace(os.Getenv("AUTH_SECRET"))
	if authSecretRaw == "" {
		return Config{}, errors.New("AUTH_SECRET is required")
	}
	authSecret, err := decodeBase64Any(authSecretRaw)
	if err != nil {
		return Config{}, errors.New("invalid AUTH_SECRET (expected base64)")
	}
	if len(authSecret) < 32 {
		return Config{}, errors.New("AUTH_SECRET too short (need >= 32 bytes)")
	}

	cfg := Config{
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		PostgresURL:     strings.TrimSpace(os.Getenv("POSTGRES_URL")),
		DBMaxOpenConns:  parseIntDefault(getenvDefault("DB_MAX_OPEN_CONNS", "10"), 10),
		MaintenanceMode: parseBoolDefault(getenvDefault("MAINTENANCE_MODE", "false"), false),

		AuthSecret:   authSecret,
		AuthDevLogin: parseBoolDefault(getenvDefault("AUTH_DEV_LOGIN", "false"), false),

		LogLevel:  getenvDefault("LOG_LEVEL", "info"),
		LogFormat: getenvDefault("LOG_FORMAT", "json"),

		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseIntDefault(getenvDefault("REDIS_DB", "0"), 0),

		NSQDAddress:      strings.TrimSpace(os.Getenv("NSQD_ADDRESS")),
		NSQDHTTPAddress:  strings.TrimSpace(os.Getenv("NSQD_HTTP_ADDRESS")),
		NSQEventsTopic:   getenvDefault("NSQ_EVENTS_TOPIC", "coastal-events"),
		NSQReadingsTopic: getenvDefault("NSQ_READINGS_TOPIC", "sensor-readings"),
		NSQChannel:       getenvDefault("NSQ_CHANNEL", "coastwatch-ingest"),

		MQTTBroker:   strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTClientID: getenvDefault("MQTT_CLIENT_ID", "coastwatch"),
		MQTTTopic:    getenvDefault("MQTT_TOPIC", "coastwatch/sensors/+/readings"),

		InfluxURL:    strings.TrimSpace(os.Getenv("INFLUX_URL")),
		InfluxToken:  strings.TrimSpace(os.Getenv("INFLUX_TOKEN")),
		InfluxOrg:    getenvDefault("INFLUX_ORG", "coastwatch"),
		InfluxBucket: getenvDefault("INFLUX_BUCKET", "sensor_readings"),

		WSAllowedOrigins:   splitList(getenvDefault("WS_ALLOWED_ORIGINS", "*")),
		RealtimeSendBuffer: parseIntDefault(getenvDefault("REALTIME_SEND_BUFFER", "256"), 256),
	}
	cfg.AuthTokenTTL = parseDurationDefault(getenvDefault("AUTH_TOKEN_TTL", "24h"), 24*time.Hour)
	cfg.NotificationTTL = parseDurationDefault(getenvDefault("NOTIFICATION_TTL", "720h"), 720*time.Hour)
	cfg.SeedDemoData = parseBoolDefault(getenvDefault("SEED_DEMO_DATA", strconv.FormatBool(cfg.PostgresURL == "")), cfg.PostgresURL == "")

	cfg.EnableMetrics = parseBoolDefault(getenvDefault("ENABLE_METRICS", "true"), true) && cfg.RedisAddr != ""
	cfg.RealtimeRelay = parseBoolDefault(getenvDefault("REALTIME_RELAY", "true"), true) && cfg.RedisAddr != ""
	cfg.RunConsumers = parseBoolDefault(getenvDefault("RUN_CONSUMERS", "true"), true) && cfg.NSQDAddress != ""
	if cfg.RealtimeSendBuffer <= 0 {
		return Config{}, errors.New("REALTIME_SEND_BUFFER must be > 0")
	}
	if (cfg.InfluxURL == "") != (cfg.InfluxToken == "") {
		return Config{}, errors.New("INFLUX_URL and INFLUX_TOKEN must be set together")
	}
	return cfg, nil
}

// Backend names the storage backend selected by POSTGRES_URL.
func (c Config) Backend() string {
	if c.PostgresURL == "" {
		return "memory"
	}
	return "postgres"
}

func getenvDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolDefault(value string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseIntDefault(value string, defaultValue int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationDefault(value string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decodeBase64Any(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty")
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func (c Config) String() string {
	return fmt.Sprintf(
		"http=%s backend=%s pg=%s redis=%s metrics=%v relay=%v nsqd=%s consumers=%v mqtt=%s influx=%v dev_login=%v maintenance=%v topics(events=%s readings=%s)",
		c.HTTPAddr,
		c.Backend(),
		redactPostgresURL(c.PostgresURL),
		redactAddr(c.RedisAddr),
		c.EnableMetrics,
		c.RealtimeRelay,
		redactAddr(c.NSQDAddress),
		c.RunConsumers,
		redactAddr(c.MQTTBroker),
		c.InfluxURL != "",
		c.AuthDevLogin,
		c.MaintenanceMode,
		c.NSQEventsTopic,
		c.NSQReadingsTopic,
	)
}

func redactPostgresURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "<none>"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<set>"
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	host := u.Host
	db := strings.TrimPrefix(u.Path, "/")
	if user == "" && host == "" && db == "" {
		return "<set>"
	}
	if user == "" {
		user = "?"
	}
	if host == "" {
		host = "?"
	}
	if db == "" {
		db = "?"
	}
	return fmt.Sprintf("%s@%s/%s", user, host, db)
}

func redactAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "<none>"
	}
	return addr
}
