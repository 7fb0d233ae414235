package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/cleanup"
	"github.com/DivyPatel-31/coastwatch/internal/config"
	"github.com/DivyPatel-31/coastwatch/internal/consumer"
	"github.com/DivyPatel-31/coastwatch/internal/db"
	"github.com/DivyPatel-31/coastwatch/internal/httpserver"
	"github.com/DivyPatel-31/coastwatch/internal/ingest"
	"github.com/DivyPatel-31/coastwatch/internal/logging"
	"github.com/DivyPatel-31/coastwatch/internal/metrics"
	"github.com/DivyPatel-31/coastwatch/internal/migrate"
	"github.com/DivyPatel-31/coastwatch/internal/mqttin"
	"github.com/DivyPatel-31/coastwatch/internal/notify"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/queue"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/DivyPatel-31/coastwatch/internal/supervisor"
	"github.com/DivyPatel-31/coastwatch/internal/tsdb"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "coastwatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "coastwatch")
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("config loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := obs.New()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SeedDemoData {
		if err := store.SeedDemo(ctx, st); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("demo data seeded")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = metrics.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		defer rdb.Close()
	}

	var recorder *metrics.RedisRecorder
	if cfg.EnableMetrics && rdb != nil {
		recorder = metrics.NewRedisRecorder(rdb)
	}

	hub := realtime.NewHub(log.Named("realtime"), stats)
	bus := realtime.NewBus(hub, log.Named("bus"), stats)

	if cfg.NSQDAddress != "" {
		nsqPub, err := queue.NewNSQPublisher(cfg.NSQDAddress)
		if err != nil {
			return fmt.Errorf("nsq publisher: %w", err)
		}
		defer nsqPub.Stop()
		pub := queue.NewBreakerPublisher(queue.ObservePublisher(nsqPub, stats), queue.BreakerConfig{
			Name:   "nsq-events",
			Logger: log.Named("queue"),
		})
		bus.AddSink(realtime.PublisherSink{Publisher: pub, Topic: cfg.NSQEventsTopic})
	}
	if recorder != nil {
		bus.AddSink(realtime.SinkFunc(func(ctx context.Context, e realtime.Event, _ []byte) error {
			return recorder.ObserveEvent(ctx, string(e.Kind()), time.Now())
		}))
	}

	var relay *realtime.RedisRelay
	if cfg.RealtimeRelay && rdb != nil {
		relay = realtime.NewRedisRelay(rdb, realtime.DefaultRelayChannel, bus, log.Named("relay"))
		bus.AddSink(relay)
	}

	readingOpts := []ingest.Option{ingest.WithLogger(log.Named("ingest")), ingest.WithStats(stats)}
	if recorder != nil {
		readingOpts = append(readingOpts, ingest.WithRecorder(recorder))
	}
	if cfg.InfluxURL != "" {
		mirror := tsdb.NewInfluxMirror(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, log.Named("tsdb"), stats)
		defer mirror.Close()
		readingOpts = append(readingOpts, ingest.WithMirror(mirror))
	}
	readings := ingest.NewReadings(st, bus, readingOpts...)

	notifier := notify.New(st, bus, log.Named("notify"), stats)

	srv := httpserver.New(cfg, httpserver.Deps{
		Store:    st,
		Hub:      hub,
		Bus:      bus,
		Notifier: notifier,
		Readings: readings,
		Recorder: recorder,
		Stats:    stats,
		Log:      log.Named("http"),
		Version:  Version,
	})

	tree := supervisor.NewTree(log.Named("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddRealtime(hub)
	if relay != nil {
		tree.AddRealtime(relay)
	}
	if cfg.NSQDHTTPAddress != "" {
		tree.AddRealtime(obs.NewNSQDepthPoller(stats, cfg.NSQDHTTPAddress, cfg.NSQEventsTopic, cfg.NSQReadingsTopic))
	}
	if cfg.RunConsumers {
		tree.AddIngest(consumer.NewReadingsConsumer(consumer.Options{
			NSQDAddress: cfg.NSQDAddress,
			Topic:       cfg.NSQReadingsTopic,
			Channel:     cfg.NSQChannel,
		}, readings, log.Named("consumer"), stats))
	}
	if cfg.MQTTBroker != "" {
		tree.AddIngest(mqttin.NewSubscriber(mqttin.Options{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, readings, log.Named("mqtt"), stats))
	}
	worker := cleanup.NewWorker(st, cfg.NotificationTTL)
	worker.Stats = stats
	worker.Log = log.Named("cleanup")
	tree.AddIngest(worker)
	tree.AddAPI(supervisor.NewHTTPService(srv, 10*time.Second))

	log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("backend", cfg.Backend()))
	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	log.Info("shutdown requested")

	err = <-errCh
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, u := range unstopped {
			log.Warn("service did not stop", zap.String("service", u.Name))
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Storage, func(), error) {
	if cfg.PostgresURL == "" {
		log.Info("using in-memory storage")
		return store.NewMemory(), func() {}, nil
	}

	gdb, err := db.NewGorm(ctx, cfg.PostgresURL, db.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}

	migCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := migrate.AutoMigrate(migCtx, gdb); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("db migrate: %w", err)
	}
	return store.NewGorm(gdb), func() { _ = sqlDB.Close() }, nil
}
