package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"clinicdesk/backend/internal/config"
	"clinicdesk/backend/internal/metrics"
	"clinicdesk/backend/internal/notify"
	"clinicdesk/backend/internal/notify/kafka"
	"clinicdesk/backend/internal/seed"
	"clinicdesk/backend/internal/service/appointments"
	"clinicdesk/backend/internal/store"
	"clinicdesk/backend/internal/store/memory"
	"clinicdesk/backend/internal/store/postgres"
	grpcTransport "clinicdesk/backend/internal/transport/grpc"
	"clinicdesk/backend/internal/transport/rest"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "clinicdesk-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "clinicdesk-server"),
	)
	slog.SetDefault(log)

	if err := run(log, cfg); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("store", cfg.StoreDriver),
		slog.String("log_level", cfg.LogLevel),
	)

	collector := metrics.NewCollector()

	repo, ready, closeStore, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := notify.NewHub(log)
	notifiers := []notify.Notifier{notify.NewLog(log), hub}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers:         cfg.KafkaBrokers,
			Topic:           cfg.KafkaTopic,
			WriteTimeout:    cfg.KafkaWriteTimeout,
			BatchTimeout:    cfg.KafkaBatchTimeout,
			BreakerFailures: uint32(max(cfg.KafkaBreakerFails, 0)),
			BreakerCooldown: cfg.KafkaBreakerWait,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("kafka publisher close failed", slog.Any("err", err))
			}
		}()
		notifiers = append(notifiers, pub)
		log.Info("kafka notifications enabled", slog.String("topic", cfg.KafkaTopic), slog.Int("brokers", len(cfg.KafkaBrokers)))
	}

	svc := appointments.NewService(repo,
		appointments.WithNotifier(notify.Multi(notifiers...)),
		appointments.WithRecorder(collector),
		appointments.WithLogger(log),
	)

	if cfg.SeedFile != "" {
		f, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(ctx, svc, f, log); err != nil {
			return err
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcTransport.DefaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout),
			grpcTransport.MetricsInterceptor(collector),
		),
	)
	grpcTransport.RegisterAppointmentsServiceServer(grpcServer, grpcTransport.NewAppointmentsServer(svc, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcTransport.AppointmentsServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: rest.NewRouter(svc, rest.Options{
			Log:            log,
			Events:         hub,
			Metrics:        collector,
			MetricsHandler: collector.Handler(),
			Ready:          ready,
			WriteLimit:     rate.Limit(cfg.HTTPWriteRate),
			WriteBurst:     cfg.HTTPWriteBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		hub.Close()
		shutdownHTTP(log, httpServer, cfg.ShutdownTimeout)
		shutdownGRPC(log, grpcServer, cfg.ShutdownTimeout)
		return nil
	})

	return g.Wait()
}

// openStore returns the configured repository, a readiness check and a
// cleanup func.
func openStore(ctx context.Context, log *slog.Logger, cfg config.Config) (store.AppointmentRepository, func(context.Context) error, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store; appointments are lost on restart")
		return memory.NewAppointmentRepo(), nil, func() {}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}

	if cfg.MigrateOnStart {
		group, err := postgres.Migrate(ctx, db)
		if err != nil {
			closeDB()
			log.Error("database migration failed", slog.Any("err", err))
			return nil, nil, nil, err
		}
		if group.IsZero() {
			log.Info("database schema up to date")
		} else {
			log.Info("database migrations applied", slog.String("group", group.String()))
		}
	}

	return postgres.NewAppointmentRepo(db), db.PingContext, closeDB, nil
}

func shutdownHTTP(log *slog.Logger, s *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = s.Close()
		return
	}
	log.Info("http server stopped")
}

func shutdownGRPC(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
