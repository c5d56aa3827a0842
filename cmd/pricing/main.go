package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/pathpricing/internal/pricing/application"
	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	"github.com/wyfcoding/pathpricing/internal/pricing/infrastructure/messaging"
	"github.com/wyfcoding/pathpricing/internal/pricing/infrastructure/persistence/memory"
	"github.com/wyfcoding/pathpricing/internal/pricing/infrastructure/persistence/mysql"
	redispersistence "github.com/wyfcoding/pathpricing/internal/pricing/infrastructure/persistence/redis"
	grpcserver "github.com/wyfcoding/pathpricing/internal/pricing/interfaces/grpc"
	httphandler "github.com/wyfcoding/pathpricing/internal/pricing/interfaces/http"
	"github.com/wyfcoding/pathpricing/pkg/cache"
	"github.com/wyfcoding/pathpricing/pkg/config"
	"github.com/wyfcoding/pathpricing/pkg/db"
	"github.com/wyfcoding/pathpricing/pkg/idgen"
	"github.com/wyfcoding/pathpricing/pkg/logger"
	"github.com/wyfcoding/pathpricing/pkg/metrics"
	"github.com/wyfcoding/pathpricing/pkg/middleware"
	"github.com/wyfcoding/pathpricing/pkg/mq"
	"github.com/wyfcoding/pathpricing/pkg/ratelimit"
)

const serviceName = "pricing"

func main() {
	var configPath string
	var nodeID int64
	flag.StringVar(&configPath, "config", "configs/pricing/config.toml", "path to config file")
	flag.Int64Var(&nodeID, "node", 1, "snowflake node id for run ids")
	flag.Parse()

	if err := run(configPath, nodeID); err != nil {
		fmt.Fprintf(os.Stderr, "pricing: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, nodeID int64) error {
	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	ctx := context.Background()
	logger.Info(ctx, "Starting service", "service", serviceName, "version", cfg.Version, "env", cfg.Environment)

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(serviceName)
	if err := m.Register(reg); err != nil {
		return err
	}
	collector := metrics.NewDefaultMetricsCollector(m)

	// 4. Persistence & Messaging
	var (
		repo      domain.PricingRunRepository
		publisher domain.EventPublisher
		relay     domain.OutboxRelay
		cleanup   func(context.Context, time.Time) (int64, error)
	)
	switch cfg.Database.Driver {
	case "memory":
		repo = memory.NewPricingRunRepository()
		logger.Warn(ctx, "Using in-memory run repository, runs are not durable")
	default:
		database, err := db.Init(db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			return err
		}
		defer database.Close()

		if cfg.Database.AutoMigrate {
			if err := mysql.AutoMigrate(database.DB); err != nil {
				return fmt.Errorf("migrate pricing runs failed: %w", err)
			}
			if err := messaging.AutoMigrate(database.DB); err != nil {
				return fmt.Errorf("migrate outbox failed: %w", err)
			}
		}
		repo = mysql.NewPricingRunRepository(database.DB)
		outbox := messaging.NewOutboxEventPublisher(database.DB)
		publisher = outbox
		cleanup = outbox.CleanupProcessedMessages

		if cfg.Kafka.Enabled() {
			producer, err := mq.NewProducer(mq.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
			if err != nil {
				return err
			}
			defer producer.Close()
			relay = messaging.NewOutboxRelay(messaging.NewGormOutboxStore(database.DB), producer)
		}
	}

	var (
		runCache domain.PricingRunCache
		limiter  ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
	)
	if cfg.Redis.Host != "" {
		redisCache, err := cache.New(cache.Config{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Warn(ctx, "Redis unavailable, running without run cache and with local rate limiting", "error", err)
		} else {
			defer redisCache.Close()
			runCache = redispersistence.NewPricingRunCache(redisCache, time.Duration(cfg.Redis.RunTTL)*time.Second)
			limiter = ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		}
	}

	ids, err := idgen.New(nodeID, "RUN")
	if err != nil {
		return err
	}

	// 5. Application
	devices := domain.HostDevices()
	for _, d := range devices {
		logger.Info(ctx, "Compute device available", "device", d.String())
	}
	command := application.NewPricingCommandService(repo, runCache, publisher, relay, ids, collector, cfg.Engine, devices)
	query := application.NewPricingQueryService(repo, runCache)
	app := application.NewPricingService(command, query)

	// 6. Interfaces
	// gRPC
	grpcSrv := grpc.NewServer(
		grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)),
		grpc.ChainUnaryInterceptor(
			middleware.GRPCRecoveryInterceptor(),
			middleware.GRPCRequestIDInterceptor(),
			middleware.GRPCLoggingInterceptor(),
			middleware.GRPCMetricsInterceptor(collector),
			middleware.GRPCRateLimitInterceptor(limiter, cfg.RateLimit),
		),
	)
	grpcserver.NewServer(grpcSrv, app)
	reflection.Register(grpcSrv)

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinRequestID(),
		middleware.GinLoggingMiddleware(),
		middleware.GinMetricsMiddleware(collector),
		middleware.GinCORSMiddleware(),
	)
	httphandler.NewPricingHandler(app).RegisterRoutes(r, middleware.RateLimitMiddleware(limiter, cfg.RateLimit))

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler(reg)))
	}
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 7. Start
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return err
		}
		logger.Info(gctx, "Starting gRPC server", "addr", cfg.GRPC.Addr())
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			relayOutbox(gctx, app, cfg.Kafka, cleanup)
			return nil
		})
	}

	// 8. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
		return err
	}
	logger.Info(ctx, "Server exited")
	return nil
}

// relayOutbox 按间隔转发 outbox 消息，并每小时清理一天前已发送的记录
func relayOutbox(ctx context.Context, app *application.PricingService, cfg config.KafkaConfig, cleanup func(context.Context, time.Time) (int64, error)) {
	interval := time.Duration(cfg.RelayInterval) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 一批满额时继续转发，直到积压清空
			for {
				n, err := app.RelayOutbox(ctx, cfg.RelayBatch)
				if err != nil {
					logger.Warn(ctx, "Outbox relay failed", "error", err)
					break
				}
				if n < cfg.RelayBatch || n == 0 {
					break
				}
			}
		case <-cleanupTicker.C:
			if cleanup == nil {
				continue
			}
			n, err := cleanup(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				logger.Warn(ctx, "Outbox cleanup failed", "error", err)
				continue
			}
			logger.Debug(ctx, "Outbox cleaned up", "deleted", n)
		}
	}
}
