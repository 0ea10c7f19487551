package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-pos-checkout/internal/checkout"
	"github.com/ariefcatur/go-pos-checkout/internal/config"
	"github.com/ariefcatur/go-pos-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-pos-checkout/internal/kafka"
	"github.com/ariefcatur/go-pos-checkout/internal/logger"
	"github.com/ariefcatur/go-pos-checkout/internal/metrics"
	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"github.com/ariefcatur/go-pos-checkout/internal/postgres"
	"github.com/ariefcatur/go-pos-checkout/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Config{ServiceName: cfg.ServiceName, Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Ledger: Postgres kalau ada DSN, selain itu demo in-memory
	var (
		ledger orders.Ledger
		store  httpx.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		repo := &orders.Repo{DB: db, LockTimeout: cfg.PGLockTimeout}
		ledger, store = repo, repo
	} else {
		mem := orders.NewMemoryLedger(orders.DemoCatalog()...)
		ledger, store = mem, mem
		log.Warn("POSTGRES_DSN empty, using in-memory demo ledger")
	}

	svc := &checkout.Service{
		Ledger:      ledger,
		Metrics:     metrics.NewCheckout(reg),
		Log:         log.Named("checkout"),
		TxTimeout:   cfg.TxTimeout,
		ServiceName: cfg.ServiceName,
	}

	// Kafka producer (opsional)
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("kafka"))
		prod.Start()
		svc.Events = kafkax.EventPublisher{P: prod}
	}

	oh := &httpx.OrdersHandler{Checkout: svc, Store: store, Log: log}

	// Redis (opsional)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed, cache calls will fail soft", zap.Error(err))
		}
		oh.Cache = redisx.Cache{C: rdb}
	}

	router := httpx.NewRouter(log, metrics.NewHTTP(reg), reg)
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close() // flush sisa event setelah tidak ada request baru
	}
	cancel()
}
