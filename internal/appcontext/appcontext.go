package appcontext

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/infra/payment"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memdb"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/RoyceAzure/lab/storefront/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ApplicationContext struct {
	// Cf 啟動時的設定快照; store、lock timeout、kafka、outbox 只在啟動時讀取
	Cf              *config.Config
	// source 回傳目前的設定, 限流參數每次請求都從這裡讀
	source          func() *config.Config
	Logger          zerolog.Logger
	Metrics         *metrics.ServerMetrics
	GormDB          *gorm.DB
	Store           db.UnifiedDB
	RedisClient     *redis.Client
	RateLimiter     redis_repo.IRateLimitRepository
	Producer        *producer.OrderEventProducer
	OutboxRelay     *worker.OutboxRelay
	Gateway         payment.Gateway
	CartService     service.ICartService
	CheckoutService service.ICheckoutService
}

func NewApplicationContext(cf *config.Config, logger zerolog.Logger) (*ApplicationContext, error) {
	return NewApplicationContextWithSource(func() *config.Config { return cf }, logger)
}

// NewApplicationContextWithSource source 通常是 config.GetConfig, 設定檔重新載入後限流參數跟著更新
func NewApplicationContextWithSource(source func() *config.Config, logger zerolog.Logger) (*ApplicationContext, error) {
	cf := source()
	app := ApplicationContext{
		Cf:     cf,
		source: source,
		Logger: logger,
	}
	logger.Info().
		Str("server_port", cf.ServerPort).
		Str("store_backend", cf.StoreBackend).
		Dur("lock_timeout", cf.LockTimeout).
		Str("redis_addr", cf.RedisAddr).
		Strs("kafka_brokers", cf.Brokers()).
		Msg("loaded config")

	if err := app.Init(); err != nil {
		app.Shutdown(context.Background())
		return nil, err
	}
	return &app, nil
}

func (app *ApplicationContext) Init() error {
	app.setUpMetrics()

	if err := app.setUpStore(); err != nil {
		return err
	}
	app.setUpRateLimiter()
	if err := app.setUpProducer(); err != nil {
		return err
	}
	app.setUpGateway()
	app.setUpServices()
	return nil
}

func (app *ApplicationContext) setUpMetrics() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.NewServerMetrics(reg)
}

// setUpStore postgres 時先 AutoMigrate
func (app *ApplicationContext) setUpStore() error {
	switch app.Cf.StoreBackend {
	case config.StoreBackendMemory:
		app.Logger.Warn().Msg("using in-memory store, data is lost on restart")
		app.Store = memdb.New(app.Cf.LockTimeout)
		return nil
	case config.StoreBackendPostgres:
		gormDB, err := db.GetDbConn(app.Cf.DbName, app.Cf.DbHost, app.Cf.DbPort, app.Cf.DbUser, app.Cf.DbPas)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		app.GormDB = gormDB
		store := db.NewUnifiedDB(gormDB, app.Cf.LockTimeout)
		if err := store.InitMigrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		app.Store = store
		app.Logger.Info().Str("host", app.Cf.DbHost).Str("db", app.Cf.DbName).Msg("postgres store ready")
		return nil
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", app.Cf.StoreBackend)
	}
}

// setUpRateLimiter 沒有設定 REDIS_ADDR 時不限流
func (app *ApplicationContext) setUpRateLimiter() {
	if app.Cf.RedisAddr == "" {
		app.Logger.Info().Msg("REDIS_ADDR not set, checkout rate limit disabled")
		return
	}
	app.RedisClient = redis.NewClient(&redis.Options{
		Addr:     app.Cf.RedisAddr,
		Password: app.Cf.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := app.RedisClient.Ping(ctx).Err(); err != nil {
		app.Logger.Warn().Err(err).Str("addr", app.Cf.RedisAddr).Msg("redis ping failed, limiter will fail open")
	}
	app.RateLimiter = redis_repo.NewRateLimitRepoWithSource(app.RedisClient, app.rateLimitConfig)
}

func (app *ApplicationContext) rateLimitConfig() redis_repo.RateLimitConfig {
	cf := app.source()
	return redis_repo.RateLimitConfig{
		Capacity: cf.RateLimitCapacity,
		RatePS:   cf.RateLimitRate,
		TTL:      time.Minute,
	}
}

// setUpProducer 沒有 broker 時 outbox 只累積不送出
func (app *ApplicationContext) setUpProducer() error {
	brokers := app.Cf.Brokers()
	if len(brokers) == 0 {
		app.Logger.Info().Msg("KAFKA_BROKERS not set, outbox relay disabled")
		return nil
	}
	p, err := producer.NewOrderEventProducer(producer.Config{Brokers: brokers}, app.Logger)
	if err != nil {
		return err
	}
	app.Producer = p
	app.OutboxRelay = worker.NewOutboxRelay(app.Store, p, worker.RelayConfig{
		PollInterval: app.Cf.OutboxPollInterval,
		BatchSize:    app.Cf.OutboxBatchSize,
	}, app.Metrics, app.Logger)
	return nil
}

func (app *ApplicationContext) setUpGateway() {
	app.Gateway = payment.NewPortOneClient(app.Cf.PortOneBaseURL, app.Cf.PortOneSecret, 10*time.Second)
}

func (app *ApplicationContext) setUpServices() {
	guard := service.NewConcurrencyGuard(app.Store, app.Metrics, app.Logger)
	app.CartService = service.NewCartService(guard)
	app.CheckoutService = service.NewCheckoutService(guard, app.Gateway, app.Cf.KafkaOrderTopic, app.Metrics, app.Logger)
}

func (app *ApplicationContext) Shutdown(ctx context.Context) error {
	var errs []error
	if app.Producer != nil {
		if err := app.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if app.GormDB != nil {
		if sqlDB, err := app.GormDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close postgres: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
