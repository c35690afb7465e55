package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appCustomer "github.com/Zhima-Mochi/minishop-orders/internal/application/customer"
	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	appProduct "github.com/Zhima-Mochi/minishop-orders/internal/application/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/config"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/postgres"
	redisstore "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := zaplogger.New(zaplogger.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	systemLogger := logger.With(
		observability.F("trace_id", "system"),
		observability.F("span_id", "system"),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := newObservability(reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	idem, closeIdem := newIdempotencyStore(cfg)
	defer closeIdem()

	idGenerator := id.NewUUIDGenerator()

	// In-process event bus carrying order events to the compensation worker.
	bus := outbox.NewBus(logger)
	orderWorker := appOrder.NewWorker(stores.orders, workerpresentation.NewSubscriber(bus, logger), tel)
	orderWorker.Start()
	bus.Start(ctx)

	handler := httppresentation.NewHandler(httppresentation.UseCases{
		PlaceOrder: appOrder.NewPlaceOrderUseCase(stores.customers, stores.products, stores.orders, idGenerator, bus, tel,
			appOrder.WithIdempotencyStore(idem),
			appOrder.WithPublishTimeout(cfg.PublishTimeout),
		),
		FindOrder:      appOrder.NewFindOrderUseCase(stores.orders, tel),
		CreateCustomer: appCustomer.NewCreateCustomerUseCase(stores.customers, idGenerator, tel),
		CreateProduct:  appProduct.NewCreateProductUseCase(stores.products, idGenerator, tel),
	}, tel, httppresentation.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store", cfg.StoreDriver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", observability.F("error", err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
	return nil
}

func newObservability(reg prometheus.Registerer, logger observability.Logger) observability.Observability {
	metrics := prometrics.New(reg, "", "")
	return infraobs.New(
		oteltrace.New("minishop-orders"),
		logger,
		map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests: metrics.Counter(string(observability.MUsecaseRequests),
				"Total number of use case invocations.", "use_case", "outcome"),
			observability.MHTTPRequests: metrics.Counter(string(observability.MHTTPRequests),
				"Total number of HTTP requests.", "method", "route", "status"),
			observability.MExternalRequests: metrics.Counter(string(observability.MExternalRequests),
				"Calls to collaborators outside the use case.", "peer", "endpoint", "outcome"),
			observability.MOrderCompensations: metrics.Counter(string(observability.MOrderCompensations),
				"Orders cancelled after their stock reservation failed.", "outcome"),
		},
		map[observability.MetricKey]observability.Histogram{
			observability.MUsecaseDuration: metrics.Histogram(string(observability.MUsecaseDuration),
				"Duration of use case execution in seconds.", nil, "use_case"),
			observability.MHTTPRequestDuration: metrics.Histogram(string(observability.MHTTPRequestDuration),
				"Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
			observability.MExternalRequestDuration: metrics.Histogram(string(observability.MExternalRequestDuration),
				"Duration of collaborator calls in seconds.", nil, "peer", "endpoint"),
		},
	)
}

type repositories struct {
	customers customer.Repository
	products  product.Repository
	orders    order.Repository
}

func openStores(ctx context.Context, cfg config.Config) (repositories, func(), error) {
	if cfg.StoreDriver != config.StorePostgres {
		return repositories{
			customers: memory.NewCustomerRepository(),
			products:  memory.NewProductRepository(),
			orders:    memory.NewOrderRepository(),
		}, func() {}, nil
	}

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return repositories{}, nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return repositories{}, nil, err
	}
	return repositories{
		customers: postgres.NewCustomerRepository(pool),
		products:  postgres.NewProductRepository(pool),
		orders:    postgres.NewOrderRepository(pool),
	}, pool.Close, nil
}

func newIdempotencyStore(cfg config.Config) (appOrder.IdempotencyStore, func()) {
	if cfg.RedisAddr == "" {
		return memory.NewIdempotencyStore(cfg.IdempotencyTTL), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL), func() { _ = client.Close() }
}
