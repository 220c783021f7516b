package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apporder "github.com/TLF1607916/loopbuy-trade/internal/application/order"
	apppayment "github.com/TLF1607916/loopbuy-trade/internal/application/payment"
	appproduct "github.com/TLF1607916/loopbuy-trade/internal/application/product"
	"github.com/TLF1607916/loopbuy-trade/internal/application/saga"
	"github.com/TLF1607916/loopbuy-trade/internal/application/sweeper"
	"github.com/TLF1607916/loopbuy-trade/internal/config"
	dompayment "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/audit"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/bus"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/cache"
	httpapi "github.com/TLF1607916/loopbuy-trade/internal/infrastructure/http"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/id"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/memory"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/paygate"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogFile)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	productRepo := memory.NewProductRepository()
	orderRepo := memory.NewOrderRepository()
	paymentRepo := memory.NewPaymentRepository()
	idGenerator := id.NewUUIDGenerator()

	eventBus := bus.NewBus(logger)
	eventBus.Start(context.Background())
	defer eventBus.Stop(context.Background())

	auditRecorder := audit.NewRecorder(logger)
	auditRecorder.Start(eventBus)

	settledCache := cache.NewTTLStore[*dompayment.Payment](cfg.SettledCacheTTL, cfg.SettledCacheTTL)
	settledCache.StartSweep()
	defer settledCache.Stop()

	lockManager := appproduct.NewLockManager(productRepo)
	catalog := appproduct.NewCatalog(productRepo, idGenerator)
	orderService := apporder.NewService(orderRepo, lockManager, idGenerator, eventBus, cfg.ReturnWindow)
	paymentService := apppayment.NewService(
		paymentRepo,
		orderRepo,
		idGenerator,
		paygate.NewStaticVerifier(cfg.PaymentSecret),
		eventBus,
		settledCache,
		cfg.PaymentExpiry,
	)

	sagaMetrics := saga.NewMetrics()
	sweepMetrics := sweeper.NewMetrics()
	prometheus.MustRegister(sagaMetrics.Collectors()...)
	prometheus.MustRegister(sweepMetrics.Collectors()...)

	coordinator := saga.NewCoordinator(orderService, paymentService, sagaMetrics)

	paymentSweeper := sweeper.New(paymentRepo, coordinator, cfg.SweepInterval, sweepMetrics, logger)
	paymentSweeper.Start(context.Background())
	defer paymentSweeper.Stop()

	handler := httpapi.NewHandler(coordinator, orderService, paymentService, catalog, paymentSweeper, logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		logger.Info("http_server_stopped")
	}
}
