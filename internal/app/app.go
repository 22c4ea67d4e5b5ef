package app

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tillcraft/pos/internal/domain/currency"
	"github.com/tillcraft/pos/internal/domain/offer"
	"github.com/tillcraft/pos/internal/domain/payment"
	"github.com/tillcraft/pos/internal/httpapi"
	"github.com/tillcraft/pos/internal/mirror"
	"github.com/tillcraft/pos/internal/register"
	"github.com/tillcraft/pos/internal/repository"
	"github.com/tillcraft/pos/pkg/health"
	"github.com/tillcraft/pos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("user", cfg.UserID))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Tab mirror: Redis when configured, in-process otherwise. The in-process
	// store keeps single-node deployments working without extra infrastructure.
	var (
		store      mirror.Store
		redisStore *mirror.RedisStore
	)
	if cfg.RedisURL != "" {
		redisStore, err = mirror.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "create redis mirror")
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		lg.Info("No Redis URL configured, using in-process tab mirror")
		store = mirror.NewMemoryStore()
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisStore != nil {
		healthSvc.AddReadinessCheck("redis", 5*time.Second, redisStore.Ping)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	configRepo := repository.NewConfigRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	offerRepo := repository.NewOfferRepository(pool)
	customerStore := repository.NewCustomerStore(pool, cfg.UserID)
	saleRecorder := repository.NewSaleRecorder(pool)

	// Initial state: business config, currency table, and the offer set load
	// concurrently; all three must succeed before the register opens.
	var (
		bizCfg     *repository.BusinessConfig
		currencies []currency.Currency
		offers     []offer.Offer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bizCfg, err = configRepo.GetBusinessConfig(gctx, cfg.UserID)
		return err
	})
	g.Go(func() (err error) {
		currencies, err = configRepo.ListCurrencies(gctx)
		return err
	})
	g.Go(func() (err error) {
		offers, err = offerRepo.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "load initial state")
	}

	table := currency.NewTable(currencies, bizCfg.DefaultCurrencyCode)

	// Account-enabled flag, polled in the background. Finalize consults the
	// cached value so a disabled account stops selling within one poll
	// interval without a database read on the hot path.
	var userActive atomic.Bool
	userActive.Store(bizCfg.Active)
	go func() {
		t := time.NewTicker(cfg.Refresh.UserActive)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				active, err := configRepo.IsUserActive(ctx, cfg.UserID)
				if err != nil {
					lg.Warn("User active poll failed", zap.Error(err))
					continue
				}
				userActive.Store(active)
			}
		}
	}()

	authorizer := payment.NewSimulator(cfg.Payment.AuthDelay, cfg.Payment.AuthTimeout)

	session := register.NewSession(
		register.Config{UserID: cfg.UserID, TaxRatePercent: bizCfg.TaxRatePercent},
		table,
		customerStore,
		saleRecorder,
		mirror.ForUser(store, cfg.UserID),
		authorizer,
		userActive.Load,
		lg.Named("register"),
	)
	session.SetOffers(offers)

	// Adopt any tab state another register already mirrored for this user.
	if snapshots, err := store.List(ctx, cfg.UserID); err != nil {
		lg.Warn("Mirror list failed, starting with a fresh tab", zap.Error(err))
	} else if len(snapshots) > 0 {
		if err := session.Reconcile(snapshots); err != nil {
			lg.Warn("Mirror reconcile failed", zap.Error(err))
		}
	}

	// Follow remote tab changes for the lifetime of the process.
	changes, err := store.Watch(ctx, cfg.UserID)
	if err != nil {
		return errors.Wrap(err, "watch tab mirror")
	}
	go func() {
		for snapshots := range changes {
			if err := session.Reconcile(snapshots); err != nil {
				lg.Warn("Mirror reconcile failed", zap.Error(err))
			}
		}
	}()

	// Offers change without a deploy; refresh them periodically.
	go func() {
		t := time.NewTicker(cfg.Refresh.Offers)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				offers, err := offerRepo.List(ctx)
				if err != nil {
					lg.Warn("Offer refresh failed", zap.Error(err))
					continue
				}
				session.SetOffers(offers)
			}
		}
	}()

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	httpapi.New(session, catalogRepo, offerRepo, table).Register(mux)

	instrumented := otelhttp.NewHandler(mux, "pos-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
