// File: daypass/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daypass/config"
	"daypass/cron"
	"daypass/database"
	followupRepo "daypass/database/repository/followup"
	"daypass/handlers"
	"daypass/middleware"
	"daypass/routes"
	"daypass/services/availability"
	"daypass/services/backend"
	"daypass/services/booking"
	"daypass/services/checkout"
	"daypass/services/followup"
	"daypass/services/payment"
	"daypass/services/pricing"
	"daypass/services/wizard"
	"daypass/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis: one DB for checkout sessions, one for the follow-up queue.
	sessionRedis, err := utils.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisSessionDB)
	if err != nil {
		logger.Fatal("main: session store unavailable", zap.Error(err))
	}
	defer sessionRedis.Close()
	queueRedis, err := utils.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisFollowUpDB)
	if err != nil {
		logger.Fatal("main: follow-up queue unavailable", zap.Error(err))
	}
	defer queueRedis.Close()

	// MongoDB keeps the follow-up records support works from.
	var (
		mongoClient *mongo.Client
		repo        followupRepo.FollowUpRepository
	)
	if cfg.UseMongo {
		mongoClient, err = database.Connect(rootCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("main: MongoDB unavailable", zap.Error(err))
		}
		defer mongoClient.Disconnect(context.Background())

		repo = followupRepo.NewMongoFollowUpRepo(mongoClient.Database(cfg.DatabaseName))
		if err := repo.EnsureIndexes(rootCtx); err != nil {
			logger.Fatal("main: follow-up indexes", zap.Error(err))
		}
	}

	// Backend and payment provider.
	api := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout(), logger)
	var (
		creator  payment.IntentCreator
		verifier payment.Verifier
	)
	if cfg.StripeKey != "" {
		gateway := payment.NewStripeGateway(cfg.StripeKey, logger)
		verifier = gateway
		if cfg.PaymentMode == "stripe" {
			creator = gateway
		}
	}
	if creator == nil {
		creator = payment.NewBackendCreator(api)
	}
	logger.Info("payment provider configured",
		zap.String("mode", cfg.PaymentMode), zap.Bool("verifier", verifier != nil))

	submitter := booking.NewSubmitter(api, booking.Options{
		Attempts:           cfg.SubmitAttempts,
		Delay:              cfg.SubmitDelay(),
		UseIdempotencyKeys: cfg.UseIdempotencyKeys,
	}, logger)

	// Follow-ups: the checkout service enqueues, the worker reconciles.
	queueOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisFollowUpDB}
	queueClient := asynq.NewClient(queueOpt)
	defer queueClient.Close()
	enqueuer := followup.NewEnqueuer(queueClient, logger)

	var (
		reconciler *followup.Reconciler
		worker     *cron.Worker
	)
	if repo != nil {
		reconciler = followup.NewReconciler(repo, verifier, logger)
		worker = cron.NewFollowUpWorker(queueOpt, reconciler, logger)
		worker.Start()
	} else {
		logger.Warn("USE_MONGO is off; ambiguous bookings stay queued until a worker with storage runs")
	}

	checkoutService := checkout.NewService(checkout.Deps{
		Store:        checkout.NewRedisStore(sessionRedis, cfg.SessionTTL()),
		Locker:       checkout.NewRedisLocker(sessionRedis, cfg.LockTTL()),
		Settings:     api,
		Prices:       pricing.NewLoader(api, logger),
		Calculator:   pricing.NewCalculator(cfg.GuidedSlots),
		Availability: api,
		Snapshots:    availability.NewRedisStore(sessionRedis, cfg.SessionTTL()),
		Payments:     creator,
		Verifier:     verifier,
		Submitter:    submitter,
		FollowUps:    enqueuer,
	}, checkout.Options{
		Wizard: wizard.Options{
			Currency:        cfg.Currency,
			MinPhoneDigits:  cfg.MinPhoneDigits,
			TimeSlots:       cfg.TimeSlots,
			PickupLocations: cfg.PickupLocations,
		},
		SeatCeiling:   cfg.DefaultSeatCeiling,
		SubmitTimeout: cfg.SubmitTimeout(),
	}, logger)

	monitor := utils.NewHealthMonitor(map[string]*redis.Client{
		"sessions":  sessionRedis,
		"followups": queueRedis,
	}, mongoClient, logger)
	monitor.Start(rootCtx, time.Minute)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin, logger))

	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)
	handlerBundle := &handlers.HandlerBundle{
		CreateSession:  checkoutHandler.CreateSessionHandler,
		GetSession:     checkoutHandler.GetSessionHandler,
		SetDateTime:    checkoutHandler.SetDateTimeHandler,
		SetPickup:      checkoutHandler.SetPickupHandler,
		SetAddOns:      checkoutHandler.SetAddOnsHandler,
		SetContact:     checkoutHandler.SetContactHandler,
		NextStep:       checkoutHandler.NextStepHandler,
		PreviousStep:   checkoutHandler.PreviousStepHandler,
		RetryPayment:   checkoutHandler.RetryPaymentHandler,
		ConfirmPayment: checkoutHandler.ConfirmPaymentHandler,
		RefreshSession: checkoutHandler.RefreshSessionHandler,
		AbandonSession: checkoutHandler.AbandonSessionHandler,

		SupportToken: cfg.SupportToken,
		Health:       handlers.HealthHandler(monitor),
	}
	if reconciler != nil {
		followUpHandler := handlers.NewFollowUpHandler(reconciler, logger)
		handlerBundle.ListFollowUps = followUpHandler.ListFollowUpsHandler
		handlerBundle.ResolveFollowUp = followUpHandler.ResolveFollowUpHandler
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle, cfg.CORSOrigins)

	// Start the HTTP server.
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	// In-flight submissions may run up to the submit timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.SubmitTimeout()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	stop()

	logger.Sugar().Info("main: server stopped gracefully")
}
