package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"grin-gateway/awsx"
	"grin-gateway/config"
	"grin-gateway/controllers"
	"grin-gateway/database"
	"grin-gateway/kafka"
	"grin-gateway/logger"
	"grin-gateway/middleware"
	"grin-gateway/repository"
	"grin-gateway/routes"
	"grin-gateway/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("[GrinGateway] Failed to load config: ", err)
	}

	zlog := logger.Initialize(cfg.Env)
	defer zlog.Sync()

	db, err := database.Connect(cfg.PostgresDSN())
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	orderRepo := repository.NewGormOrderRepository(db)

	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Invalid Redis URL", zap.Error(err))
		}
		cache = redis.NewClient(opts)
		if err := cache.Ping(context.Background()).Err(); err != nil {
			zlog.Warn("Redis unreachable, rate caching disabled", zap.Error(err))
			cache = nil
		}
	}

	rates := services.NewExchangeRateService(cfg.RateSource, cfg.ManualRate, cfg.FiatCurrency, "", cache, zlog)

	producer := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.PaymentTopic, cfg.CartClearTopic, zlog)
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := awsx.NewMetricsClient(ctx)
	if err != nil {
		zlog.Warn("CloudWatch metrics unavailable", zap.Error(err))
		metrics = nil
	}

	var snsPublisher awsx.SNSPublisher
	var sqsConsumer *awsx.SQSConsumer
	if cfg.PaymentSNSTopic != "" || cfg.ReconcileQueueURL != "" {
		awsCfg, err := awsx.LoadAWSConfig(ctx)
		if err != nil {
			zlog.Warn("AWS config unavailable, SNS/SQS disabled", zap.Error(err))
		} else {
			if cfg.PaymentSNSTopic != "" {
				snsPublisher = awsx.NewSNSClient(awsCfg)
			}
			if cfg.ReconcileQueueURL != "" {
				sqsConsumer = awsx.NewSQSConsumer(awsCfg, cfg.ReconcileQueueURL)
			}
		}
	}

	var verifier services.PaymentVerifier
	if cfg.VerifierURL != "" {
		verifier = services.NewHTTPVerifier(cfg.VerifierURL, cfg.APIKey, zlog)
	} else {
		zlog.Warn("GRIN_VERIFIER_URL not set; pending orders will not auto-complete")
	}

	checkoutSvc := services.NewCheckoutService(orderRepo, rates, producer, metrics, cfg.ReturnURLBase, zlog)
	refreshSvc := services.NewRateRefreshService(orderRepo, rates, zlog)
	reconciler := services.NewReconciler(orderRepo, verifier, producer, snsPublisher, cfg.PaymentSNSTopic,
		metrics, cfg.LookbackWindow, cfg.ReconcileInterval, cfg.FiatCurrency, zlog)

	go reconciler.Start(ctx)
	if sqsConsumer != nil {
		go services.NewSQSReconcileConsumer(sqsConsumer, reconciler, zlog).Start(ctx)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(zlog))

	pc := &controllers.PaymentController{
		Checkout: checkoutSvc,
		Refresh:  refreshSvc,
		Repo:     orderRepo,
		Cfg:      cfg,
		Logger:   zlog,
	}
	routes.RegisterRoutes(r, pc, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		zlog.Info("GRIN gateway running", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
}
