package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"contesthub-server/common/logger"
	"contesthub-server/internal/auth"
	"contesthub-server/internal/config"
	"contesthub-server/internal/controller/api"
	infmq "contesthub-server/internal/infra/rocketmq"
	infmysql "contesthub-server/internal/infra/mysql"
	"contesthub-server/internal/infra/payment"
	infredis "contesthub-server/internal/infra/redis"
	"contesthub-server/internal/middleware"
	"contesthub-server/internal/model"
	"contesthub-server/internal/service"
	"contesthub-server/internal/worker"
	"contesthub-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func runServe(migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	config.SetCurrent(cfg)
	logger.InitLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	db, err := infmysql.Open(ctx, infmysql.Options{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	if migrate {
		if _, err := infmysql.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb := infredis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rdb != nil {
		defer rdb.Close()
		if err := infredis.Ping(ctx, rdb, 2*time.Second); err != nil {
			logger.Warn("redis unreachable at startup", zap.Error(err))
		}
	}

	mqSettings := infmq.Settings{
		Endpoint:       cfg.RocketMQ.Endpoint,
		AccessKey:      cfg.RocketMQ.AccessKey,
		SecretKey:      cfg.RocketMQ.SecretKey,
		ProducerTopics: cfg.RocketMQ.ProducerTopics,
		ConsumerGroup:  cfg.RocketMQ.ConsumerGroup,
		ConsumeTopics:  cfg.RocketMQ.ConsumeTopics,
	}
	producer := infmq.NewProducer(mqSettings)
	defer producer.Close()

	processor, err := payment.NewProcessor(payment.Options{
		Provider:   cfg.Payment.Provider,
		APIBase:    cfg.Payment.APIBase,
		SecretKey:  cfg.Payment.SecretKey,
		Currency:   cfg.Payment.Currency,
		SuccessURL: cfg.Payment.SuccessURL,
		CancelURL:  cfg.Payment.CancelURL,
		Timeout:    time.Duration(cfg.Payment.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	logger.Info("payment processor ready", zap.String("provider", processor.Name()))

	store := model.NewStore(db)
	users := service.NewUserService(store, rdb, time.Duration(cfg.Auth.RoleCacheTTL)*time.Second)
	verifier := auth.NewJWTVerifier(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer,
		time.Duration(cfg.Auth.JWT.AccessTokenTTL)*time.Second, rdb)

	deps := routers.Deps{
		Checkout:    service.NewCheckoutService(store, processor),
		Settlement:  service.NewSettlementService(processor, store, store, store, rdb),
		Winners:     service.NewWinnerService(store, store),
		Contests:    service.NewContestService(store, store, rdb),
		Users:       users,
		Submissions: service.NewSubmissionService(store, store, store),
		Payments:    service.NewPaymentService(store),
		Verifier:    verifier,
		Tokens:      verifier,
		DemoMode:    cfg.Auth.DemoMode,
		Redis:       rdb,
		Probes: map[string]api.Probe{
			"mysql": func(c context.Context) error { return infmysql.Ping(c, db, time.Second) },
			"redis": func(c context.Context) error { return infredis.Ping(c, rdb, time.Second) },
		},
		EnableProm: cfg.Observability.EnableProm,
	}

	beego.BConfig.RecoverPanic = true
	beego.BConfig.RecoverFunc = middleware.RecoverPanic
	routers.Register(beego.BeeApp.Handlers, deps)

	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		config.SetCurrent(newCfg)
		if oldCfg == nil || oldCfg.Server.LogLevel != newCfg.Server.LogLevel {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
		logger.Info("config reloaded")
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	if producer.Enabled() {
		(&worker.OutboxDispatcher{DB: db, Pub: producer, Interval: time.Second, Batch: 100}).Start(workerCtx, &wg)
		worker.StartInboxConsumer(workerCtx, &wg, mqSettings, &worker.InboxHandler{DB: db, Redis: rdb})
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		sc, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
		defer cancel()
		if err := beego.BeeApp.Server.Shutdown(sc); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server starting", zap.Int("port", cfg.Server.Port))
	beego.Run(fmt.Sprintf(":%d", cfg.Server.Port))

	cancelWorkers()
	wg.Wait()
	return nil
}
