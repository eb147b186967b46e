package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collections-platform/internal/audit"
	"collections-platform/internal/auth"
	"collections-platform/internal/calls"
	"collections-platform/internal/campaigns"
	"collections-platform/internal/config"
	"collections-platform/internal/debtors"
	"collections-platform/internal/extraction"
	"collections-platform/internal/httpapi"
	"collections-platform/internal/poller"
	"collections-platform/internal/promises"
	"collections-platform/internal/reporting"
	"collections-platform/internal/sms"
	"collections-platform/internal/voiceagent"
	"collections-platform/pkg/logger"
	"collections-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Outbound providers.
	agent := voiceagent.NewClient(cfg.VoiceAgent)
	smsSender := sms.NewTwilioSender(cfg.Twilio)
	producer := extraction.NewOpenAIProducer(cfg.LLM)

	// Repositories.
	debtorRepo := debtors.NewPostgresRepo(db)
	callRepo := calls.NewPostgresRepo(db)
	smsRepo := sms.NewPostgresRepo(db)
	promiseRepo := promises.NewPostgresRepo(db)
	campaignRepo := campaigns.NewPostgresRepo(db)
	auditRepo := audit.NewPostgresRepo(db)

	// Services.
	auditSvc := audit.NewService(auditRepo, log)
	debtorSvc := debtors.NewService(debtorRepo)
	promiseSvc := promises.NewService(promiseRepo)

	// The call service and the completion poller reference each other:
	// triggering a call starts a watch, and a finished watch finalizes the
	// call. Construct both, then bind.
	callSvc := calls.NewService(callRepo, debtorRepo, agent, nil, cfg.Twilio.FromNumber, cfg.App.CompanyName, log)
	p := poller.New(agent, callSvc, poller.NewRedisGate(rdb), log)
	callSvc.SetWatcher(p)

	pipeline := extraction.NewPipeline(producer, calls.NewExtractionValidator(), callSvc, promiseSvc, auditSvc, log)
	p.OnComplete(pipeline.Run)

	smsSvc := sms.NewService(smsRepo, smsSender, debtorRepo, cfg.Twilio.FromNumber, cfg.App.CompanyName, log)
	campaignSvc := campaigns.NewService(campaignRepo, debtorRepo, agent, cfg.App.CompanyName, log)
	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db), promiseSvc, auditSvc)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:      authManager,
		Debtors:   debtorSvc,
		Calls:     callSvc,
		SMS:       smsSvc,
		Promises:  promiseSvc,
		Campaigns: campaignSvc,
		Reports:   reportSvc,
		Audit:     auditSvc,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	// Readiness needs the DB handle, so it is registered here rather than in
	// registerRoutes.
	r.GET("/readyz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Stop in-flight completion watches after the HTTP surface is drained.
	p.Close()
}
