package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-concierge/internal/audit"
	"clinic-concierge/internal/auth"
	"clinic-concierge/internal/bot"
	"clinic-concierge/internal/calls"
	"clinic-concierge/internal/config"
	"clinic-concierge/internal/crm"
	"clinic-concierge/internal/directory"
	"clinic-concierge/internal/ratelimit"
	"clinic-concierge/internal/telephony"
	"clinic-concierge/pkg/logger"
	"clinic-concierge/pkg/utils"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	issueToken := flag.String("issue-ops-token", "", "print an ops token for the given operator name and exit")
	flag.Parse()

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
	rootCtx = logger.With(rootCtx, log)

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		tok, err := authManager.Issue(time.Now(), *issueToken)
		if err != nil {
			log.Error("token issue failed", "err", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
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

	tg, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	// Storage
	callStore := calls.NewPostgresStore(db)
	dirStore := directory.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	// Core call flow
	actuators := calls.NewActuators(cfg.Actuators.DoorNumber, cfg.Actuators.GateNumber)
	zadarma := telephony.NewClient(cfg.Zadarma)
	registrar := calls.NewRegistrar(callStore)
	opener := calls.NewOpener(registrar, callStore, zadarma, actuators, auditSvc)
	classifier := calls.Classifier{SupportPhone: cfg.Telegram.SupportPhone}
	correlator := calls.NewCorrelator(callStore, actuators)

	sender := bot.NewTelegramSender(tg)
	adminChatID := cfg.Telegram.AdminChatIDs[0]
	processor := calls.NewProcessor(callStore, correlator, classifier, sender, auditSvc, adminChatID)

	limiter, err := ratelimit.NewLimiter(rdb, cfg.Calls.RateLimit, cfg.Calls.RateWindow)
	if err != nil {
		log.Error("rate limiter init failed", "err", err)
		os.Exit(1)
	}

	// Supporting loops
	dirSvc := directory.NewService(dirStore, cfg.Telegram.AdminChatIDs)
	crmClient := crm.NewClient(cfg.CRM)
	syncer := crm.NewSyncer(crmClient, dirStore, cfg.CRM.SyncInterval)
	janitor := calls.NewJanitor(callStore, sender, classifier, cfg.Calls.PendingTimeout, cfg.Calls.Retention, cfg.Calls.JanitorInterval)

	b := bot.New(tg, dirSvc, opener, callStore, limiter, syncer, cfg.Telegram)

	go b.Run(rootCtx, tg)
	go syncer.Run(rootCtx)
	go janitor.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		db:        db,
		rdb:       rdb,
		processor: processor,
		webhook:   telephony.WebhookHandler{Processor: processor, Secret: cfg.Zadarma.APISecret},
		authMW:    auth.RequireOpsToken(authManager),
		store:     callStore,
		audit:     auditSvc,
		syncer:    syncer,
		telephony: zadarma,
		crm:       crmClient,
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
		log.Info("concierge listening", "addr", srv.Addr, "env", cfg.App.Env)
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
}
