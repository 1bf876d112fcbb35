package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/digkill/LandingForge/internal/auth"
	"github.com/digkill/LandingForge/internal/config"
	"github.com/digkill/LandingForge/internal/database"
	"github.com/digkill/LandingForge/internal/httpapi"
	"github.com/digkill/LandingForge/internal/llm"
	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/notify"
	"github.com/digkill/LandingForge/internal/payment"
	"github.com/digkill/LandingForge/internal/repository"
	"github.com/digkill/LandingForge/internal/repository/memory"
	"github.com/digkill/LandingForge/internal/service"
	"github.com/digkill/LandingForge/internal/storage"
	"github.com/digkill/LandingForge/pkg/logger"
)

const cacheSize = 1000

type stores struct {
	orders service.OrderStore
	ledger service.LedgerStore
	plans  service.PlanStore
	promos service.PromoStore
	pages  service.PageStore
	logs   service.GenerationLogStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeDB := openStores(ctx, cfg, logr)
	defer closeDB()

	providers := buildProviders(cfg, logr)
	alerter := buildAlerter(cfg, logr)

	numbers, err := service.NewOrderNumbers(cfg.NodeID)
	if err != nil {
		log.Fatalf("order numbers: %v", err)
	}

	planService := service.NewPlanService(st.plans, service.DefaultPlan{
		Title:                 cfg.DefaultPlanTitle,
		Credits:               cfg.DefaultPlanCredits,
		Currency:              cfg.DefaultPlanCurrency,
		PriceMinorUnits:       int64(cfg.DefaultPlanPrice),
		WalletCurrency:        cfg.DefaultPlanWalletCurrency,
		WalletPriceMinorUnits: int64(cfg.DefaultPlanWalletPrice),
	})
	if err := planService.EnsureDefaultPlan(ctx); err != nil {
		log.Fatalf("ensure default plan: %v", err)
	}

	checkoutService := service.NewCheckoutService(logr, st.orders, st.plans, providers, numbers, cfg.PublicBaseURL, cfg.ProviderTimeout)
	reconciler := service.NewReconciler(logr, st.orders, providers, alerter, cfg.ProviderTimeout)
	billingService := service.NewBillingService(logr, st.ledger, cfg.FollowBonusCredits, cfg.FollowUnlockCode)
	promoService := service.NewPromoService(logr, st.promos, cfg.PromoBonusCredits)
	creditSweep := service.NewCreditSweeper(logr, st.orders, alerter, cfg.SweepGrace)

	generations := newCache[string, models.PageContent](cfg.GenerationTTL)
	sharedPages := newCache[string, models.LandingPage](cfg.SharedPageTTL)

	var generator service.PageGenerator
	if cfg.LLMAPIKey != "" {
		generator = llm.NewClient(llm.Options{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}, logr)
	} else {
		logr.Warn("LLM_API_KEY not set, generation serves fallback pages")
	}
	generationService := service.NewGenerationService(logr, st.ledger, st.logs, generator, generations, cfg.LLMTimeout)

	var snapshots service.SnapshotUploader
	if cfg.S3Enabled() {
		store, err := storage.NewSnapshotStore(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("snapshot storage: %v", err)
		}
		snapshots = store
	}
	pageService := service.NewPageService(logr, st.ledger, st.pages, snapshots, sharedPages)

	limiter := httpapi.NewIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	server := httpapi.NewServer(cfg.HTTPListenAddr, httpapi.Deps{
		Log:        logr,
		Sessions:   auth.NewSessions(cfg.SessionSecret, cfg.SessionCookie, strings.HasPrefix(cfg.PublicBaseURL, "https://"), 0),
		Billing:    billingService,
		Checkout:   checkoutService,
		Reconciler: reconciler,
		Plans:      planService,
		Promos:     promoService,
		Generation: generationService,
		Pages:      pageService,
		Providers:  providers,
		Limiter:    limiter,

		AdminUsername:   cfg.AdminUsername,
		AdminPassword:   cfg.AdminPassword,
		UncreditedGrace: cfg.SweepGrace,
	})

	scheduler := newScheduler(logr)
	if err := registerJobs(scheduler, logr, creditSweep, limiter, cfg.SweepInterval); err != nil {
		log.Fatalf("cron: %v", err)
	}
	scheduler.Start()
	defer stopScheduler(scheduler, logr)

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("http server stopped", "err", err)
	}
}

// newCache returns nil when ttl disables caching.
func newCache[K comparable, V any](ttl time.Duration) *expirable.LRU[K, V] {
	if ttl <= 0 {
		return nil
	}
	return expirable.NewLRU[K, V](cacheSize, nil, ttl)
}

// openStores connects to SQL when DATABASE_DSN is set and otherwise runs on the
// in-memory store, which loses everything on restart.
func openStores(ctx context.Context, cfg config.Config, logr *slog.Logger) (stores, func()) {
	if cfg.DatabaseDSN == "" {
		logr.Warn("DATABASE_DSN not set, using in-memory store")
		mem := memory.New(cfg.SignupCredits)
		return stores{
			orders: mem.Orders(),
			ledger: mem.Ledger(),
			plans:  mem.Plans(),
			promos: mem.Promos(),
			pages:  mem.Pages(),
			logs:   mem.GenerationLogs(),
		}, func() {}
	}

	db, dialect, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	ledger := repository.NewLedgerRepository(db, dialect, cfg.SignupCredits)
	return stores{
		orders: repository.NewOrderRepository(db, dialect, ledger),
		ledger: ledger,
		plans:  repository.NewPlanRepository(db, dialect),
		promos: repository.NewPromoRepository(db, dialect, ledger),
		pages:  repository.NewPageRepository(db, dialect),
		logs:   repository.NewGenerationRepository(db, dialect),
	}, func() { _ = db.Close() }
}

func buildProviders(cfg config.Config, logr *slog.Logger) *payment.Registry {
	var enabled []payment.Provider
	if cfg.StripeEnabled() {
		stripeProvider, err := payment.NewStripeProvider(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			APIURL:        cfg.StripeAPIURL,
			Timeout:       cfg.ProviderTimeout,
		})
		if err != nil {
			log.Fatalf("stripe provider: %v", err)
		}
		enabled = append(enabled, stripeProvider)
	}
	if cfg.AlipayEnabled() {
		alipayProvider, err := payment.NewAlipayProvider(payment.AlipayConfig{
			AppID:      cfg.AlipayAppID,
			PrivateKey: cfg.AlipayPrivateKey,
			PublicKey:  cfg.AlipayPublicKey,
			Production: cfg.AlipayProduction,
			NotifyURL:  cfg.PublicBaseURL + "/webhooks/alipay",
			Timeout:    cfg.ProviderTimeout,
		})
		if err != nil {
			log.Fatalf("alipay provider: %v", err)
		}
		enabled = append(enabled, alipayProvider)
	}

	registry := payment.NewRegistry(enabled...)
	if len(registry.Kinds()) == 0 {
		logr.Warn("no payment provider configured, checkout is disabled")
	} else {
		logr.Info("payment providers enabled", "providers", registry.Kinds())
	}
	return registry
}

func buildAlerter(cfg config.Config, logr *slog.Logger) service.Alerter {
	alerters := notify.Fanout{notify.NewLog(logr)}
	if cfg.AlertTelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.AlertTelegramToken, cfg.AlertTelegramChatID, "landingforge")
		if err != nil {
			logr.Error("telegram alerts disabled", "err", err)
		} else {
			alerters = append(alerters, tg)
		}
	}
	return alerters
}
