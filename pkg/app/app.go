// Package app wires the stores, services and HTTP router shared by the
// server and the Lambda functions.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/cache"
	"github.com/chris/referral-commission-ledger/pkg/commission"
	"github.com/chris/referral-commission-ledger/pkg/config"
	"github.com/chris/referral-commission-ledger/pkg/dashboard"
	"github.com/chris/referral-commission-ledger/pkg/handlers"
	"github.com/chris/referral-commission-ledger/pkg/handlers/accounts"
	"github.com/chris/referral-commission-ledger/pkg/handlers/admin"
	"github.com/chris/referral-commission-ledger/pkg/handlers/respond"
	"github.com/chris/referral-commission-ledger/pkg/handlers/transactions"
	"github.com/chris/referral-commission-ledger/pkg/handlers/wallets"
	"github.com/chris/referral-commission-ledger/pkg/metrics"
	"github.com/chris/referral-commission-ledger/pkg/middleware"
	"github.com/chris/referral-commission-ledger/pkg/notify"
	"github.com/chris/referral-commission-ledger/pkg/referral"
	"github.com/chris/referral-commission-ledger/pkg/scheduler"
	"github.com/chris/referral-commission-ledger/pkg/settings"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	dydbstore "github.com/chris/referral-commission-ledger/pkg/storage/dynamodb"
	"github.com/chris/referral-commission-ledger/pkg/storage/memory"
	"github.com/chris/referral-commission-ledger/pkg/subscription"
	"github.com/chris/referral-commission-ledger/pkg/wallet"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators the services are built from.
type Deps struct {
	Store storage.Storage
	// Settings overrides Store for configuration documents, e.g. with a cache.
	Settings  storage.SettingsStore
	Scheduler scheduler.Scheduler
	Publisher notify.Publisher
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Services holds one instance of every domain service.
type Services struct {
	Settings      *settings.Service
	Graph         *referral.Graph
	Engine        *commission.Engine
	Subscriptions *subscription.Service
	Wallets       *wallet.Service
	Dashboard     *dashboard.Service
	Logger        *slog.Logger
}

// NewServices builds the services over d.
func NewServices(d Deps) *Services {
	if d.Settings == nil {
		d.Settings = d.Store
	}
	if d.Publisher == nil {
		d.Publisher = notify.NoOpPublisher{}
	}
	if d.Scheduler == nil {
		d.Scheduler = &scheduler.LogScheduler{Logger: d.Logger}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}

	cfg := settings.NewService(d.Settings, d.Store, d.Clock, d.Logger)
	graph := referral.NewGraph(d.Store, d.Clock, d.Logger)
	engine := commission.NewEngine(d.Store, graph, cfg, d.Clock, d.Logger).WithPublisher(d.Publisher)
	return &Services{
		Settings:      cfg,
		Graph:         graph,
		Engine:        engine,
		Subscriptions: subscription.NewService(d.Store, engine, cfg, d.Clock, d.Logger).WithPublisher(d.Publisher),
		Wallets:       wallet.NewService(d.Store, cfg, d.Scheduler, d.Clock, d.Logger).WithPublisher(d.Publisher),
		Dashboard:     dashboard.NewService(d.Store, graph, cfg, d.Clock, d.Logger),
		Logger:        d.Logger,
	}
}

// NewRouter mounts the API, health and metrics endpoints.
func NewRouter(s *Services, corsOrigins []string) http.Handler {
	handler := handlers.NewApiHandler(
		accounts.NewAccountsHandler(s.Graph, s.Dashboard, s.Subscriptions, s.Logger),
		wallets.NewWalletsHandler(s.Wallets, s.Logger),
		transactions.NewTransactionsHandler(s.Wallets, s.Logger),
		admin.NewAdminHandler(s.Dashboard, s.Subscriptions, s.Settings, s.Logger),
	)

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(s.Logger))
	router.Use(metrics.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	return api.HandlerWithOptions(handler, api.ChiServerOptions{
		BaseRouter:       router,
		ErrorHandlerFunc: respond.ErrorHandler(s.Logger),
	})
}

// FromConfig builds the services for cfg, connecting to AWS and Redis as
// configured.
func FromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	deps := Deps{Clock: clockwork.NewRealClock(), Logger: logger}

	needAWS := cfg.Store == config.StoreDynamoDB || cfg.PayoutQueueURL != "" || cfg.EventsQueueURL != ""
	if needAWS {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		if cfg.Store == config.StoreDynamoDB {
			deps.Store = dydbstore.New(dynamodb.NewFromConfig(awsCfg), cfg.Tables)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		if cfg.PayoutQueueURL != "" {
			deps.Scheduler = scheduler.NewSQSScheduler(sqsClient, cfg.PayoutQueueURL)
		}
		if cfg.EventsQueueURL != "" {
			deps.Publisher = notify.NewSQSPublisher(sqsClient, cfg.EventsQueueURL)
		}
	}
	if deps.Store == nil {
		logger.Warn("using in-memory store; data is lost on exit")
		deps.Store = memory.New()
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		deps.Settings = cache.NewSettingsCache(deps.Store, client, cfg.SettingsCacheTTL, logger)
		logger.Info("settings cache enabled", "redis_addr", cfg.RedisAddr)
	}

	return NewServices(deps), nil
}
