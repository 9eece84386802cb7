package main

import (
	"fmt"
	"net/http"
	"time"

	"trafficwaker/app/handler"
	"trafficwaker/app/router"
	"trafficwaker/pkg/autoscaler"
	"trafficwaker/pkg/config"
	"trafficwaker/pkg/deploy/k8s"
	"trafficwaker/pkg/logger"
	"trafficwaker/pkg/metrics"
	"trafficwaker/pkg/notification"
	"trafficwaker/pkg/schedule"
	mysqlstore "trafficwaker/pkg/store/mysql"
	redisstore "trafficwaker/pkg/store/redis"
	"trafficwaker/pkg/traffic"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"k8s.io/utils/clock"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(app.config.Logger); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.InfoCtx(app.ctx, "Logging system has been closed")
		logger.Sync()
	})
	return nil
}

// initMetrics initializes self metrics
func (app *Application) initMetrics() error {
	app.metrics = metrics.New()
	return nil
}

// initMySQL initializes MySQL (optional, event history)
func (app *Application) initMySQL() error {
	if app.config.MySQL.Host == "" {
		logger.InfoCtx(app.ctx, "MySQL not configured, event history falls back to Redis or is disabled")
		return nil
	}

	repo, err := mysqlstore.NewRepository(app.config.MySQL.DSN())
	if err != nil {
		return err
	}
	if err := repo.GetDatastore().AutoMigrate(app.ctx); err != nil {
		repo.Close()
		return err
	}

	app.mysqlRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initRedis initializes Redis (optional, lock + persisted settings)
func (app *Application) initRedis() error {
	if app.config.Redis.Addr == "" {
		logger.InfoCtx(app.ctx, "Redis not configured, running in single-instance mode")
		return nil
	}

	client, err := redisstore.NewRedisClient(app.ctx, app.config.Redis)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initKubernetes initializes typed and dynamic clients
func (app *Application) initKubernetes() error {
	clients, err := k8s.NewClients(app.config.K8s.Kubeconfig)
	if err != nil {
		return err
	}
	app.k8sClients = clients
	app.controller = k8s.NewWorkloadController(clients.Kubernetes, clients.Dynamic, app.config.K8s.WorkloadSelector)
	return nil
}

// initSources initializes the SleepInfo schedule source and the Prometheus traffic source
func (app *Application) initSources() error {
	cfg := app.config

	app.scheduleSource = schedule.NewSleepInfoSource(app.k8sClients.Dynamic, cfg.Reconciler.Namespace, cfg.Location())

	query := cfg.Prometheus.Query
	if query == "" {
		query = traffic.DefaultQuery(cfg.Reconciler.Service, cfg.Prometheus.Window)
	}
	source, err := traffic.NewPrometheusSource(traffic.Options{
		URL:       cfg.Prometheus.URL,
		Query:     query,
		Timeout:   cfg.Prometheus.Timeout,
		RateScale: cfg.Prometheus.RateScale,
	}, app.metrics)
	if err != nil {
		return err
	}
	app.trafficSource = source

	logger.InfoCtx(app.ctx, "traffic query: %s", query)
	return nil
}

// initEventStore picks the event history backend: MySQL, else Redis, else none.
// A Feishu notifier wraps whichever is chosen and is flushed on shutdown.
func (app *Application) initEventStore() {
	switch {
	case app.mysqlRepo != nil:
		app.eventStore = app.mysqlRepo.WakeEvent
	case app.redisClient != nil:
		app.eventStore = redisstore.NewEventRepository(app.redisClient, 0)
	}

	notify := app.config.Notification
	if notify.FeishuWebhookURL == "" {
		return
	}
	notifier := notification.NewFeishuNotifier(notify.FeishuWebhookURL, notify.Actions, app.eventStore)
	app.eventStore = notifier
	app.registerCleanup(func() {
		logger.InfoCtx(app.ctx, "Waiting for pending Feishu notifications...")
		notifier.Flush()
	})
	logger.InfoCtx(app.ctx, "Feishu notifications enabled for actions: %v", notify.Actions)
}

// initReconciler initializes the wake/sleep reconciler
func (app *Application) initReconciler() error {
	cfg := app.config.Reconciler
	app.initEventStore()

	reconcilerConfig := &autoscaler.Config{
		Enabled:         app.config.ReconcilerEnabled(),
		Namespace:       cfg.Namespace,
		Mode:            cfg.Mode,
		Interval:        cfg.PollInterval,
		WakeThreshold:   app.config.ReconcilerWakeThreshold(),
		IdleTimeout:     cfg.IdleTimeout,
		MutationTimeout: cfg.MutationTimeout,
		WakeReplicas:    cfg.WakeReplicas,
		PatchLead:       cfg.PatchLead,
		ScheduleNames:   cfg.SleepInfoNames,
		Location:        app.config.Location(),
	}

	// 如果 Redis 未配置，锁会自动降级为单实例模式
	var redisClient *redis.Client
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
	}

	app.reconciler = autoscaler.NewManager(
		reconcilerConfig,
		app.scheduleSource,
		app.trafficSource,
		app.controller,
		app.eventStore,
		redisClient,
		app.metrics,
		clock.RealClock{},
	)

	return nil
}

// initHandlers initializes handlers
func (app *Application) initHandlers() error {
	app.wakeHandler = handler.NewWakeHandler(app.reconciler)
	app.wakerHandler = handler.NewWakerHandler(app.reconciler)
	return nil
}

// initHTTPServer initializes the HTTP server
func (app *Application) initHTTPServer() error {
	// Initialize router
	r := router.NewRouter(app.wakeHandler, app.wakerHandler, app.metrics.Handler(), app.config.Server.APIKey)

	// Set Gin mode
	gin.SetMode(app.config.Server.Mode)

	// Create Gin engine
	app.ginEngine = gin.New()

	// Setup routes
	r.Setup(app.ginEngine)

	// Create HTTP server; the write timeout covers a synchronous wake
	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      app.config.Reconciler.MutationTimeout + 10*time.Second,
	}

	return nil
}
