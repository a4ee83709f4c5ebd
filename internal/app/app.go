package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"todoservice/internal/activity"
	"todoservice/internal/api"
	"todoservice/internal/config"
	"todoservice/internal/metrics"
	"todoservice/internal/todo"
	"todoservice/shared/configstore"
	"todoservice/shared/datastore"
	"todoservice/shared/logging"
	"todoservice/shared/messagebus"
	"todoservice/shared/utils"
)

// Application represents the main application instance that holds configuration and dependencies
type Application struct {
	rawconfig        *config.RawConfig
	logger           logging.Logger
	datastore        datastore.OpenSearchClient
	producer         messagebus.Producer
	activityStore    configstore.ConfigStore
	recorder         *activity.Recorder
	metricsCollector *metrics.MetricsCollector
	handler          *api.Handler
	mutex            sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
}

// NewApplication wires the datastore, the event sinks, the metrics collector
// and the HTTP handler from cfg. Nothing is contacted until Start.
func NewApplication(cfg *config.RawConfig, logger logging.Logger) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		rawconfig: cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	var err error
	logger.Info("Initializing datastore...")
	app.datastore, err = datastore.New(cfg.Datastore.ConvertToDatastoreConfig(), logger.WithField("component", "datastore"))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("datastore: %w", err)
	}

	app.producer, err = messagebus.NewProducer(cfg.Events.ConvertToProducerConfig())
	if err != nil {
		app.closeResources()
		cancel()
		return nil, fmt.Errorf("event producer: %w", err)
	}

	app.activityStore, err = configstore.New(ctx, cfg.Activity.ConvertToStoreConfig())
	if err != nil {
		app.closeResources()
		cancel()
		return nil, fmt.Errorf("activity store: %w", err)
	}

	app.recorder = activity.NewRecorder(activity.Config{
		Topic:      cfg.Events.Topic,
		Collection: cfg.Activity.Collection,
	}, app.producer, app.activityStore, logger.WithField("component", "activity"))

	if cfg.Metrics.Enabled {
		app.metricsCollector = metrics.NewMetricsCollector(logger.WithField("component", "metrics"), cfg.Metrics.ConvertToMetricsConfig())
	}

	app.handler, err = api.NewHandler(api.Dependencies{
		Logger:         logger,
		Datastore:      app.datastore,
		Todo:           cfg.Datastore.ConvertToTodoConfig(),
		Activity:       app.recorder,
		Collector:      app.metricsCollector,
		HealthChecks:   map[string]api.HealthCheck{"activity": app.activityStore.Ping},
		ForwardHeaders: cfg.Server.ForwardHeaders,
		BasePath:       cfg.Server.BasePath,
		CORS:           cfg.Server.CORS(),
		Version:        utils.GetEnv("APP_VERSION", "unknown"),
		StartedAt:      time.Now(),
	})
	if err != nil {
		app.closeResources()
		cancel()
		return nil, err
	}

	return app, nil
}

// Config returns the application configuration
func (app *Application) Config() *config.RawConfig {
	app.mutex.RLock()
	defer app.mutex.RUnlock()
	return app.rawconfig
}

// Logger returns the application logger
func (app *Application) Logger() logging.Logger {
	app.mutex.RLock()
	defer app.mutex.RUnlock()
	return app.logger
}

// Context returns the application context
func (app *Application) Context() context.Context {
	return app.ctx
}

// Datastore returns the shared document store client
func (app *Application) Datastore() datastore.OpenSearchClient {
	app.mutex.RLock()
	defer app.mutex.RUnlock()
	return app.datastore
}

// MetricsCollector returns the metrics collector instance, nil when disabled
func (app *Application) MetricsCollector() *metrics.MetricsCollector {
	app.mutex.RLock()
	defer app.mutex.RUnlock()
	return app.metricsCollector
}

// Handler returns the fully wrapped HTTP handler
func (app *Application) Handler() http.Handler {
	return app.handler.Router()
}

// Start starts the metrics collector and makes sure the todo index exists.
// An unreachable datastore is logged, not fatal: every request retries the check.
func (app *Application) Start() error {
	app.logger.Info("Starting application...")

	if app.metricsCollector != nil {
		if err := app.metricsCollector.Start(); err != nil {
			app.logger.Errorw("Failed to start metrics collector", "error", err)
			return err
		}
	}

	ctx, cancel := context.WithTimeout(app.ctx, 10*time.Second)
	defer cancel()
	svc := todo.NewService(app.datastore, app.rawconfig.Datastore.ConvertToTodoConfig(), app.logger)
	err := svc.EnsureCollection(ctx)
	if err != nil {
		app.logger.Warnw("Todo index not ready, will retry on first request", "index", svc.Index(), "error", err)
	} else {
		app.logger.Infow("Todo index ready", "index", svc.Index())
	}
	metrics.NewMetricsHelper(app.metricsCollector, "app").RecordGauge("datastore.ready", boolGauge(err == nil), map[string]string{"index": svc.Index()})

	app.logger.Info("Application started successfully")
	return nil
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("Shutting down application...")

	if app.metricsCollector != nil {
		if err := app.metricsCollector.Stop(); err != nil {
			app.logger.Errorw("Error stopping metrics collector", "error", err)
		}
	}

	app.closeResources()
	app.cancel()

	app.logger.Info("Application shutdown completed")
	return nil
}

// closeResources releases the sinks in reverse construction order
func (app *Application) closeResources() {
	if app.activityStore != nil {
		if err := app.activityStore.Close(); err != nil {
			app.logger.Errorw("Error closing activity store", "error", err)
		}
	}
	if app.producer != nil {
		if err := app.producer.Close(); err != nil {
			app.logger.Errorw("Error closing event producer", "error", err)
		}
	}
	if app.datastore != nil {
		if err := app.datastore.Close(); err != nil {
			app.logger.Errorw("Error closing datastore", "error", err)
		}
	}
}
