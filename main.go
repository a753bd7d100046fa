package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-converter/internal/auditlog"
	"media-converter/internal/batch"
	"media-converter/internal/convert"
	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/handlers"
	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/memory"
	"media-converter/internal/metrics"
	"media-converter/internal/middleware"
	"media-converter/internal/naming"
	"media-converter/internal/startup"
	"media-converter/internal/watcher"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

func main() {
	startTime := time.Now()

	// Configure GOMEMLIMIT before anything allocates large buffers
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	metrics.InitializeMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	audit, err := auditlog.Open(config.AuditLogPath, config.Settings.EnableLogging)
	if err != nil {
		startup.LogFatal("Failed to open conversion log: %v", err)
	}

	codec, err := media.NewCodec(config.Codec)
	if err != nil {
		startup.LogFatal("Failed to initialize codec: %v", err)
	}
	if err := media.CheckCapabilities(codec); err != nil {
		startup.LogFatal("Codec check failed: %v", err)
	}
	startup.LogCodecInit(codec.Name(), codecFormats(codec))
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion, codec.Name()).Set(1)

	counter, closeCounter, err := startup.OpenCounter(config, db)
	if err != nil {
		startup.LogFatal("Failed to open name counter: %v", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if config.NATSURL != "" {
		nats, err := events.Connect(config.NATSURL, config.EventSubject)
		if err != nil {
			logging.Warn("NATS unavailable, conversion events disabled: %v", err)
		} else {
			publisher = nats
		}
	}

	pipeline, err := convert.New(convert.Options{
		Settings:    config.Settings,
		Codec:          codec,
		Counter:        counter,
		CounterBackend: config.CounterBackend,
		Audit:          audit,
		Attachments: db,
		Events:      publisher,
	})
	if err != nil {
		startup.LogFatal("Failed to build conversion pipeline: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	var limiter *rate.Limiter
	if config.SweepRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.SweepRate), 1)
	}
	driver, err := batch.New(batch.Options{
		Store:     db,
		Converter: pipeline,
		Limiter:   limiter,
		Monitor:   monitor,
	})
	if err != nil {
		startup.LogFatal("Failed to build batch driver: %v", err)
	}

	collector := metrics.NewCollector(&libraryStats{db: db, counter: counter, audit: audit}, time.Minute)
	collector.Start()

	scheduler := startScheduler(ctx, config.SweepSchedule, driver)

	if config.UploadDir != "" {
		w, err := watcher.New(watcher.Options{
			Dir:       config.UploadDir,
			Settle:    config.UploadSettle,
			Registrar: db,
			Processor: pipeline,
			Ignore:    pipeline.Names().Generated,
		})
		if err != nil {
			startup.LogFatal("Failed to create upload watcher: %v", err)
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logging.Error("Upload watcher stopped: %v", err)
			}
		}()
	}

	h, err := handlers.New(handlers.Options{
		Converter:   pipeline,
		Batcher:     driver,
		Audit:       audit,
		Counter:     counter,
		Library:     db,
		MediaDir:    config.MediaDir,
		BaseContext: ctx,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize handlers: %v", err)
	}

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	authed := middleware.BearerAuth(config.AdminTokenHash, "/health", "/healthz", "/livez", "/readyz")(router)
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.Logger(loggingConfig)(authed))

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Synchronous sweeps can run for a long time.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	shutdownDone := make(chan struct{})
	go handleShutdown(shutdownDone, shutdownDeps{
		cancel:    cancel,
		srv:       srv,
		metrics:   metricsSrv,
		scheduler: scheduler,
		collector: collector,
		monitor:   monitor,
		closers: []namedCloser{
			{"event publisher", closerFunc(publisher.Close)},
			{"name counter", closeCounter},
			{"conversion log", audit},
			{"database", db},
		},
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods("GET")
	api.HandleFunc("/batch", h.RunBatch).Methods("POST")
	api.HandleFunc("/sweep", h.RunSweep).Methods("POST")
	api.HandleFunc("/convert", h.ConvertFile).Methods("POST")
	api.HandleFunc("/log", h.GetLog).Methods("GET")
	api.HandleFunc("/log", h.ClearLog).Methods("DELETE")
	api.HandleFunc("/counter", h.GetCounter).Methods("GET")
	api.HandleFunc("/counter", h.SetCounter).Methods("PUT")

	return r
}

func codecFormats(codec media.Codec) map[string]bool {
	formats := make(map[string]bool)
	for _, f := range []media.Format{media.FormatJPEG, media.FormatPNG, media.FormatWebP, media.FormatAVIF} {
		formats[string(f)] = codec.Supports(f)
	}
	return formats
}

// startScheduler runs full sweeps on a cron schedule. An empty schedule
// disables it.
func startScheduler(ctx context.Context, schedule string, driver *batch.Driver) *cron.Cron {
	if schedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		res, err := driver.SweepAll(ctx, nil)
		if err != nil {
			logging.Warn("Scheduled sweep skipped: %v", err)
			return
		}
		logging.Info("Scheduled sweep %s: %d converted, %d failed, %d skipped",
			res.RunID, res.Succeeded, res.Failed, res.Skipped)
	})
	if err != nil {
		startup.LogFatal("Invalid SWEEP_SCHEDULE %q: %v", schedule, err)
	}
	c.Start()
	logging.Info("Scheduled sweeps: %s", schedule)
	return c
}

func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

// libraryStats feeds the metrics collector.
type libraryStats struct {
	db      *database.Database
	counter naming.CounterStore
	audit   *auditlog.Log
}

func (s *libraryStats) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	byMime, err := s.db.CountByMime(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	next, err := s.counter.Current(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	s.db.UpdateDBMetrics()
	return metrics.Stats{
		ItemsByMime:   byMime,
		CounterValue:  next,
		AuditLogBytes: s.audit.Size(),
	}, nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

type namedCloser struct {
	name   string
	closer io.Closer
}

type shutdownDeps struct {
	cancel    context.CancelFunc
	srv       *http.Server
	metrics   *http.Server
	scheduler *cron.Cron
	collector *metrics.Collector
	monitor   *memory.Monitor
	closers   []namedCloser
}

func handleShutdown(done chan<- struct{}, deps shutdownDeps) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := deps.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if deps.scheduler != nil {
		startup.LogShutdownStep("Stopping sweep scheduler")
		select {
		case <-deps.scheduler.Stop().Done():
			startup.LogShutdownStepComplete("Sweep scheduler stopped")
		case <-ctx.Done():
			logging.Warn("Timed out waiting for a scheduled sweep to finish")
		}
	}

	// Stops background sweeps and the upload watcher between items
	deps.cancel()

	deps.collector.Stop()
	deps.monitor.Stop()

	if deps.metrics != nil {
		if err := deps.metrics.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	for _, c := range deps.closers {
		startup.LogShutdownStep("Closing " + c.name)
		if err := c.closer.Close(); err != nil {
			logging.Warn("Failed to close %s: %v", c.name, err)
		}
	}
	media.ShutdownVips()

	startup.LogShutdownComplete()
}
