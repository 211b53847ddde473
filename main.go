package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	alertapp "github.com/getevidly/evidly-app-sub001/internal/alerts/application"
	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	alertrepo "github.com/getevidly/evidly-app-sub001/internal/alerts/infrastructure/postgres"
	alertinterfaces "github.com/getevidly/evidly-app-sub001/internal/alerts/interfaces"
	alerthttp "github.com/getevidly/evidly-app-sub001/internal/alerts/interfaces/http"
	"github.com/getevidly/evidly-app-sub001/internal/audit"
	"github.com/getevidly/evidly-app-sub001/internal/auth"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/escalation"
	"github.com/getevidly/evidly-app-sub001/internal/eventing"
	"github.com/getevidly/evidly-app-sub001/internal/eventing/eventbus"
	eventingrepo "github.com/getevidly/evidly-app-sub001/internal/eventing/infrastructure/postgres"
	"github.com/getevidly/evidly-app-sub001/internal/incidents"
	"github.com/getevidly/evidly-app-sub001/internal/notify"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
	"github.com/getevidly/evidly-app-sub001/internal/reports"
	scoreapp "github.com/getevidly/evidly-app-sub001/internal/scoring/application"
	scorerepo "github.com/getevidly/evidly-app-sub001/internal/scoring/infrastructure/postgres"
	scoreinterfaces "github.com/getevidly/evidly-app-sub001/internal/scoring/interfaces"
	scorehttp "github.com/getevidly/evidly-app-sub001/internal/scoring/interfaces/http"
	telemetryapp "github.com/getevidly/evidly-app-sub001/internal/telemetry/application"
	telemetryevents "github.com/getevidly/evidly-app-sub001/internal/telemetry/application/events"
	telemetryrepo "github.com/getevidly/evidly-app-sub001/internal/telemetry/infrastructure/postgres"
	telemetryhttp "github.com/getevidly/evidly-app-sub001/internal/telemetry/interfaces/http"
	"github.com/getevidly/evidly-app-sub001/internal/thresholds"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	overrides, err := thresholds.LoadOverrides(cfg.ThresholdsPath)
	if err != nil {
		logger.Fatalf("thresholds config error: %v", err)
	}
	thresholdRegistry := thresholds.NewRegistry()
	if err := thresholdRegistry.Replace(overrides.Table); err != nil {
		logger.Fatalf("thresholds table error: %v", err)
	}

	baseBus := eventbus.NewInMemoryBus()
	eventRegistry := eventing.NewRegistry()
	eventRegistry.Register(telemetryevents.ReadingReceived{})
	eventRegistry.Register(classify.ReadingClassified{})
	eventRegistry.Register(alertapp.AlertEvent{})
	eventRegistry.Register(scoreapp.ScoreCalculated{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, eventRegistry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.OrgID, baseBus)

	readingRepo := telemetryrepo.NewReadingRepository(db)
	sensorStatusRepo := telemetryrepo.NewSensorStatusRepository(db)
	ingestHandler, err := telemetryhttp.NewIngestHandler(readingRepo, sensorStatusRepo, publisher, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	sensorsHandler, err := telemetryhttp.NewSensorsHandler(sensorStatusRepo)
	if err != nil {
		logger.Fatalf("sensors handler error: %v", err)
	}

	staleWatcher, err := telemetryapp.NewStaleWatcher(sensorStatusRepo, publisher, logger,
		telemetryapp.WithDefaultCadence(cfg.SensorCadence),
		telemetryapp.WithStaleFactor(cfg.StaleFactor),
		telemetryapp.WithCadences(overrides.Cadences),
	)
	if err != nil {
		logger.Fatalf("stale watcher error: %v", err)
	}
	go staleWatcher.Run(context.Background(), cfg.StaleSweepInterval)

	classifier, err := classify.NewService(thresholdRegistry, overrides.Sensors, publisher, logger)
	if err != nil {
		logger.Fatalf("classifier error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[telemetryevents.ReadingReceived](), "classify.readings", func(ctx context.Context, event any) error {
		evt, ok := event.(telemetryevents.ReadingReceived)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return classifier.HandleReadingReceived(ctx, evt)
	}, processedStore)

	alertRepo := alertrepo.NewAlertRepository(db)
	alertService, err := alertapp.NewService(alertRepo, publisher, logger, alertapp.WithConfig(alertapp.Config{
		WarningEscalateAfter: cfg.WarningEscalateAfter,
		ResolveSustainWindow: cfg.ResolveSustainWindow,
	}))
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	alertConsumer, err := alertinterfaces.NewClassifiedConsumer(alertService)
	if err != nil {
		logger.Fatalf("alert consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[classify.ReadingClassified](), "alerts.classified", alertConsumer.Consume, processedStore)

	observationStore := scorerepo.NewObservationStore(db)
	scoreRepository := scorerepo.NewScoreRepository(db)
	recorder, err := scoreapp.NewRecorder(observationStore, logger)
	if err != nil {
		logger.Fatalf("score recorder error: %v", err)
	}
	scoreConsumer, err := scoreinterfaces.NewClassifiedConsumer(recorder)
	if err != nil {
		logger.Fatalf("score consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[classify.ReadingClassified](), "scoring.classified", scoreConsumer.Consume, processedStore)

	rollupService, err := scoreapp.NewRollupService(observationStore, scoreRepository, publisher, logger, scoreapp.Config{
		Window:          cfg.ScoreWindow,
		Interval:        cfg.ScoreInterval,
		WarningWeight:   cfg.WarningWeight,
		DefaultVertical: cfg.DefaultVertical,
		Verticals:       cfg.LocationVerticals,
	})
	if err != nil {
		logger.Fatalf("rollup service error: %v", err)
	}
	go rollupService.Run(context.Background())

	alertNotifier := buildNotifier(cfg, logger)
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[alertapp.AlertEvent](), "notify.alerts", func(ctx context.Context, event any) error {
		evt, ok := event.(alertapp.AlertEvent)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return alertNotifier.HandleAlertEvent(ctx, evt)
	}, processedStore)

	broker := alerthttp.NewSSEBroker()
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[alertapp.AlertEvent](), "alerts.stream", func(ctx context.Context, event any) error {
		evt, ok := event.(alertapp.AlertEvent)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return broker.HandleAlertEvent(ctx, evt)
	}, nil)

	incidentCreator, err := incidents.NewCreator(buildIncidentRemote(cfg, logger), incidents.NewPostgresStore(db))
	if err != nil {
		logger.Fatalf("incident creator error: %v", err)
	}
	scheduler, err := escalation.NewScheduler(alertRepo, alertRepo, alertNotifier, incidentCreator, logger,
		escalation.WithDelays(escalation.Delays{
			ShiftLead:   cfg.EscalateShiftLead,
			Incident:    cfg.EscalateIncident,
			PageManager: cfg.EscalatePageManager,
		}),
	)
	if err != nil {
		logger.Fatalf("escalation scheduler error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[alertapp.AlertEvent](), "escalation.alerts", scheduler.HandleAlertEvent, processedStore)

	alertHandler, err := alerthttp.NewHandler(alertService, alerthttp.WithAudit(audit.NewRepository(db)))
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	scoreHandler, err := scorehttp.NewHandler(scoreRepository, recorder)
	if err != nil {
		logger.Fatalf("score handler error: %v", err)
	}
	reportHandler, err := reports.NewHandler(scoreRepository, alertRepo, logger)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}
	thresholdHandler, err := thresholds.NewHandler(thresholdRegistry, cfg.ThresholdsPath, logger)
	if err != nil {
		logger.Fatalf("threshold handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/readings", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/sensors", sensorsHandler)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/scores", scoreHandler)
	mux.Handle("/api/v1/checks", scoreHandler)
	mux.Handle("/api/v1/thresholds", thresholdHandler)
	mux.Handle("/api/v1/reports/compliance", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL          string
	HTTPAddr             string
	OrgID                string
	ThresholdsPath       string
	JWTSecret            string
	IngestSecret         string
	IngestSkewSeconds    int
	SensorCadence        time.Duration
	StaleFactor          float64
	StaleSweepInterval   time.Duration
	WarningEscalateAfter time.Duration
	ResolveSustainWindow time.Duration
	EscalateShiftLead    time.Duration
	EscalateIncident     time.Duration
	EscalatePageManager  time.Duration
	NotifyWebhookURL     string
	NotifyWebhookSecret  string
	NotifyTemplate       string
	NotifyCooldown       time.Duration
	NotifyDedupeWindow   time.Duration
	ShiftLeadWebhookURL  string
	ManagerWebhookURL    string
	IncidentWebhookURL   string
	IncidentToken        string
	ScoreWindow          time.Duration
	ScoreInterval        time.Duration
	WarningWeight        float64
	DefaultVertical      string
	LocationVerticals    map[string]string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		OrgID:                getenvDefault("ORG_ID", "org-demo"),
		ThresholdsPath:       getenvDefault("THRESHOLDS_CONFIG", ""),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:         getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds:    getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		SensorCadence:        getenvDuration("SENSOR_CADENCE", 5*time.Minute),
		StaleFactor:          getenvFloatDefault("STALE_FACTOR", 3),
		StaleSweepInterval:   getenvDuration("STALE_SWEEP_INTERVAL", time.Minute),
		WarningEscalateAfter: getenvDuration("WARNING_ESCALATE_AFTER", 20*time.Minute),
		ResolveSustainWindow: getenvDuration("RESOLVE_SUSTAIN_WINDOW", 10*time.Minute),
		EscalateShiftLead:    getenvDuration("ESCALATE_SHIFT_LEAD_AFTER", 15*time.Minute),
		EscalateIncident:     getenvDuration("ESCALATE_INCIDENT_AFTER", 30*time.Minute),
		EscalatePageManager:  getenvDuration("ESCALATE_PAGE_MANAGER_AFTER", time.Hour),
		NotifyWebhookURL:     getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret:  getenvDefault("NOTIFY_WEBHOOK_SECRET", ""),
		NotifyTemplate:       getenvDefault("NOTIFY_TEMPLATE", ""),
		NotifyCooldown:       getenvDuration("NOTIFY_COOLDOWN", 0),
		NotifyDedupeWindow:   getenvDuration("NOTIFY_DEDUP_WINDOW", 0),
		ShiftLeadWebhookURL:  getenvDefault("SHIFT_LEAD_WEBHOOK_URL", ""),
		ManagerWebhookURL:    getenvDefault("MANAGER_WEBHOOK_URL", ""),
		IncidentWebhookURL:   getenvDefault("INCIDENT_WEBHOOK_URL", ""),
		IncidentToken:        getenvDefault("INCIDENT_WEBHOOK_TOKEN", ""),
		ScoreWindow:          getenvDuration("SCORE_WINDOW", 24*time.Hour),
		ScoreInterval:        getenvDuration("SCORE_INTERVAL", time.Hour),
		WarningWeight:        getenvFloatDefault("SCORE_WARNING_WEIGHT", 0.5),
		DefaultVertical:      getenvDefault("DEFAULT_VERTICAL", "restaurant"),
		LocationVerticals:    parseVerticals(getenvDefault("LOCATION_VERTICALS", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

// parseVerticals reads "loc-1=restaurant,loc-2=grocery".
func parseVerticals(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

func buildNotifier(cfg config, logger *log.Logger) *notify.Notifier {
	var channel notify.Channel
	if cfg.NotifyWebhookURL != "" {
		channel = notify.NewWebhookChannel(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret)
	} else {
		logger.Printf("notify: no webhook configured, deliveries go to the log")
		channel = logChannel{logger: logger}
	}
	tpl, err := notify.NewTemplate(cfg.NotifyTemplate)
	if err != nil {
		logger.Fatalf("notify template error: %v", err)
	}
	opts := []notify.Option{
		notify.WithCooldown(cfg.NotifyCooldown),
		notify.WithDedupeWindow(cfg.NotifyDedupeWindow),
	}
	if cfg.ShiftLeadWebhookURL != "" {
		opts = append(opts, notify.WithRoleChannel(escalation.RoleShiftLead, notify.NewWebhookChannel(cfg.ShiftLeadWebhookURL, cfg.NotifyWebhookSecret)))
	}
	if cfg.ManagerWebhookURL != "" {
		opts = append(opts, notify.WithRoleChannel(escalation.RoleManager, notify.NewWebhookChannel(cfg.ManagerWebhookURL, cfg.NotifyWebhookSecret)))
	}
	notifier, err := notify.NewNotifier(channel, tpl, opts...)
	if err != nil {
		logger.Fatalf("notifier error: %v", err)
	}
	return notifier
}

func buildIncidentRemote(cfg config, logger *log.Logger) incidents.Remote {
	if cfg.IncidentWebhookURL != "" {
		return incidents.NewWebhookRemote(cfg.IncidentWebhookURL, cfg.IncidentToken)
	}
	logger.Printf("incidents: no webhook configured, incidents recorded locally only")
	return logRemote{logger: logger}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// logChannel stands in for a webhook channel in development setups.
type logChannel struct {
	logger *log.Logger
}

func (c logChannel) Send(ctx context.Context, content string) error {
	_ = ctx
	c.logger.Printf("notify:\n%s", content)
	return nil
}

// logRemote records incidents in the log when no incident system is wired.
type logRemote struct {
	logger *log.Logger
}

func (r logRemote) Open(ctx context.Context, alert alerts.Alert, stage escalation.Stage) (string, error) {
	_ = ctx
	r.logger.Printf("incident: alert=%s stage=%s", alert.ID, stage)
	return "local-" + alert.ID + "-" + string(stage), nil
}
