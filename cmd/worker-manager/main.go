// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"loan-workers/internal/api"
	"loan-workers/internal/common/aws"
	"loan-workers/internal/common/camunda"
	"loan-workers/internal/common/config"
	"loan-workers/internal/common/database"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/common/observability"
	"loan-workers/internal/documents"
	"loan-workers/internal/evaluators"
	"loan-workers/internal/kyc"
	"loan-workers/internal/pipeline"
	"loan-workers/internal/store"
	"loan-workers/pkg/registry"

	cla "loan-workers/internal/workers/loan/create-loan-application"
	ela "loan-workers/internal/workers/loan/evaluate-loan-application"
	eaf "loan-workers/internal/workers/loan/extract-application-fields"
	gas "loan-workers/internal/workers/loan/get-application-status"
	nld "loan-workers/internal/workers/loan/notify-loan-decision"
	oas "loan-workers/internal/workers/loan/override-application-status"
	rlw "loan-workers/internal/workers/loan/run-loan-workflow"
	sev "loan-workers/internal/workers/loan/search-evaluations"
	vla "loan-workers/internal/workers/loan/validate-loan-application"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	attempts := cfg.Database.ConnectAttempts
	delay := config.GetDuration(cfg.Database.ConnectDelay)

	// --- Stores ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres open failed", zap.Error(err))
	}
	defer pg.Close()
	if err := database.WaitForReady(ctx, "postgres", pg, attempts, delay, log); err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis open failed", zap.Error(err))
	}
	defer rdb.Close()
	if err := database.WaitForReady(ctx, "redis", rdb, attempts, delay, log); err != nil {
		zapLog.Fatal("redis unavailable", zap.Error(err))
	}

	esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Fatal("elasticsearch client failed", zap.Error(err))
	}
	if err := database.WaitForReady(ctx, "elasticsearch", esClient, attempts, delay, log); err != nil {
		zapLog.Fatal("elasticsearch unavailable", zap.Error(err))
	}
	if _, err := esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, store.VerdictMapping); err != nil {
		zapLog.Warn("verdict index not created", zap.Error(err))
	}

	pgStore := store.NewPostgresStore(pg.DB, log)
	statusCache := store.NewStatusCache(rdb.Client, time.Duration(cfg.Cache.StatusTTL)*time.Second, cfg.Cache.KeyPrefix)
	statusReader := store.NewCachedStatusReader(pgStore, statusCache, log)
	verdictIndex := store.NewVerdictIndex(esClient.Client, cfg.Database.Elasticsearch.Index)

	// --- Pipeline ---
	letters, err := documents.NewSanctionLetterGenerator(cfg.Documents.OutputDir, cfg.Documents.URLPrefix, log)
	if err != nil {
		zapLog.Fatal("document generator failed", zap.Error(err))
	}

	bureau := creditBureau(cfg)
	orchestrator := pipeline.NewOrchestrator(
		buildEvaluators(cfg, bureau),
		pipeline.NewAggregator(pipeline.WeightTable(cfg.Pipeline.Weights)),
		pipeline.WithDocuments(letters),
		pipeline.WithPersister(store.NewMultiPersister(
			store.NamedPersister{Name: "postgres", Persister: pgStore, Required: true},
			store.NamedPersister{Name: "redis", Persister: statusCache},
			store.NamedPersister{Name: "elasticsearch", Persister: verdictIndex},
		)),
		pipeline.WithObserver(pipeline.Observers{metrics.PipelineObserver{}, obs}),
		pipeline.WithTracer(obs.Tracer()),
		pipeline.WithLogger(log),
		pipeline.WithPersistTimeout(config.GetDuration(cfg.Pipeline.PersistTimeout)),
	)
	workflow := pipeline.NewWorkflow(kyc.NewMockVerifier(), bureau, nil, letters, log)

	// --- Notification senders ---
	var emailSender nld.EmailSender
	var smsSender nld.SMSSender
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			emailSender = aws.NewSESClient(awsCfg)
		}
		if cfg.Notifications.SMS.Enabled {
			smsSender = aws.NewSNSClient(awsCfg)
		}
	}

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	activities, err := registry.LoadRegistry(registry.DefaultPath)
	if err != nil {
		zapLog.Warn("activity registry unavailable", zap.Error(err))
		activities = &registry.ActivityRegistry{}
	}

	reg := &workerSet{client: zeebe.GetClient(), cfg: cfg, activities: activities, recorder: obs, log: log}

	reg.start(vla.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := vla.LoadConfig()
		c.Timeout = timeout
		return vla.NewHandler(c, log).Handle
	})
	reg.start(eaf.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := eaf.LoadConfig()
		c.Timeout = timeout
		return eaf.NewHandler(c, log).Handle
	})
	reg.start(cla.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := cla.LoadConfig()
		c.Timeout = timeout
		return cla.NewHandler(c, pgStore, log).Handle
	})
	reg.start(ela.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := ela.LoadConfig()
		c.Timeout = timeout
		return ela.NewHandler(c, orchestrator, log).Handle
	})
	reg.start(rlw.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := rlw.LoadConfig()
		c.Timeout = timeout
		return rlw.NewHandler(c, workflow, log).Handle
	})
	reg.start(gas.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := gas.LoadConfig()
		c.Timeout = timeout
		return gas.NewHandler(c, statusReader, pgStore, log).Handle
	})
	reg.start(oas.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := oas.LoadConfig()
		c.Timeout = timeout
		return oas.NewHandler(c, pgStore, statusCache, log).Handle
	})
	reg.start(sev.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := sev.LoadConfig()
		c.Timeout = timeout
		return sev.NewHandler(c, verdictIndex, log).Handle
	})
	reg.start(nld.TaskType, func(timeout time.Duration) camunda.JobHandler {
		c := nld.LoadConfig()
		c.Timeout = timeout
		c.EmailEnabled = cfg.Notifications.Email.Enabled
		c.FromEmail = cfg.Notifications.Email.FromEmail
		c.SMSEnabled = cfg.Notifications.SMS.Enabled
		c.SenderID = cfg.Notifications.SMS.SenderID
		return nld.NewHandler(c, emailSender, smsSender, log).Handle
	})

	zapLog.Info("workers registered", zap.Int("count", len(reg.workers)))

	// --- HTTP API, health & metrics ---
	server := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewServer(orchestrator, log,
			api.WithStatusReader(statusReader),
			api.WithProcessStarter(zeebe, cfg.Camunda.ProcessID),
			api.WithDocuments(letters.OutputDir(), cfg.Documents.URLPrefix),
			api.WithReadinessCheck("postgres", pg),
			api.WithReadinessCheck("redis", rdb),
			api.WithReadinessCheck("elasticsearch", esClient),
			api.WithReadinessCheck("zeebe", api.PingFunc(zeebe.HealthCheck)),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	workers := make([]stopper, 0, len(reg.workers))
	for _, w := range reg.workers {
		workers = append(workers, w)
	}
	gracefulShutdown(shutdownCtx, workers, server, orchestrator, zapLog)
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// creditBureau selects the HTTP bureau when one is configured.
func creditBureau(cfg *config.Config) pipeline.CreditBureau {
	if cfg.Bureau.BaseURL == "" {
		return kyc.NewMockBureau()
	}
	return kyc.NewHTTPBureau(cfg.Bureau.BaseURL, cfg.Bureau.APIKey, config.GetDuration(cfg.Bureau.Timeout))
}

func buildEvaluators(cfg *config.Config, bureau pipeline.CreditBureau) []pipeline.Evaluator {
	rnd := pipeline.NewSystemRandom()
	if cfg.Pipeline.Seed != 0 {
		rnd = pipeline.NewSeededRandom(cfg.Pipeline.Seed)
	}
	evals := evaluators.Default(rnd)
	if cfg.Pipeline.BureauEvaluator {
		evals = append(evals, pipeline.WithTimeout(evaluators.NewBureau(bureau), config.GetDuration(cfg.Pipeline.ExternalTimeout)))
	}
	return evals
}

type workerSet struct {
	client     zbc.Client
	cfg        *config.Config
	activities *registry.ActivityRegistry
	recorder   camunda.JobRecorder
	log        logger.Logger
	workers    []*camunda.CamundaWorker
}

// start opens a worker for taskType when it is enabled in config. The
// handler's own deadline follows the configured job timeout.
func (r *workerSet) start(taskType string, build func(timeout time.Duration) camunda.JobHandler) {
	wcfg := config.GetWorkerConfig(r.cfg, taskType)
	if !wcfg.Enabled {
		r.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}
	if _, ok := r.activities.Lookup(taskType); !ok {
		r.log.Warn("worker has no activity registry entry", map[string]interface{}{"taskType": taskType})
	}
	handler := build(config.GetDuration(wcfg.Timeout))
	r.workers = append(r.workers, camunda.NewWorker(r.client, taskType, wcfg, handler, r.recorder, r.log))
}
