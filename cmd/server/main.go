package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	compliancehandler "dealflow/internal/compliance/handler"
	complianceservice "dealflow/internal/compliance/service"
	compliancestore "dealflow/internal/compliance/store"
	conditionhandler "dealflow/internal/condition/handler"
	conditionmetrics "dealflow/internal/condition/metrics"
	conditionservice "dealflow/internal/condition/service"
	conditionstore "dealflow/internal/condition/store"
	"dealflow/internal/evidence"
	"dealflow/internal/notify"
	"dealflow/internal/offer"
	offerhandler "dealflow/internal/offer/handler"
	packhandler "dealflow/internal/pack/handler"
	packservice "dealflow/internal/pack/service"
	packstore "dealflow/internal/pack/store"
	"dealflow/internal/platform/config"
	"dealflow/internal/platform/httpserver"
	"dealflow/internal/platform/logger"
	platformredis "dealflow/internal/platform/redis"
	"dealflow/internal/preference"
	preferencehandler "dealflow/internal/preference/handler"
	httptransport "dealflow/internal/transport/http"
	"dealflow/internal/workflow/gate"
	workflowhandler "dealflow/internal/workflow/handler"
	workflowmetrics "dealflow/internal/workflow/metrics"
	workflowservice "dealflow/internal/workflow/service"
	workflowstore "dealflow/internal/workflow/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	// ---- storage ----
	var (
		db             *sql.DB
		conditionRepo  conditionservice.Store
		workflowRepo   workflowservice.Store
		complianceRepo complianceservice.Store
		prefStore      preference.Store
		offerStore     offer.Store
		evidenceStore  evidence.Store
		storeTx        workflowservice.StoreTx
		archiver       workflowservice.ConditionArchiver
		gatingReader   workflowservice.ConditionReader
		packConditions packservice.ConditionStore
		packTxReader   packservice.TransactionReader
	)

	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		conditions := conditionstore.NewPostgres(db)
		if err := conditions.NormalizeLegacyLevels(ctx); err != nil {
			return fmt.Errorf("normalize legacy condition levels: %w", err)
		}
		workflows := workflowstore.NewPostgres(db)

		conditionRepo = conditions
		workflowRepo = workflows
		complianceRepo = compliancestore.NewPostgres(db)
		prefStore = preference.NewPostgresStore(db)
		offerStore = offer.NewPostgresStore(db)
		evidenceStore = evidence.NewPostgresStore(db)
		storeTx = newPostgresTx(db)
		archiver = conditions
		gatingReader = conditions
		packConditions = conditions
		packTxReader = workflows
		log.Info("storage: postgres")
	} else {
		conditions := conditionstore.NewInMemory()
		workflows := workflowstore.NewInMemory()
		conditionRepo = conditions
		workflowRepo = workflows
		complianceRepo = compliancestore.NewInMemory()
		prefStore = preference.NewInMemoryStore()
		offerStore = offer.NewInMemoryStore()
		evidenceStore = evidence.NewInMemoryStore()
		storeTx = workflowservice.NewShardedTx()
		archiver = conditions
		gatingReader = conditions
		packConditions = conditions
		packTxReader = workflows
		log.Info("storage: in-memory")
	}

	// Document content has no durable backend yet; refs stay opaque either way.
	documentStore := evidence.NewInMemoryDocumentStore()

	// ---- redis gate cache ----
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var gateCache *gate.Cache
	if redisClient != nil {
		defer redisClient.Close()
		gateCache = gate.NewCache(redisClient.Client, cfg.GateCacheTTL, log)
		log.Info("gate cache: redis", "ttl", cfg.GateCacheTTL.String())
	}

	// ---- notifier ----
	var notifier notify.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notify.NewKafkaNotifier(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		log.Info("notifier: kafka", "topic", cfg.KafkaTopic)
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Info("notifier: log only")
	}

	// ---- services ----
	conditionSvc := conditionservice.New(conditionRepo, log,
		conditionservice.WithEvidenceStore(evidenceStore),
		conditionservice.WithGateInvalidator(gateCache),
		conditionservice.WithMetrics(conditionmetrics.New()),
	)

	workflowSvc := workflowservice.New(workflowRepo, gatingReader, archiver, offerStore, log,
		workflowservice.WithStoreTx(storeTx),
		workflowservice.WithGateCache(gateCache),
		workflowservice.WithNotifier(notifier),
		workflowservice.WithMetrics(workflowmetrics.New()),
	)

	packSvc := packservice.New(packstore.NewSeeded(), packConditions, packTxReader, log,
		packservice.WithGateInvalidator(gateCache),
	)

	complianceSvc := complianceservice.New(complianceRepo, conditionSvc, evidenceStore, documentStore, log)

	// ---- http ----
	health := func() error {
		if db != nil {
			if err := db.Ping(); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(context.Background()); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	router := httptransport.NewRouter(log, cfg.JWTSigningKey, health,
		workflowhandler.New(workflowSvc, log),
		conditionhandler.New(conditionSvc, log),
		packhandler.New(packSvc, log),
		compliancehandler.New(complianceSvc, log),
		offerhandler.New(offerStore, log),
		preferencehandler.New(prefStore, log),
	)

	srv := httpserver.New(cfg.Addr, router, cfg.HTTP)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
