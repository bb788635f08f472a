// recon-engine reconciles billing records against contracts: it verifies
// amounts, dates, and billing cadence, records a verdict per record, scans
// for missing and duplicate billing, and raises alerts.
//
// It runs as a sweep: load config, connect, migrate, match, log the
// summary, exit. With no flags the sweep covers every contract; -contract
// restricts it to one; -record matches a single billing record.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/config"
	"github.com/ledgerline-io/recon-engine/pkg/database"
	"github.com/ledgerline-io/recon-engine/pkg/repositories"
	"github.com/ledgerline-io/recon-engine/pkg/retry"
	"github.com/ledgerline-io/recon-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	var (
		contractNumber = flag.String("contract", "", "reconcile a single contract by contract number")
		recordID       = flag.String("record", "", "reconcile a single billing record by id")
		forceRerun     = flag.Bool("force", false, "re-evaluate records whose verdict is already resolved")
	)
	flag.Parse()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting recon-engine sweep",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", cfg.Database.Database),
		zap.Bool("force", *forceRerun))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if timeout := cfg.Matching.SweepTimeoutMinutes; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Minute)
		defer cancel()
	}

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &cfg.Database)
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		return runMigrations(cfg, logger)
	})
	if err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	contractRepo := repositories.NewContractRepository(db)
	recordRepo := repositories.NewBillingRecordRepository(db)
	resultRepo := repositories.NewMatchingResultRepository(db)
	alertRepo := repositories.NewAlertRepository(db)

	evaluator := services.NewRuleEvaluator(&cfg.Matching, logger)
	scanner := services.NewPeriodScanner(logger)
	emitter := services.NewAlertEmitter(alertRepo, &cfg.Matching, logger)
	orchestrator := services.NewMatchOrchestrator(
		contractRepo, recordRepo, resultRepo, evaluator, scanner, emitter,
		&cfg.Matching, logger)

	summary, err := runSweep(ctx, orchestrator, contractRepo, *contractNumber, *recordID, *forceRerun)
	if summary != nil {
		logSummary(logger, summary)
	}
	if fatalSweepErr(err) {
		logger.Error("Sweep failed", zap.Error(err))
		os.Exit(1)
	}
	if err != nil {
		logger.Info("Verdict already resolved, nothing to re-match (use -force to override)",
			zap.Error(err))
	}
}

// fatalSweepErr reports whether a sweep error should fail the process.
// A frozen verdict is the engine declining to overwrite a human decision,
// not a failure.
func fatalSweepErr(err error) bool {
	return err != nil && !errors.Is(err, apperrors.ErrFrozen)
}

func runSweep(ctx context.Context, orchestrator *services.MatchOrchestrator, contractRepo repositories.ContractRepository, contractNumber, recordID string, forceRerun bool) (*services.SweepSummary, error) {
	switch {
	case recordID != "":
		id, err := uuid.Parse(recordID)
		if err != nil {
			return nil, errors.New("-record must be a valid UUID")
		}
		return nil, orchestrator.MatchBillingRecord(ctx, id, forceRerun)

	case contractNumber != "":
		contract, err := contractRepo.GetByNumber(ctx, contractNumber)
		if err != nil {
			return nil, err
		}
		return orchestrator.MatchContract(ctx, contract.ID, forceRerun)

	default:
		return orchestrator.MatchAll(ctx, forceRerun)
	}
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func logSummary(logger *zap.Logger, summary *services.SweepSummary) {
	logger.Info("Sweep summary",
		zap.Int("processed", summary.Processed),
		zap.Int("matched", summary.Matched),
		zap.Int("mismatched", summary.Mismatched),
		zap.Int("errors", summary.Errors))
}
