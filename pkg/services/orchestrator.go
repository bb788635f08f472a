package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/config"
	"github.com/ledgerline-io/recon-engine/pkg/models"
	"github.com/ledgerline-io/recon-engine/pkg/repositories"
)

// SweepSummary aggregates the counts of a matching run. Processed counts
// every record examined, including frozen ones; a frozen record adds to no
// other counter.
type SweepSummary struct {
	Processed  int `json:"processed"`
	Matched    int `json:"matched"`
	Mismatched int `json:"mismatched"`
	Errors     int `json:"errors"`
}

func (s *SweepSummary) add(other *SweepSummary) {
	s.Processed += other.Processed
	s.Matched += other.Matched
	s.Mismatched += other.Mismatched
	s.Errors += other.Errors
}

// MatchOrchestrator drives reconciliation: it loads contracts and billing
// records, runs the rule evaluator and period scanner, upserts verdicts,
// and hands conditions to the alert emitter.
//
// Re-running with unchanged data and forceRerun=true produces identical
// verdict rows; with forceRerun=false, resolved verdicts stay frozen.
type MatchOrchestrator struct {
	contractRepo repositories.ContractRepository
	recordRepo   repositories.BillingRecordRepository
	resultRepo   repositories.MatchingResultRepository
	evaluator    *RuleEvaluator
	scanner      *PeriodScanner
	emitter      *AlertEmitter
	locks        *pairLock
	cfg          *config.MatchingConfig
	logger       *zap.Logger

	// now is the sweep clock, injectable in tests.
	now func() time.Time
}

// NewMatchOrchestrator creates a new match orchestrator.
func NewMatchOrchestrator(
	contractRepo repositories.ContractRepository,
	recordRepo repositories.BillingRecordRepository,
	resultRepo repositories.MatchingResultRepository,
	evaluator *RuleEvaluator,
	scanner *PeriodScanner,
	emitter *AlertEmitter,
	cfg *config.MatchingConfig,
	logger *zap.Logger,
) *MatchOrchestrator {
	return &MatchOrchestrator{
		contractRepo: contractRepo,
		recordRepo:   recordRepo,
		resultRepo:   resultRepo,
		evaluator:    evaluator,
		scanner:      scanner,
		emitter:      emitter,
		locks:        newPairLock(),
		cfg:          cfg,
		logger:       logger.Named("match-orchestrator"),
		now:          time.Now,
	}
}

type matchOutcome int

const (
	outcomeMatched matchOutcome = iota
	outcomeMismatched
	outcomeFrozen
)

// MatchBillingRecord evaluates a single billing record against its
// contract and upserts the verdict. Intended for the on-create trigger
// path, where forceRerun is false. Returns ErrFrozen when the record's
// existing verdict is resolved and forceRerun is false.
func (o *MatchOrchestrator) MatchBillingRecord(ctx context.Context, billingRecordID uuid.UUID, forceRerun bool) error {
	record, err := o.recordRepo.Get(ctx, billingRecordID)
	if err != nil {
		return err
	}
	contract, err := o.contractRepo.Get(ctx, record.ContractID)
	if err != nil {
		return err
	}

	outcome, err := o.matchRecord(ctx, contract, record, forceRerun)
	if err != nil {
		return err
	}
	o.checkOverdue(ctx, contract, record)
	if outcome == outcomeFrozen {
		return fmt.Errorf("billing record %s verdict is resolved: %w",
			billingRecordID, apperrors.ErrFrozen)
	}
	return nil
}

// MatchContract evaluates every billing record of a contract, runs the
// period scanner, and checks expiry and overdue conditions. A single
// record's failure is counted and does not abort the rest of the contract.
func (o *MatchOrchestrator) MatchContract(ctx context.Context, contractID uuid.UUID, forceRerun bool) (*SweepSummary, error) {
	contract, err := o.contractRepo.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return o.matchContract(ctx, contract, forceRerun)
}

func (o *MatchOrchestrator) matchContract(ctx context.Context, contract *models.Contract, forceRerun bool) (*SweepSummary, error) {
	records, err := o.recordRepo.ListByContract(ctx, contract.ID)
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{}
	for _, record := range records {
		summary.Processed++
		outcome, err := o.matchRecord(ctx, contract, record, forceRerun)
		if err != nil {
			summary.Errors++
			o.logger.Warn("Failed to match billing record",
				zap.String("contract_number", contract.ContractNumber),
				zap.String("billing_number", record.BillingNumber),
				zap.Error(err))
			continue
		}
		switch outcome {
		case outcomeMatched:
			summary.Matched++
		case outcomeMismatched:
			summary.Mismatched++
		case outcomeFrozen:
			// Counted as processed only; the human verdict stands.
		}
		o.checkOverdue(ctx, contract, record)
	}

	findings, err := o.scanner.Scan(contract, records, o.now())
	if err != nil {
		summary.Errors++
		o.logger.Warn("Period scan failed",
			zap.String("contract_number", contract.ContractNumber),
			zap.Error(err))
	}
	for _, finding := range findings {
		if err := o.emitter.EmitFinding(ctx, contract, finding); err != nil {
			o.logger.Warn("Failed to emit finding alert",
				zap.String("contract_number", contract.ContractNumber),
				zap.String("finding_type", finding.Type),
				zap.Error(err))
		}
	}

	if err := o.emitter.CheckContractExpiry(ctx, contract, o.now()); err != nil {
		o.logger.Warn("Failed to check contract expiry",
			zap.String("contract_number", contract.ContractNumber),
			zap.Error(err))
	}

	return summary, nil
}

// MatchAll sweeps every contract with a bounded worker pool. Contract
// failures are contained: they increment the error count and the sweep
// moves on. Cancellation is cooperative - no new contract starts once ctx
// is done, and the partial summary is returned with ctx.Err().
func (o *MatchOrchestrator) MatchAll(ctx context.Context, forceRerun bool) (*SweepSummary, error) {
	contracts, err := o.contractRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	workers := o.cfg.SweepWorkers
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		total   = &SweepSummary{}
		sem     = make(chan struct{}, workers)
		stopped bool
	)

	for _, contract := range contracts {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		select {
		case <-ctx.Done():
			stopped = true
		case sem <- struct{}{}:
		}
		if stopped {
			break
		}

		wg.Add(1)
		go func(c *models.Contract) {
			defer wg.Done()
			defer func() { <-sem }()

			summary, err := o.matchContract(ctx, c, forceRerun)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				total.Errors++
				o.logger.Warn("Failed to match contract",
					zap.String("contract_number", c.ContractNumber),
					zap.Error(err))
				return
			}
			total.add(summary)
		}(contract)
	}

	wg.Wait()
	if stopped {
		return total, ctx.Err()
	}

	o.logger.Info("Matching sweep complete",
		zap.Int("contracts", len(contracts)),
		zap.Int("processed", total.Processed),
		zap.Int("matched", total.Matched),
		zap.Int("mismatched", total.Mismatched),
		zap.Int("errors", total.Errors))
	return total, nil
}

// matchRecord evaluates one record and upserts the verdict under the pair
// lock. With forceRerun false, an existing resolved verdict freezes the
// record. A write conflict from a concurrent sweep is retried once; the
// racing writers compute identical rows from identical data, so
// last-writer-wins is safe here.
func (o *MatchOrchestrator) matchRecord(ctx context.Context, contract *models.Contract, record *models.BillingRecord, forceRerun bool) (matchOutcome, error) {
	unlock := o.locks.lock(contract.ID, record.ID)
	defer unlock()

	if !forceRerun {
		existing, err := o.resultRepo.Find(ctx, contract.ID, record.ID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return 0, err
		}
		if existing != nil && existing.IsResolved {
			return outcomeFrozen, nil
		}
	}

	verdict, err := o.evaluator.Evaluate(contract, record, o.now())
	if err != nil {
		return 0, err
	}

	diff := verdict.AmountDifference
	result := &models.MatchingResult{
		ContractID:         contract.ID,
		BillingRecordID:    record.ID,
		Status:             verdict.Status,
		DiscrepancyDetails: verdict.DiscrepancyDetails,
		AmountDifference:   &diff,
	}

	if err := o.resultRepo.Upsert(ctx, result); err != nil {
		if !errors.Is(err, apperrors.ErrWriteConflict) {
			return 0, err
		}
		if err := o.resultRepo.Upsert(ctx, result); err != nil {
			return 0, fmt.Errorf("upsert retry after conflict: %w", err)
		}
	}

	if err := o.emitter.EmitVerdict(ctx, contract, record, result, verdict); err != nil {
		o.logger.Warn("Failed to emit verdict alert",
			zap.String("contract_number", contract.ContractNumber),
			zap.String("billing_number", record.BillingNumber),
			zap.Error(err))
	}

	if verdict.Status == models.MatchingStatusMatched {
		return outcomeMatched, nil
	}
	return outcomeMismatched, nil
}

func (o *MatchOrchestrator) checkOverdue(ctx context.Context, contract *models.Contract, record *models.BillingRecord) {
	if err := o.emitter.CheckOverdue(ctx, contract, record, o.now()); err != nil {
		o.logger.Warn("Failed to check overdue payment",
			zap.String("contract_number", contract.ContractNumber),
			zap.String("billing_number", record.BillingNumber),
			zap.Error(err))
	}
}
