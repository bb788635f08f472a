package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/config"
	"github.com/ledgerline-io/recon-engine/pkg/cycle"
	"github.com/ledgerline-io/recon-engine/pkg/models"
)

const dateLayout = "2006-01-02"

// Verdict is the outcome of evaluating one billing record against its
// contract. The individual rule flags are preserved alongside the
// aggregated status so the alert emitter can react per rule without
// re-parsing the details string.
type Verdict struct {
	Status             string
	DiscrepancyDetails string

	// Signed billed total minus contract amount. Computed on every
	// evaluation, including exact matches (where it is zero).
	AmountDifference decimal.Decimal

	ContractExpired bool
	DateMismatch    bool
	CycleViolation  bool
	AmountMismatch  bool
}

// RuleEvaluator applies the reconciliation rules to a (contract, billing
// record) pair. Rules run in a fixed order - expiry, date, cycle, amount -
// and the details string concatenates triggered rules in that same order,
// so identical inputs always produce an identical verdict.
type RuleEvaluator struct {
	cfg    *config.MatchingConfig
	logger *zap.Logger
}

// NewRuleEvaluator creates a new rule evaluator.
func NewRuleEvaluator(cfg *config.MatchingConfig, logger *zap.Logger) *RuleEvaluator {
	return &RuleEvaluator{
		cfg:    cfg,
		logger: logger.Named("rule-evaluator"),
	}
}

// Evaluate reconciles one billing record against its contract as of the
// given date. Malformed contract data (non-positive amount, inverted
// validity window, unknown billing cycle) returns ErrInvalidData so the
// orchestrator can contain the failure to this record.
//
// The checks cascade: a contract that is not active skips the date check
// (its window is moot), and a billing date outside the window skips the
// cycle check (no period can cover it). The amount check always runs.
func (e *RuleEvaluator) Evaluate(contract *models.Contract, record *models.BillingRecord, asOf time.Time) (*Verdict, error) {
	if record.ContractID != contract.ID {
		return nil, fmt.Errorf("%w: billing record %s does not belong to contract %s",
			apperrors.ErrInvalidData, record.ID, contract.ID)
	}
	if !contract.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: contract %s amount %s is not positive",
			apperrors.ErrInvalidData, contract.ContractNumber, contract.Amount)
	}

	periods, err := cycle.Periods(contract.BillingCycle, contract.StartDate, contract.EndDate, asOf)
	if err != nil {
		return nil, err
	}

	verdict := &Verdict{
		AmountDifference: record.Total().Sub(contract.Amount),
	}
	var details []string
	billingDate := record.BillingDate.Format(dateLayout)

	if contract.Status != models.ContractStatusActive {
		verdict.ContractExpired = true
		details = append(details, fmt.Sprintf(
			"contract %s is %s, not active on %s",
			contract.ContractNumber, contract.Status, billingDate))
	} else if record.BillingDate.Before(contract.StartDate) || record.BillingDate.After(contract.EndDate) {
		verdict.DateMismatch = true
		details = append(details, fmt.Sprintf(
			"billing date %s is outside the contract window %s..%s",
			billingDate,
			contract.StartDate.Format(dateLayout),
			contract.EndDate.Format(dateLayout)))
	} else if _, ok := cycle.Covering(periods, record.BillingDate); !ok {
		verdict.CycleViolation = true
		details = append(details, fmt.Sprintf(
			"billing date %s does not fall in any %s billing period",
			billingDate, contract.BillingCycle))
	}

	if verdict.AmountDifference.Abs().GreaterThan(e.cfg.AmountTolerance()) {
		verdict.AmountMismatch = true
		details = append(details, fmt.Sprintf(
			"billed total %s deviates from contract amount %s by %s",
			record.Total(), contract.Amount, verdict.AmountDifference))
	}

	verdict.Status = aggregateStatus(verdict)
	verdict.DiscrepancyDetails = strings.Join(details, "; ")

	e.logger.Debug("Evaluated billing record",
		zap.String("contract_number", contract.ContractNumber),
		zap.String("billing_number", record.BillingNumber),
		zap.String("status", verdict.Status))

	return verdict, nil
}

// aggregateStatus folds the rule flags into a single matching status:
// no flags is matched, one flag is that flag's status, several flags is
// multiple_issues.
func aggregateStatus(v *Verdict) string {
	var flagged []string
	if v.ContractExpired {
		flagged = append(flagged, models.MatchingStatusContractExpired)
	}
	if v.DateMismatch {
		flagged = append(flagged, models.MatchingStatusDateMismatch)
	}
	if v.CycleViolation {
		flagged = append(flagged, models.MatchingStatusCycleViolation)
	}
	if v.AmountMismatch {
		flagged = append(flagged, models.MatchingStatusAmountMismatch)
	}

	switch len(flagged) {
	case 0:
		return models.MatchingStatusMatched
	case 1:
		return flagged[0]
	default:
		return models.MatchingStatusMultipleIssues
	}
}
