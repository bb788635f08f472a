package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/config"
	"github.com/ledgerline-io/recon-engine/pkg/models"
	"github.com/ledgerline-io/recon-engine/pkg/repositories"
)

// AlertEmitter turns verdicts, scanner findings, and expiry/overdue
// conditions into alerts. It deduplicates: at most one unresolved alert
// per (type, contract, billing-record-or-null) key, with in-place severity
// escalation and never a downgrade.
type AlertEmitter struct {
	alertRepo repositories.AlertRepository
	cfg       *config.MatchingConfig
	logger    *zap.Logger
}

// NewAlertEmitter creates a new alert emitter.
func NewAlertEmitter(alertRepo repositories.AlertRepository, cfg *config.MatchingConfig, logger *zap.Logger) *AlertEmitter {
	return &AlertEmitter{
		alertRepo: alertRepo,
		cfg:       cfg,
		logger:    logger.Named("alert-emitter"),
	}
}

// EmitVerdict raises an amount_mismatch alert when the verdict carries the
// amount flag, either alone or inside multiple_issues. Severity is high
// when the deviation reaches the configured ratio of the contract amount,
// medium otherwise.
func (e *AlertEmitter) EmitVerdict(ctx context.Context, contract *models.Contract, record *models.BillingRecord, result *models.MatchingResult, verdict *Verdict) error {
	if !verdict.AmountMismatch {
		return nil
	}

	level := models.AlertLevelMedium
	threshold := contract.Amount.Mul(e.cfg.AmountHighRatio())
	if verdict.AmountDifference.Abs().GreaterThanOrEqual(threshold) {
		level = models.AlertLevelHigh
	}

	contractID := contract.ID
	recordID := record.ID
	resultID := result.ID
	return e.createOrEscalate(ctx, &models.Alert{
		ContractID:       &contractID,
		BillingRecordID:  &recordID,
		MatchingResultID: &resultID,
		AlertType:        models.AlertTypeAmountMismatch,
		AlertLevel:       level,
		Title:            fmt.Sprintf("Amount mismatch on billing %s", record.BillingNumber),
		Message: fmt.Sprintf("billing %s total %s deviates from contract %s amount %s by %s",
			record.BillingNumber, record.Total(), contract.ContractNumber,
			contract.Amount, verdict.AmountDifference),
	})
}

// EmitFinding raises an alert for a scanner finding: missing_billing at
// high, duplicate_billing at medium. Findings are contract-level, so the
// dedup key carries no billing record even when the finding references
// several.
func (e *AlertEmitter) EmitFinding(ctx context.Context, contract *models.Contract, finding Finding) error {
	contractID := contract.ID
	alert := &models.Alert{
		ContractID: &contractID,
		AlertType:  finding.Type,
	}
	periodStart := finding.Period.Start.Format(dateLayout)
	periodEnd := finding.Period.End.Format(dateLayout)

	switch finding.Type {
	case models.AlertTypeMissingBilling:
		alert.AlertLevel = models.AlertLevelHigh
		alert.Title = fmt.Sprintf("Missing billing for contract %s", contract.ContractNumber)
		alert.Message = fmt.Sprintf("no billing record for period %s..%s of contract %s",
			periodStart, periodEnd, contract.ContractNumber)
	case models.AlertTypeDuplicateBilling:
		alert.AlertLevel = models.AlertLevelMedium
		alert.Title = fmt.Sprintf("Duplicate billing for contract %s", contract.ContractNumber)
		alert.Message = fmt.Sprintf("%d billing records in period %s..%s of contract %s",
			len(finding.BillingRecordIDs), periodStart, periodEnd, contract.ContractNumber)
	default:
		return fmt.Errorf("%w: unknown finding type %q", apperrors.ErrInvalidData, finding.Type)
	}

	return e.createOrEscalate(ctx, alert)
}

// CheckContractExpiry raises a contract_expiry alert for an active
// contract whose end date is within the configured window: low severity,
// escalating to critical once the remaining days reach the critical
// threshold.
func (e *AlertEmitter) CheckContractExpiry(ctx context.Context, contract *models.Contract, asOf time.Time) error {
	if contract.Status != models.ContractStatusActive || asOf.After(contract.EndDate) {
		return nil
	}

	daysLeft := int(contract.EndDate.Sub(asOf).Hours() / 24)
	if daysLeft > e.cfg.ExpiryWindowDays {
		return nil
	}

	level := models.AlertLevelLow
	if daysLeft <= e.cfg.ExpiryCriticalDays {
		level = models.AlertLevelCritical
	}

	contractID := contract.ID
	return e.createOrEscalate(ctx, &models.Alert{
		ContractID: &contractID,
		AlertType:  models.AlertTypeContractExpiry,
		AlertLevel: level,
		Title:      fmt.Sprintf("Contract %s expiring", contract.ContractNumber),
		Message: fmt.Sprintf("contract %s ends on %s (%d days remaining)",
			contract.ContractNumber, contract.EndDate.Format(dateLayout), daysLeft),
	})
}

// CheckOverdue raises an overdue_payment alert for a billing record past
// its due date that has not been paid: medium severity, escalating to high
// once the configured grace period has also passed. Cancelled records are
// skipped; there is nothing left to collect.
func (e *AlertEmitter) CheckOverdue(ctx context.Context, contract *models.Contract, record *models.BillingRecord, asOf time.Time) error {
	if record.BillingStatus == models.BillingStatusPaid ||
		record.BillingStatus == models.BillingStatusCancelled {
		return nil
	}
	if !asOf.After(record.DueDate) {
		return nil
	}

	daysOverdue := int(asOf.Sub(record.DueDate).Hours() / 24)
	level := models.AlertLevelMedium
	if daysOverdue > e.cfg.OverdueGraceDays {
		level = models.AlertLevelHigh
	}

	contractID := contract.ID
	recordID := record.ID
	return e.createOrEscalate(ctx, &models.Alert{
		ContractID:      &contractID,
		BillingRecordID: &recordID,
		AlertType:       models.AlertTypeOverduePayment,
		AlertLevel:      level,
		Title:           fmt.Sprintf("Overdue payment on billing %s", record.BillingNumber),
		Message: fmt.Sprintf("billing %s was due %s and is unpaid (%d days overdue)",
			record.BillingNumber, record.DueDate.Format(dateLayout), daysOverdue),
	})
}

// createOrEscalate enforces the dedup invariant: if an unresolved alert
// with the same key already exists it is left untouched, except to raise
// its severity (and refresh the message) when the new condition ranks
// higher. Severity never moves down while an alert stays open.
func (e *AlertEmitter) createOrEscalate(ctx context.Context, alert *models.Alert) error {
	existing, err := e.alertRepo.FindUnresolved(ctx, alert.AlertType, alert.ContractID, alert.BillingRecordID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("failed to check for existing alert: %w", err)
		}

		if err := e.alertRepo.Create(ctx, alert); err != nil {
			// A concurrent sweep won the race to create this alert. The
			// invariant holds either way.
			if errors.Is(err, apperrors.ErrWriteConflict) {
				e.logger.Debug("Alert created concurrently, skipping",
					zap.String("alert_type", alert.AlertType))
				return nil
			}
			return err
		}
		e.logger.Info("Created alert",
			zap.String("alert_type", alert.AlertType),
			zap.String("alert_level", alert.AlertLevel),
			zap.String("title", alert.Title))
		return nil
	}

	if models.AlertLevelRank(alert.AlertLevel) > models.AlertLevelRank(existing.AlertLevel) {
		if err := e.alertRepo.UpdateLevel(ctx, existing.ID, alert.AlertLevel, alert.Message); err != nil {
			return fmt.Errorf("failed to escalate alert: %w", err)
		}
		e.logger.Info("Escalated alert",
			zap.String("alert_type", alert.AlertType),
			zap.String("from_level", existing.AlertLevel),
			zap.String("to_level", alert.AlertLevel))
	}
	return nil
}
