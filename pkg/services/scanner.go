package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline-io/recon-engine/pkg/cycle"
	"github.com/ledgerline-io/recon-engine/pkg/models"
)

// Finding is a period-level anomaly the scanner detected: a fully elapsed
// period with no billing record, or a period billed more than once.
type Finding struct {
	// Type is AlertTypeMissingBilling or AlertTypeDuplicateBilling.
	Type   string
	Period cycle.Period

	// BillingRecordIDs lists every record in the period, in input order.
	// Empty for missing_billing findings.
	BillingRecordIDs []uuid.UUID
}

// PeriodScanner walks a contract's expected billing periods and counts the
// billing records falling in each. It only ever reads; verdict and alert
// writes belong to the orchestrator and emitter.
type PeriodScanner struct {
	logger *zap.Logger
}

// NewPeriodScanner creates a new period scanner.
func NewPeriodScanner(logger *zap.Logger) *PeriodScanner {
	return &PeriodScanner{logger: logger.Named("period-scanner")}
}

// Scan reports missing and duplicate billing per period as of the given
// date. A period with no records is reported only once it has fully
// elapsed; the in-progress period may legitimately still be unbilled.
// Findings are ordered by period, so output is deterministic for a given
// input.
func (s *PeriodScanner) Scan(contract *models.Contract, records []*models.BillingRecord, asOf time.Time) ([]Finding, error) {
	periods, err := cycle.Periods(contract.BillingCycle, contract.StartDate, contract.EndDate, asOf)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, p := range periods {
		var inPeriod []uuid.UUID
		for _, r := range records {
			if p.Contains(r.BillingDate) {
				inPeriod = append(inPeriod, r.ID)
			}
		}

		switch {
		case len(inPeriod) == 0 && p.Elapsed(asOf):
			findings = append(findings, Finding{Type: models.AlertTypeMissingBilling, Period: p})
		case len(inPeriod) >= 2:
			findings = append(findings, Finding{
				Type:             models.AlertTypeDuplicateBilling,
				Period:           p,
				BillingRecordIDs: inPeriod,
			})
		}
	}

	if len(findings) > 0 {
		s.logger.Debug("Period scan found anomalies",
			zap.String("contract_number", contract.ContractNumber),
			zap.Int("findings", len(findings)))
	}
	return findings, nil
}
