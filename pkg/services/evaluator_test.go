package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/config"
	"github.com/ledgerline-io/recon-engine/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestMatchingConfig(t *testing.T) *config.MatchingConfig {
	t.Helper()
	return &config.Default().Matching
}

func newTestEvaluator(t *testing.T) *RuleEvaluator {
	t.Helper()
	return NewRuleEvaluator(newTestMatchingConfig(t), zap.NewNop())
}

// newMonthlyContract returns the reference contract of the scenario tests:
// monthly, amount 1000, valid through calendar year 2024.
func newMonthlyContract() *models.Contract {
	return &models.Contract{
		ID:             uuid.New(),
		ContractNumber: "C1",
		ContractName:   "Maintenance services",
		ContractorName: "Acme Corp",
		Amount:         decimal.NewFromInt(1000),
		StartDate:      date(2024, time.January, 1),
		EndDate:        date(2024, time.December, 31),
		BillingCycle:   models.BillingCycleMonthly,
		Status:         models.ContractStatusActive,
	}
}

func newRecord(contract *models.Contract, billingDate time.Time, amount int64) *models.BillingRecord {
	return &models.BillingRecord{
		ID:            uuid.New(),
		ContractID:    contract.ID,
		BillingNumber: "B-" + billingDate.Format("20060102"),
		BillingDate:   billingDate,
		DueDate:       billingDate.AddDate(0, 1, 0),
		Amount:        decimal.NewFromInt(amount),
		Tax:           decimal.Zero,
		BillingStatus: models.BillingStatusSent,
	}
}

func TestEvaluator_Matched(t *testing.T) {
	evaluator := newTestEvaluator(t)
	contract := newMonthlyContract()
	record := newRecord(contract, date(2024, time.January, 15), 1000)

	verdict, err := evaluator.Evaluate(contract, record, date(2024, time.July, 1))
	require.NoError(t, err)

	assert.Equal(t, models.MatchingStatusMatched, verdict.Status)
	assert.True(t, verdict.AmountDifference.IsZero())
	assert.Empty(t, verdict.DiscrepancyDetails)
}

func TestEvaluator_AmountMismatch(t *testing.T) {
	evaluator := newTestEvaluator(t)
	contract := newMonthlyContract()
	record := newRecord(contract, date(2024, time.June, 20), 1200)

	verdict, err := evaluator.Evaluate(contract, record, date(2024, time.July, 1))
	require.NoError(t, err)

	assert.Equal(t, models.MatchingStatusAmountMismatch, verdict.Status)
	assert.True(t, verdict.AmountDifference.Equal(decimal.NewFromInt(200)))
	assert.Equal(t,
		"billed total 1200 deviates from contract amount 1000 by 200",
		verdict.DiscrepancyDetails)
}

func TestEvaluator_AmountDifferenceAlwaysComputed(t *testing.T) {
	// Within-tolerance deviations still record the signed difference.
	cfg := newTestMatchingConfig(t)
	cfg.AmountToleranceStr = "5.00"
	require.NoError(t, cfg.Parse())
	evaluator := NewRuleEvaluator(cfg, zap.NewNop())

	contract := newMonthlyContract()
	record := newRecord(contract, date(2024, time.January, 15), 997)

	verdict, err := evaluator.Evaluate(contract, record, date(2024, time.July, 1))
	require.NoError(t, err)

	assert.Equal(t, models.MatchingStatusMatched, verdict.Status)
	assert.True(t, verdict.AmountDifference.Equal(decimal.NewFromInt(-3)))
}

func TestEvaluator_ContractExpired(t *testing.T) {
	evaluator := newTestEvaluator(t)
	contract := newMonthlyContract()
	contract.StartDate = date(2023, time.January, 1)
	contract.EndDate = date(2023, time.December, 31)
	contract.Status = models.ContractStatusExpired
	record := newRecord(contract, date(2024, time.January, 5), 1000)

	verdict, err := evaluator.Evaluate(contract, record, date(2024, time.February, 1))
	require.NoError(t, err)

	assert.Equal(t, models.MatchingStatusContractExpired, verdict.Status)
	assert.True(t, verdict.ContractExpired)
	assert.False(t, verdict.DateMismatch)
}

func TestEvaluator_DateMismatch(t *testing.T) {
	evaluator := newTestEvaluator(t)
	contract := newMonthlyContract()
	record := newRecord(contract, date(2023, time.December, 15), 1000)

	verdict, err := evaluator.Evaluate(contract, record, date(2024, time.February, 1))
	require.NoError(t, err)

	assert.Equal(t, models.MatchingStatusDateMismatch, verdict.Status)
	assert.Equal(t,
		"billing date 2023-12-15 is outside the contract window 2024-01-01..2024-12-31",
		verdict.DiscrepancyDetails)
}

func TestEvaluator_CycleViolation(t *testing.T) {
	// A record dated months ahead of the sweep falls in no computed period.
	evaluator := newTestEvaluator(t)
	contract := newMonthlyContract()
	record := newRecord(contract, date(2024, time.June, 10), 1000)

	verdict, err := evaluator.Evaluate(contract, record, date(2024, time.March, 1))
	require.NoError(t, err)

	assert.Equal(t, models.MatchingStatusCycleViolation, verdict.Status)
	assert.True(t, verdict.CycleViolation)
}

func TestEvaluator_MultipleIssues(t *testing.T) {
	evaluator := newTestEvaluator(t)
	contract := newMonthlyContract()
	contract.StartDate = date(2023, time.January, 1)
	contract.EndDate = date(2023, time.December, 31)
	contract.Status = models.ContractStatusExpired
	record := newRecord(contract, date(2024, time.January, 5), 1200)

	verdict, err := evaluator.Evaluate(contract, record, date(2024, time.February, 1))
	require.NoError(t, err)

	assert.Equal(t, models.MatchingStatusMultipleIssues, verdict.Status)
	// Details concatenate in check order: expiry before amount.
	assert.Equal(t,
		"contract C1 is expired, not active on 2024-01-05; "+
			"billed total 1200 deviates from contract amount 1000 by 200",
		verdict.DiscrepancyDetails)
}

func TestEvaluator_Deterministic(t *testing.T) {
	evaluator := newTestEvaluator(t)
	contract := newMonthlyContract()
	record := newRecord(contract, date(2024, time.June, 20), 1200)
	asOf := date(2024, time.July, 1)

	first, err := evaluator.Evaluate(contract, record, asOf)
	require.NoError(t, err)
	second, err := evaluator.Evaluate(contract, record, asOf)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.DiscrepancyDetails, second.DiscrepancyDetails)
	assert.True(t, first.AmountDifference.Equal(second.AmountDifference))
}

func TestEvaluator_InvalidContractData(t *testing.T) {
	evaluator := newTestEvaluator(t)

	t.Run("foreign billing record", func(t *testing.T) {
		contract := newMonthlyContract()
		record := newRecord(newMonthlyContract(), date(2024, time.January, 15), 1000)
		_, err := evaluator.Evaluate(contract, record, date(2024, time.July, 1))
		assert.ErrorIs(t, err, apperrors.ErrInvalidData)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		contract := newMonthlyContract()
		contract.Amount = decimal.Zero
		record := newRecord(contract, date(2024, time.January, 15), 1000)
		_, err := evaluator.Evaluate(contract, record, date(2024, time.July, 1))
		assert.ErrorIs(t, err, apperrors.ErrInvalidData)
	})

	t.Run("end before start", func(t *testing.T) {
		contract := newMonthlyContract()
		contract.EndDate = date(2023, time.June, 1)
		record := newRecord(contract, date(2024, time.January, 15), 1000)
		_, err := evaluator.Evaluate(contract, record, date(2024, time.July, 1))
		assert.ErrorIs(t, err, apperrors.ErrInvalidData)
	})

	t.Run("unknown billing cycle", func(t *testing.T) {
		contract := newMonthlyContract()
		contract.BillingCycle = "weekly"
		record := newRecord(contract, date(2024, time.January, 15), 1000)
		_, err := evaluator.Evaluate(contract, record, date(2024, time.July, 1))
		assert.ErrorIs(t, err, apperrors.ErrInvalidData)
	})
}
