package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/models"
	"github.com/ledgerline-io/recon-engine/pkg/testhelpers"
)

func TestAlertRepository_UnresolvedDedupKey(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewAlertRepository(testDB.DB)
	ctx := context.Background()

	contract := seedContract(t, testDB.DB)
	record := seedBillingRecord(t, testDB.DB, contract,
		time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC))

	alert := &models.Alert{
		ContractID:      &contract.ID,
		BillingRecordID: &record.ID,
		AlertType:       models.AlertTypeAmountMismatch,
		AlertLevel:      models.AlertLevelMedium,
		Title:           "Amount mismatch on billing " + record.BillingNumber,
		Message:         "deviates by 200",
	}
	require.NoError(t, repo.Create(ctx, alert))

	found, err := repo.FindUnresolved(ctx, models.AlertTypeAmountMismatch, &contract.ID, &record.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, found.ID)

	// A second unresolved alert with the same key violates the partial
	// unique index and surfaces as a write conflict.
	dup := &models.Alert{
		ContractID:      &contract.ID,
		BillingRecordID: &record.ID,
		AlertType:       models.AlertTypeAmountMismatch,
		AlertLevel:      models.AlertLevelHigh,
		Title:           alert.Title,
	}
	err = repo.Create(ctx, dup)
	assert.ErrorIs(t, err, apperrors.ErrWriteConflict)

	// Resolving frees the key for a fresh alert.
	require.NoError(t, repo.Resolve(ctx, alert.ID))
	require.NoError(t, repo.Create(ctx, dup))
}

func TestAlertRepository_NullRecordKey(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewAlertRepository(testDB.DB)
	ctx := context.Background()

	contract := seedContract(t, testDB.DB)

	alert := &models.Alert{
		ContractID: &contract.ID,
		AlertType:  models.AlertTypeMissingBilling,
		AlertLevel: models.AlertLevelHigh,
		Title:      "Missing billing for contract " + contract.ContractNumber,
	}
	require.NoError(t, repo.Create(ctx, alert))

	// A nil billing record matches the NULL column, not any record.
	found, err := repo.FindUnresolved(ctx, models.AlertTypeMissingBilling, &contract.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, found.ID)

	someRecord := uuid.New()
	_, err = repo.FindUnresolved(ctx, models.AlertTypeMissingBilling, &contract.ID, &someRecord)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAlertRepository_UpdateLevelAndMarkRead(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewAlertRepository(testDB.DB)
	ctx := context.Background()

	contract := seedContract(t, testDB.DB)
	alert := &models.Alert{
		ContractID: &contract.ID,
		AlertType:  models.AlertTypeContractExpiry,
		AlertLevel: models.AlertLevelLow,
		Title:      "Contract " + contract.ContractNumber + " expiring",
		Message:    "30 days remaining",
	}
	require.NoError(t, repo.Create(ctx, alert))

	require.NoError(t, repo.UpdateLevel(ctx, alert.ID, models.AlertLevelCritical, "5 days remaining"))
	require.NoError(t, repo.MarkRead(ctx, alert.ID))

	found, err := repo.FindUnresolved(ctx, models.AlertTypeContractExpiry, &contract.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlertLevelCritical, found.AlertLevel)
	assert.Equal(t, "5 days remaining", found.Message)
	assert.True(t, found.IsRead)

	// UpdateLevel refuses to touch resolved alerts.
	require.NoError(t, repo.Resolve(ctx, alert.ID))
	err = repo.UpdateLevel(ctx, alert.ID, models.AlertLevelLow, "reopened")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
