package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/database"
	"github.com/ledgerline-io/recon-engine/pkg/models"
)

// BillingRecordRepository provides read access to billing records. Like
// contracts, billing records are read-only input to the engine.
type BillingRecordRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.BillingRecord, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]*models.BillingRecord, error)
}

type billingRecordRepository struct {
	db *database.DB
}

// NewBillingRecordRepository creates a new billing record repository.
func NewBillingRecordRepository(db *database.DB) BillingRecordRepository {
	return &billingRecordRepository{db: db}
}

var _ BillingRecordRepository = (*billingRecordRepository)(nil)

const billingRecordColumns = `
	id, contract_id, billing_number, billing_date, due_date,
	amount, tax, billing_status, created_at, updated_at`

func (r *billingRecordRepository) Get(ctx context.Context, id uuid.UUID) (*models.BillingRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+billingRecordColumns+`
		FROM billing_records
		WHERE id = $1`, id)

	record, err := scanBillingRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("billing record %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get billing record: %w", err)
	}
	return record, nil
}

func (r *billingRecordRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]*models.BillingRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+billingRecordColumns+`
		FROM billing_records
		WHERE contract_id = $1
		ORDER BY billing_date, billing_number`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing records: %w", err)
	}
	defer rows.Close()

	var records []*models.BillingRecord
	for rows.Next() {
		record, err := scanBillingRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating billing records: %w", err)
	}
	return records, nil
}

func scanBillingRecord(row pgx.Row) (*models.BillingRecord, error) {
	record := &models.BillingRecord{}
	err := row.Scan(
		&record.ID, &record.ContractID, &record.BillingNumber,
		&record.BillingDate, &record.DueDate, &record.Amount, &record.Tax,
		&record.BillingStatus, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}
