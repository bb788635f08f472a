package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/database"
	"github.com/ledgerline-io/recon-engine/pkg/models"
)

// MatchingResultRepository persists matching verdicts. The
// (contract_id, billing_record_id) pair is unique; all writers go through
// Upsert so the invariant holds under concurrent triggers.
type MatchingResultRepository interface {
	Find(ctx context.Context, contractID, billingRecordID uuid.UUID) (*models.MatchingResult, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]*models.MatchingResult, error)
	// Upsert writes the verdict fields of a result. Resolution fields
	// (is_resolved, resolved_by, resolved_at) are never touched: a human
	// resolution survives any number of re-matches.
	Upsert(ctx context.Context, result *models.MatchingResult) error
	// Resolve marks a result resolved on behalf of a user. This belongs to
	// the resolution workflow, not the engine's re-match path.
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy string) error
}

type matchingResultRepository struct {
	db *database.DB
}

// NewMatchingResultRepository creates a new matching result repository.
func NewMatchingResultRepository(db *database.DB) MatchingResultRepository {
	return &matchingResultRepository{db: db}
}

var _ MatchingResultRepository = (*matchingResultRepository)(nil)

const matchingResultColumns = `
	id, contract_id, billing_record_id, status, discrepancy_details,
	amount_difference, is_resolved, resolved_by, resolved_at,
	created_at, updated_at`

func (r *matchingResultRepository) Find(ctx context.Context, contractID, billingRecordID uuid.UUID) (*models.MatchingResult, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+matchingResultColumns+`
		FROM matching_results
		WHERE contract_id = $1 AND billing_record_id = $2`, contractID, billingRecordID)

	result, err := scanMatchingResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("matching result for contract %s record %s: %w",
				contractID, billingRecordID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find matching result: %w", err)
	}
	return result, nil
}

func (r *matchingResultRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]*models.MatchingResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+matchingResultColumns+`
		FROM matching_results
		WHERE contract_id = $1
		ORDER BY created_at`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matching results: %w", err)
	}
	defer rows.Close()

	var results []*models.MatchingResult
	for rows.Next() {
		result, err := scanMatchingResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan matching result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matching results: %w", err)
	}
	return results, nil
}

func (r *matchingResultRepository) Upsert(ctx context.Context, result *models.MatchingResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}

	var diff decimal.NullDecimal
	if result.AmountDifference != nil {
		diff = decimal.NullDecimal{Decimal: *result.AmountDifference, Valid: true}
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO matching_results (
			id, contract_id, billing_record_id, status, discrepancy_details,
			amount_difference
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contract_id, billing_record_id) DO UPDATE SET
			status = EXCLUDED.status,
			discrepancy_details = EXCLUDED.discrepancy_details,
			amount_difference = EXCLUDED.amount_difference,
			updated_at = now()
		RETURNING id, is_resolved, resolved_by, resolved_at, created_at, updated_at`,
		result.ID, result.ContractID, result.BillingRecordID,
		result.Status, result.DiscrepancyDetails, diff,
	)

	err := row.Scan(&result.ID, &result.IsResolved, &result.ResolvedBy,
		&result.ResolvedAt, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("upsert matching result: %w", apperrors.ErrWriteConflict)
		}
		return fmt.Errorf("failed to upsert matching result: %w", err)
	}
	return nil
}

func (r *matchingResultRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy string) error {
	now := time.Now()
	tag, err := r.db.Exec(ctx, `
		UPDATE matching_results
		SET is_resolved = true, resolved_by = $2, resolved_at = $3, updated_at = $3
		WHERE id = $1 AND NOT is_resolved`,
		id, resolvedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve matching result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open matching result %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanMatchingResult(row pgx.Row) (*models.MatchingResult, error) {
	result := &models.MatchingResult{}
	var diff decimal.NullDecimal
	err := row.Scan(
		&result.ID, &result.ContractID, &result.BillingRecordID,
		&result.Status, &result.DiscrepancyDetails, &diff,
		&result.IsResolved, &result.ResolvedBy, &result.ResolvedAt,
		&result.CreatedAt, &result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if diff.Valid {
		d := diff.Decimal
		result.AmountDifference = &d
	}
	return result, nil
}

// isConflict reports whether err is a unique violation, serialization
// failure, or deadlock - the races the orchestrator retries once.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "40001", "40P01":
		return true
	}
	return false
}
