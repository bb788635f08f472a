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

// AlertRepository persists alerts. Deduplication of unresolved alerts is
// enforced both here (FindUnresolved before Create) and by a partial unique
// index in the schema, so concurrent sweeps cannot double-create.
type AlertRepository interface {
	// FindUnresolved returns the open alert for the given dedup key, or
	// ErrNotFound when none exists. Nil contractID/billingRecordID match
	// rows where the column is NULL.
	FindUnresolved(ctx context.Context, alertType string, contractID, billingRecordID *uuid.UUID) (*models.Alert, error)
	ListUnresolved(ctx context.Context) ([]*models.Alert, error)
	Create(ctx context.Context, alert *models.Alert) error
	// UpdateLevel rewrites the severity and message of an open alert.
	// Callers only escalate; the rank check lives in the emitter.
	UpdateLevel(ctx context.Context, id uuid.UUID, level, message string) error
	MarkRead(ctx context.Context, id uuid.UUID) error
	Resolve(ctx context.Context, id uuid.UUID) error
}

type alertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *database.DB) AlertRepository {
	return &alertRepository{db: db}
}

var _ AlertRepository = (*alertRepository)(nil)

const alertColumns = `
	id, contract_id, billing_record_id, matching_result_id,
	alert_type, alert_level, title, message, is_read, is_resolved,
	created_at, updated_at`

func (r *alertRepository) FindUnresolved(ctx context.Context, alertType string, contractID, billingRecordID *uuid.UUID) (*models.Alert, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE alert_type = $1
		  AND contract_id IS NOT DISTINCT FROM $2
		  AND billing_record_id IS NOT DISTINCT FROM $3
		  AND NOT is_resolved`, alertType, contractID, billingRecordID)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("unresolved %s alert: %w", alertType, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find unresolved alert: %w", err)
	}
	return alert, nil
}

func (r *alertRepository) ListUnresolved(ctx context.Context) ([]*models.Alert, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE NOT is_resolved
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO alerts (
			id, contract_id, billing_record_id, matching_result_id,
			alert_type, alert_level, title, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		alert.ID, alert.ContractID, alert.BillingRecordID, alert.MatchingResultID,
		alert.AlertType, alert.AlertLevel, alert.Title, alert.Message,
	)

	if err := row.Scan(&alert.CreatedAt, &alert.UpdatedAt); err != nil {
		if isConflict(err) {
			return fmt.Errorf("create alert: %w", apperrors.ErrWriteConflict)
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) UpdateLevel(ctx context.Context, id uuid.UUID, level, message string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts
		SET alert_level = $2, message = $3, updated_at = now()
		WHERE id = $1 AND NOT is_resolved`, id, level, message)
	if err != nil {
		return fmt.Errorf("failed to update alert level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open alert %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *alertRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts
		SET is_read = true, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *alertRepository) Resolve(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts
		SET is_resolved = true, updated_at = now()
		WHERE id = $1 AND NOT is_resolved`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open alert %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	alert := &models.Alert{}
	err := row.Scan(
		&alert.ID, &alert.ContractID, &alert.BillingRecordID,
		&alert.MatchingResultID, &alert.AlertType, &alert.AlertLevel,
		&alert.Title, &alert.Message, &alert.IsRead, &alert.IsResolved,
		&alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return alert, nil
}
