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

// ContractRepository provides read access to contracts. The engine never
// mutates contracts; they are owned by the surrounding CRUD layer.
type ContractRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetByNumber(ctx context.Context, contractNumber string) (*models.Contract, error)
	ListActive(ctx context.Context) ([]*models.Contract, error)
	List(ctx context.Context) ([]*models.Contract, error)
}

type contractRepository struct {
	db *database.DB
}

// NewContractRepository creates a new contract repository.
func NewContractRepository(db *database.DB) ContractRepository {
	return &contractRepository{db: db}
}

var _ ContractRepository = (*contractRepository)(nil)

const contractColumns = `
	id, contract_number, contract_name, contractor_name, amount,
	start_date, end_date, billing_cycle, status, created_at, updated_at`

func (r *contractRepository) Get(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE id = $1`, id)

	contract, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("contract %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return contract, nil
}

func (r *contractRepository) GetByNumber(ctx context.Context, contractNumber string) (*models.Contract, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE contract_number = $1`, contractNumber)

	contract, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("contract %q: %w", contractNumber, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contract by number: %w", err)
	}
	return contract, nil
}

func (r *contractRepository) ListActive(ctx context.Context) ([]*models.Contract, error) {
	return r.list(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE status = $1
		ORDER BY contract_number`, models.ContractStatusActive)
}

func (r *contractRepository) List(ctx context.Context) ([]*models.Contract, error) {
	return r.list(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		ORDER BY contract_number`)
}

func (r *contractRepository) list(ctx context.Context, query string, args ...any) ([]*models.Contract, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contracts: %w", err)
	}
	return contracts, nil
}

func scanContract(row pgx.Row) (*models.Contract, error) {
	contract := &models.Contract{}
	err := row.Scan(
		&contract.ID, &contract.ContractNumber, &contract.ContractName,
		&contract.ContractorName, &contract.Amount, &contract.StartDate,
		&contract.EndDate, &contract.BillingCycle, &contract.Status,
		&contract.CreatedAt, &contract.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return contract, nil
}
