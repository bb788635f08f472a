package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingCycle is the cadence on which a contract is billed.
const (
	BillingCycleMonthly    = "monthly"
	BillingCycleQuarterly  = "quarterly"
	BillingCycleSemiAnnual = "semi_annual"
	BillingCycleAnnual     = "annual"
	BillingCycleOneTime    = "one_time"
)

// ContractStatus is the lifecycle state of a contract.
const (
	ContractStatusDraft      = "draft"
	ContractStatusActive     = "active"
	ContractStatusExpired    = "expired"
	ContractStatusTerminated = "terminated"
	ContractStatusSuspended  = "suspended"
)

// ValidBillingCycle reports whether s is a known billing cycle.
func ValidBillingCycle(s string) bool {
	switch s {
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleSemiAnnual,
		BillingCycleAnnual, BillingCycleOneTime:
		return true
	}
	return false
}

// ValidContractStatus reports whether s is a known contract status.
func ValidContractStatus(s string) bool {
	switch s {
	case ContractStatusDraft, ContractStatusActive, ContractStatusExpired,
		ContractStatusTerminated, ContractStatusSuspended:
		return true
	}
	return false
}

// Contract is a signed agreement that billing records are reconciled
// against. The engine treats contracts as read-only input; they are owned
// and mutated by the surrounding CRUD layer.
type Contract struct {
	ID             uuid.UUID `json:"id"`
	ContractNumber string    `json:"contract_number"` // unique
	ContractName   string    `json:"contract_name"`
	ContractorName string    `json:"contractor_name"`

	// Monetary term. The amount every billing period is expected to total.
	Amount decimal.Decimal `json:"amount"`

	// Validity window, dates at UTC midnight, both ends inclusive.
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	BillingCycle string `json:"billing_cycle"`
	Status       string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActiveAt reports whether the contract is in force on the given date:
// status is active and the date falls inside the validity window.
func (c *Contract) IsActiveAt(date time.Time) bool {
	return c.Status == ContractStatusActive &&
		!date.Before(c.StartDate) &&
		!date.After(c.EndDate)
}
