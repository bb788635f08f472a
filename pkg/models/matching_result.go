package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchingStatus is the verdict of reconciling one billing record against
// its contract. The set is closed; the rule evaluator and alert emitter
// switch exhaustively over it.
const (
	MatchingStatusMatched         = "matched"
	MatchingStatusAmountMismatch  = "amount_mismatch"
	MatchingStatusDateMismatch    = "date_mismatch"
	MatchingStatusCycleViolation  = "cycle_violation"
	MatchingStatusContractExpired = "contract_expired"
	MatchingStatusMultipleIssues  = "multiple_issues"
)

// ValidMatchingStatus reports whether s is a known matching status.
func ValidMatchingStatus(s string) bool {
	switch s {
	case MatchingStatusMatched, MatchingStatusAmountMismatch,
		MatchingStatusDateMismatch, MatchingStatusCycleViolation,
		MatchingStatusContractExpired, MatchingStatusMultipleIssues:
		return true
	}
	return false
}

// MatchingResult is the engine's verdict for one (contract, billing record)
// pair. The pair is unique: re-running matching updates the existing row,
// it never creates a second one.
//
// Resolution fields are set only by the human resolution workflow and are
// never touched by re-matching.
type MatchingResult struct {
	ID              uuid.UUID `json:"id"`
	ContractID      uuid.UUID `json:"contract_id"`
	BillingRecordID uuid.UUID `json:"billing_record_id"`

	Status             string `json:"status"`
	DiscrepancyDetails string `json:"discrepancy_details"`

	// Signed difference billed total - contract amount. Stored even for
	// exact matches (zero) so trends remain visible downstream.
	AmountDifference *decimal.Decimal `json:"amount_difference,omitempty"`

	IsResolved bool       `json:"is_resolved"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
