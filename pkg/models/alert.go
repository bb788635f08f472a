package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies what condition an alert reports.
const (
	AlertTypeAmountMismatch   = "amount_mismatch"
	AlertTypeMissingBilling   = "missing_billing"
	AlertTypeDuplicateBilling = "duplicate_billing"
	AlertTypeContractExpiry   = "contract_expiry"
	AlertTypeOverduePayment   = "overdue_payment"
)

// AlertLevel is the severity of an alert, ordered low to critical.
const (
	AlertLevelLow      = "low"
	AlertLevelMedium   = "medium"
	AlertLevelHigh     = "high"
	AlertLevelCritical = "critical"
)

// ValidAlertType reports whether s is a known alert type.
func ValidAlertType(s string) bool {
	switch s {
	case AlertTypeAmountMismatch, AlertTypeMissingBilling,
		AlertTypeDuplicateBilling, AlertTypeContractExpiry,
		AlertTypeOverduePayment:
		return true
	}
	return false
}

// ValidAlertLevel reports whether s is a known alert level.
func ValidAlertLevel(s string) bool {
	return AlertLevelRank(s) >= 0
}

// AlertLevelRank returns the escalation rank of a level (low=0 through
// critical=3), or -1 for an unknown level. The emitter only ever moves an
// open alert's level up this order, never down.
func AlertLevelRank(level string) int {
	switch level {
	case AlertLevelLow:
		return 0
	case AlertLevelMedium:
		return 1
	case AlertLevelHigh:
		return 2
	case AlertLevelCritical:
		return 3
	}
	return -1
}

// Alert is a notification derived from a matching verdict, a scanner
// finding, or an expiry/overdue condition.
//
// Invariant: at most one unresolved alert may exist for a given
// (alert_type, contract, billing_record-or-null) key. The emitter
// find-or-skips before creating.
type Alert struct {
	ID uuid.UUID `json:"id"`

	ContractID       *uuid.UUID `json:"contract_id,omitempty"`
	BillingRecordID  *uuid.UUID `json:"billing_record_id,omitempty"`
	MatchingResultID *uuid.UUID `json:"matching_result_id,omitempty"`

	AlertType  string `json:"alert_type"`
	AlertLevel string `json:"alert_level"`
	Title      string `json:"title"`
	Message    string `json:"message"`

	IsRead     bool `json:"is_read"`
	IsResolved bool `json:"is_resolved"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
