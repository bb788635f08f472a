package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingStatus is the payment lifecycle state of a billing record.
const (
	BillingStatusDraft     = "draft"
	BillingStatusSent      = "sent"
	BillingStatusPaid      = "paid"
	BillingStatusOverdue   = "overdue"
	BillingStatusCancelled = "cancelled"
)

// ValidBillingStatus reports whether s is a known billing status.
func ValidBillingStatus(s string) bool {
	switch s {
	case BillingStatusDraft, BillingStatusSent, BillingStatusPaid,
		BillingStatusOverdue, BillingStatusCancelled:
		return true
	}
	return false
}

// BillingRecord is one invoice issued against a contract. Read-only input
// to the engine; owned by the surrounding CRUD layer.
type BillingRecord struct {
	ID            uuid.UUID `json:"id"`
	ContractID    uuid.UUID `json:"contract_id"`
	BillingNumber string    `json:"billing_number"` // unique

	BillingDate time.Time `json:"billing_date"`
	DueDate     time.Time `json:"due_date"` // never before BillingDate

	Amount decimal.Decimal `json:"amount"` // pre-tax
	Tax    decimal.Decimal `json:"tax"`

	BillingStatus string `json:"billing_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total is the tax-inclusive billed amount. It is always recomputed from
// the two components; a stored total column is never trusted.
func (b *BillingRecord) Total() decimal.Decimal {
	return b.Amount.Add(b.Tax)
}
