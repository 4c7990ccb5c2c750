package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment request.
// Free and Paid are terminal-success, Failed is terminal-failure. A request
// found in Charging was interrupted mid-flow and must be reconciled against
// chain state before any terminal transition.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusFree     PaymentStatus = "FREE"
	StatusCharging PaymentStatus = "CHARGING"
	StatusPaid     PaymentStatus = "PAID"
	StatusFailed   PaymentStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == StatusFree || s == StatusPaid || s == StatusFailed
}

// PaymentRequest is the payment facet of a job/task.
type PaymentRequest struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"ownerId"`
	ServiceClass string          `json:"serviceClass"`
	Status       PaymentStatus   `json:"status"`
	AmountDue    decimal.Decimal `json:"amountDue"`
	TxRef        string          `json:"txRef,omitempty"`
	FailReason   string          `json:"failReason,omitempty"`
	Intake       []IntakeAnswer  `json:"intake,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// LedgerDirection distinguishes incoming from outgoing transfers relative
// to the managed wallet. Naming follows bank-statement convention: CREDIT
// is money leaving the wallet, DEBIT is money arriving.
type LedgerDirection string

const (
	DirectionDebit  LedgerDirection = "DEBIT"
	DirectionCredit LedgerDirection = "CREDIT"
)

// LedgerRecord is an append-only record of one completed transfer.
// TxSignature is unique across records; free-use grants carry an empty
// signature and a zero amount.
type LedgerRecord struct {
	ID                  string          `json:"id"`
	WalletAddress       string          `json:"walletAddress"`
	Direction           LedgerDirection `json:"direction"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	CounterpartyAddress string          `json:"counterpartyAddress"`
	TxSignature         string          `json:"txSignature,omitempty"`
	RequestID           string          `json:"requestId,omitempty"`
	ConfirmedAt         *time.Time      `json:"confirmedAt,omitempty"`
}
