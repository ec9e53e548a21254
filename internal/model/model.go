package model

import "time"

// Ledger identifiers and amounts

// Address is a TRON account identifier in its base58 display form
// ("T...", 34 characters). Syntactic validity does not imply the
// account exists or holds funds.
type Address string

// BaseUnits is a token amount in the smallest unit the ledger uses
// internally (10^-6 of the display unit).
type BaseUnits int64

// Invoices

type InvoiceRecord struct {
	ID         int64
	Freelancer Address
	Amount     BaseUnits
	Status     string
	CreatedAt  time.Time
	PaidAt     time.Time // zero while unpaid
}

const (
	InvoiceStatusUnpaid = "UNPAID"
	InvoiceStatusPaid   = "PAID"
)

// Allowance is how much of the token the owner has authorized the
// spender (the invoice contract) to move on the owner's behalf.
type Allowance struct {
	Owner   Address
	Spender Address
	Amount  BaseUnits
}

// Balances of one account, as shown to the user.
type Balances struct {
	Token BaseUnits // USDT
	TRX   BaseUnits // native coin, also 6 decimals
}

// Commands

type CommandKind string

const (
	CommandSetAddress    CommandKind = "SET_ADDRESS"
	CommandGetAddress    CommandKind = "GET_ADDRESS"
	CommandCreateInvoice CommandKind = "CREATE_INVOICE"
	CommandListInvoices  CommandKind = "LIST_INVOICES"
	CommandShowBalance   CommandKind = "SHOW_BALANCE"
	CommandUnknown       CommandKind = "UNKNOWN"
)

// Reasons an update resolved to CommandUnknown.
const (
	ReasonBadRecipient = "invalid recipient address"
	ReasonBadAmount    = "invalid amount"
	ReasonBadAddress   = "invalid address"
	ReasonBadFields    = "expected recipient and amount"
	ReasonNoIntent     = "unrecognized intent"
)

// Command is the normalized result of resolving one inbound update.
// Produced once per update, consumed once.
type Command struct {
	Kind      CommandKind
	Address   Address   // SetAddress target / ListInvoices owner
	Recipient Address   // CreateInvoice freelancer
	Amount    BaseUnits // CreateInvoice amount
	Reason    string    // Unknown: resolution-failure detail, not user-facing
}

// Payment attempt lifecycle. One row per attempt, advanced strictly
// forward; a failed invoice gets a fresh row on the next attempt.

const (
	PaymentStatePendingApproval = "PENDING_APPROVAL"
	PaymentStateApproved        = "APPROVED"
	PaymentStatePaying          = "PAYING"
	PaymentStatePaid            = "PAID"
	PaymentStateFailed          = "FAILED"
)

type PaymentAttempt struct {
	InvoiceID int64
	Payer     Address
	State     string
	UpdatedAt time.Time
}
