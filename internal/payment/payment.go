package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iurnickita/paymi/internal/invoice"
	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/payment/config"
	"github.com/iurnickita/paymi/internal/tron"
)

// Coordinator runs the approve-then-pay sequence for one invoice.
// One attempt at a time per invoice; each attempt is an explicit state
// machine persisted as a saga row:
//
//	PENDING_APPROVAL -> APPROVED -> PAYING -> PAID | FAILED
//
// Failure at any step aborts the whole attempt. No compensating
// transaction is issued: an approval that settled before a failed
// payment stays in place as standing allowance. That exposure is bounded
// by approving exactly the invoice amount, never unlimited.
type Coordinator interface {
	Pay(ctx context.Context, invoiceID int64) (PayResult, error)
}

type PayResult struct {
	InvoiceID int64
	Approved  bool // an approval transaction was needed and submitted
	ApproveTx string
	PayTx     string
}

var (
	ErrPaymentInFlight = errors.New("payment already in flight for this invoice")
	ErrAlreadyPaid     = errors.New("invoice is already paid")
	ErrApprovalTimeout = errors.New("approval did not settle in time")
	ErrExecution       = errors.New("payment execution failed")
)

// AttemptStore persists saga rows. Advancing a finished attempt is the
// store's problem to reject, not the coordinator's.
type AttemptStore interface {
	BeginAttempt(ctx context.Context, invoiceID int64, payer model.Address) error
	AdvanceAttempt(ctx context.Context, invoiceID int64, payer model.Address, state string) error
}

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollDeadline = 15 * time.Second
)

type coordinator struct {
	cfg      config.Config
	client   tron.Client
	invoices invoice.Executor
	attempts AttemptStore

	mutex    sync.Mutex
	inflight map[int64]bool
}

func NewCoordinator(cfg config.Config, client tron.Client, invoices invoice.Executor, attempts AttemptStore) Coordinator {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollDeadline == 0 {
		cfg.PollDeadline = defaultPollDeadline
	}
	return &coordinator{
		cfg:      cfg,
		client:   client,
		invoices: invoices,
		attempts: attempts,
		inflight: make(map[int64]bool),
	}
}

func (c *coordinator) Pay(ctx context.Context, invoiceID int64) (PayResult, error) {
	if !c.acquire(invoiceID) {
		return PayResult{}, ErrPaymentInFlight
	}
	defer c.release(invoiceID)

	record, err := c.invoices.Get(ctx, invoiceID)
	if err != nil {
		return PayResult{}, err
	}
	if record.Status == model.InvoiceStatusPaid {
		return PayResult{}, ErrAlreadyPaid
	}

	payer := c.client.Owner()
	if err := c.attempts.BeginAttempt(ctx, invoiceID, payer); err != nil {
		return PayResult{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	result := PayResult{InvoiceID: invoiceID}

	allowance, err := c.readAllowance(ctx, payer)
	if err != nil {
		return PayResult{}, c.fail(ctx, invoiceID, payer, err)
	}

	// Approve only if the standing allowance does not cover the invoice;
	// a sufficient allowance is an idempotent skip.
	if allowance < record.Amount {
		approveTx, err := c.approve(ctx, record.Amount)
		if err != nil {
			return PayResult{}, c.fail(ctx, invoiceID, payer, err)
		}
		result.Approved = true
		result.ApproveTx = approveTx

		if err := c.waitForAllowance(ctx, payer, record.Amount); err != nil {
			return PayResult{}, c.fail(ctx, invoiceID, payer, err)
		}
	}

	if err := c.attempts.AdvanceAttempt(ctx, invoiceID, payer, model.PaymentStateApproved); err != nil {
		return PayResult{}, c.fail(ctx, invoiceID, payer, fmt.Errorf("%w: %v", ErrExecution, err))
	}
	if err := c.attempts.AdvanceAttempt(ctx, invoiceID, payer, model.PaymentStatePaying); err != nil {
		return PayResult{}, c.fail(ctx, invoiceID, payer, fmt.Errorf("%w: %v", ErrExecution, err))
	}

	payTx, err := c.client.Write(ctx,
		model.Address(c.cfg.ContractAddress),
		"payInvoice(uint256)",
		tron.EncodeUint(invoiceID),
		tron.WriteOptions{})
	if err != nil {
		return PayResult{}, c.fail(ctx, invoiceID, payer, fmt.Errorf("%w: %v", ErrExecution, err))
	}
	result.PayTx = payTx

	// Optimistic: the ledger remains authoritative for Paid.
	if err := c.attempts.AdvanceAttempt(ctx, invoiceID, payer, model.PaymentStatePaid); err != nil {
		return PayResult{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return result, nil
}

func (c *coordinator) readAllowance(ctx context.Context, payer model.Address) (model.BaseUnits, error) {
	ownerWord, err := tron.EncodeAddress(payer)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	spenderWord, err := tron.EncodeAddress(model.Address(c.cfg.ContractAddress))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	result, err := c.client.Read(ctx,
		model.Address(c.cfg.USDTAddress),
		"allowance(address,address)",
		tron.Pack(ownerWord, spenderWord))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	value, err := result.Uint(0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return model.BaseUnits(value), nil
}

// approve authorizes the contract to move exactly the invoice amount.
func (c *coordinator) approve(ctx context.Context, amount model.BaseUnits) (string, error) {
	spenderWord, err := tron.EncodeAddress(model.Address(c.cfg.ContractAddress))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}

	txHash, err := c.client.Write(ctx,
		model.Address(c.cfg.USDTAddress),
		"approve(address,uint256)",
		tron.Pack(spenderWord, tron.EncodeUint(int64(amount))),
		tron.WriteOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return txHash, nil
}

// waitForAllowance re-reads the allowance until it covers the invoice or
// the deadline passes. The payment must never be attempted before the
// approval is observable, so a timeout is its own error, not a go-ahead.
func (c *coordinator) waitForAllowance(ctx context.Context, payer model.Address, amount model.BaseUnits) error {
	deadline := time.NewTimer(c.cfg.PollDeadline)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrExecution, ctx.Err())
		case <-deadline.C:
			return ErrApprovalTimeout
		case <-ticker.C:
			allowance, err := c.readAllowance(ctx, payer)
			if err != nil {
				return err
			}
			if allowance >= amount {
				return nil
			}
		}
	}
}

// fail marks the saga row and passes the original error through.
func (c *coordinator) fail(ctx context.Context, invoiceID int64, payer model.Address, cause error) error {
	if err := c.attempts.AdvanceAttempt(ctx, invoiceID, payer, model.PaymentStateFailed); err != nil {
		return fmt.Errorf("%v (also failed to record attempt state: %v)", cause, err)
	}
	return cause
}

func (c *coordinator) acquire(invoiceID int64) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.inflight[invoiceID] {
		return false
	}
	c.inflight[invoiceID] = true
	return true
}

func (c *coordinator) release(invoiceID int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.inflight, invoiceID)
}
