package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iurnickita/paymi/internal/invoice/config"
	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/tron"
)

// Executor issues the ledger calls behind the chat commands: create an
// invoice, list invoices for an address, read one invoice, read balances.
type Executor interface {
	Create(ctx context.Context, recipient model.Address, amount model.BaseUnits) (CreateResult, error)
	List(ctx context.Context, owner model.Address) ([]model.InvoiceRecord, error)
	Get(ctx context.Context, id int64) (model.InvoiceRecord, error)
	Balances(ctx context.Context, owner model.Address) (model.Balances, error)
}

type CreateResult struct {
	TxHash    string
	InvoiceID int64
}

var (
	// ErrNoContract: configuration error, fatal for the call, not retried.
	ErrNoContract = errors.New("invoice contract address is not configured")
	// ErrExecution wraps any ledger RPC failure. Never retried here; retry
	// is a user-initiated repeat action.
	ErrExecution = errors.New("ledger execution failed")
)

const (
	invoiceCreatedSignature = "InvoiceCreated(uint256,address,uint256)"

	receiptPollTries    = 3
	receiptPollInterval = 2 * time.Second
)

type executor struct {
	cfg    config.Config
	client tron.Client
}

func NewExecutor(cfg config.Config, client tron.Client) Executor {
	return &executor{cfg: cfg, client: client}
}

func (e *executor) contract() (model.Address, error) {
	if e.cfg.ContractAddress == "" {
		return "", ErrNoContract
	}
	return model.Address(e.cfg.ContractAddress), nil
}

// Create submits createInvoice and recovers the new invoice id from the
// InvoiceCreated event in the transaction receipt. The authoritative id
// lives in that event; the invoiceCounter read below is only a fallback
// for a receipt the node has not indexed yet, and can misreport the id
// if another creation lands in between.
func (e *executor) Create(ctx context.Context, recipient model.Address, amount model.BaseUnits) (CreateResult, error) {
	contract, err := e.contract()
	if err != nil {
		return CreateResult{}, err
	}

	recipientWord, err := tron.EncodeAddress(recipient)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	params := tron.Pack(recipientWord, tron.EncodeUint(int64(amount)))

	txHash, err := e.client.Write(ctx, contract, "createInvoice(address,uint256)", params, tron.WriteOptions{})
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	id, err := e.invoiceIDFromReceipt(ctx, txHash)
	if err != nil {
		id, err = e.invoiceCounter(ctx, contract)
		if err != nil {
			return CreateResult{}, err
		}
	}

	return CreateResult{TxHash: txHash, InvoiceID: id}, nil
}

func (e *executor) invoiceIDFromReceipt(ctx context.Context, txHash string) (int64, error) {
	topic := tron.EventTopic(invoiceCreatedSignature)

	var events []tron.Event
	var err error
	for try := 0; try < receiptPollTries; try++ {
		events, err = e.client.Events(ctx, txHash)
		if err == nil {
			break
		}
		if !errors.Is(err, tron.ErrNoReceipt) {
			return 0, fmt.Errorf("%w: %v", ErrExecution, err)
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %v", ErrExecution, ctx.Err())
		case <-time.After(receiptPollInterval):
		}
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	for _, ev := range events {
		if len(ev.Topics) >= 2 && ev.Topics[0] == topic {
			return tron.Result(ev.Topics[1]).Uint(0)
		}
	}
	return 0, fmt.Errorf("%w: no InvoiceCreated event in receipt", ErrExecution)
}

func (e *executor) invoiceCounter(ctx context.Context, contract model.Address) (int64, error) {
	result, err := e.client.Read(ctx, contract, "invoiceCounter()", "")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	id, err := result.Uint(0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return id, nil
}

// List reads the owner's invoice ids and then one detail record per id,
// sequentially, preserving id order. An owner with no invoices yields an
// empty (non-nil) slice, distinct from a lookup failure.
func (e *executor) List(ctx context.Context, owner model.Address) ([]model.InvoiceRecord, error) {
	contract, err := e.contract()
	if err != nil {
		return nil, err
	}

	ownerWord, err := tron.EncodeAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	result, err := e.client.Read(ctx, contract, "getFreelancerInvoices(address)", ownerWord)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	ids, err := result.UintArray()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	records := make([]model.InvoiceRecord, 0, len(ids))
	for _, id := range ids {
		record, err := e.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (e *executor) Get(ctx context.Context, id int64) (model.InvoiceRecord, error) {
	contract, err := e.contract()
	if err != nil {
		return model.InvoiceRecord{}, err
	}

	result, err := e.client.Read(ctx, contract, "getInvoiceDetails(uint256)", tron.EncodeUint(id))
	if err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return decodeInvoice(id, result)
}

// getInvoiceDetails returns (freelancer, amount, status, createdAt, paidAt).
func decodeInvoice(id int64, result tron.Result) (model.InvoiceRecord, error) {
	freelancer, err := result.Address(0)
	if err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	amount, err := result.Uint(1)
	if err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	status, err := result.Uint(2)
	if err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	createdAt, err := result.Uint(3)
	if err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	paidAt, err := result.Uint(4)
	if err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	record := model.InvoiceRecord{
		ID:         id,
		Freelancer: freelancer,
		Amount:     model.BaseUnits(amount),
		Status:     model.InvoiceStatusUnpaid,
		CreatedAt:  time.Unix(createdAt, 0).UTC(),
	}
	if status == 1 {
		record.Status = model.InvoiceStatusPaid
		record.PaidAt = time.Unix(paidAt, 0).UTC()
	}
	return record, nil
}

// Balances reads the owner's USDT and native TRX balances.
func (e *executor) Balances(ctx context.Context, owner model.Address) (model.Balances, error) {
	if e.cfg.USDTAddress == "" {
		return model.Balances{}, ErrNoContract
	}

	ownerWord, err := tron.EncodeAddress(owner)
	if err != nil {
		return model.Balances{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	result, err := e.client.Read(ctx, model.Address(e.cfg.USDTAddress), "balanceOf(address)", ownerWord)
	if err != nil {
		return model.Balances{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	token, err := result.Uint(0)
	if err != nil {
		return model.Balances{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	trx, err := e.client.TRXBalance(ctx, owner)
	if err != nil {
		return model.Balances{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	return model.Balances{Token: model.BaseUnits(token), TRX: trx}, nil
}
