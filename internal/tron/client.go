package tron

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/tron/config"
)

// Client is the ledger capability consumed by the invoice executor and
// the payment coordinator: constant reads, signed writes, receipt events
// and the native balance read. One signing identity per client.
type Client interface {
	Read(ctx context.Context, contract model.Address, selector string, paramHex string) (Result, error)
	Write(ctx context.Context, contract model.Address, selector string, paramHex string, opt WriteOptions) (string, error)
	Events(ctx context.Context, txID string) ([]Event, error)
	TRXBalance(ctx context.Context, addr model.Address) (model.BaseUnits, error)
	Owner() model.Address
}

type WriteOptions struct {
	FeeLimit  int64
	CallValue int64
}

// Event is one log entry from a transaction receipt.
type Event struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

var (
	ErrNodeRejected = errors.New("node rejected the call")
	ErrNoReceipt    = errors.New("transaction receipt not available yet")
)

type client struct {
	cfg   config.Config
	http  *resty.Client
	key   *secp256k1.PrivateKey
	owner model.Address
}

func NewClient(cfg config.Config) (Client, error) {
	raw, err := hex.DecodeString(cfg.PrivateKey)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("tron: private key must be 32 hex-encoded bytes")
	}
	key := secp256k1.PrivKeyFromBytes(raw)

	return &client{
		cfg:   cfg,
		http:  resty.New(),
		key:   key,
		owner: addressFromKey(key),
	}, nil
}

func (c *client) Owner() model.Address {
	return c.owner
}

// JSON shapes of the node endpoints in use

type triggerRequest struct {
	OwnerAddress     string `json:"owner_address"`
	ContractAddress  string `json:"contract_address"`
	FunctionSelector string `json:"function_selector"`
	Parameter        string `json:"parameter"`
	FeeLimit         int64  `json:"fee_limit,omitempty"`
	CallValue        int64  `json:"call_value"`
	Visible          bool   `json:"visible"`
}

type triggerResult struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type constantAnswer struct {
	Result         triggerResult `json:"result"`
	ConstantResult []string      `json:"constant_result"`
}

type triggerAnswer struct {
	Result      triggerResult   `json:"result"`
	Transaction json.RawMessage `json:"transaction"`
}

type transactionFields struct {
	TxID       string `json:"txID"`
	RawDataHex string `json:"raw_data_hex"`
}

type broadcastAnswer struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type receiptAnswer struct {
	ID  string  `json:"id"`
	Log []Event `json:"log"`
}

type accountAnswer struct {
	Balance int64 `json:"balance"`
}

func (c *client) Read(ctx context.Context, contract model.Address, selector string, paramHex string) (Result, error) {
	body := triggerRequest{
		OwnerAddress:     string(c.owner),
		ContractAddress:  string(contract),
		FunctionSelector: selector,
		Parameter:        paramHex,
		Visible:          true,
	}

	var answer constantAnswer
	if err := c.post(ctx, "/wallet/triggerconstantcontract", body, &answer); err != nil {
		return "", err
	}
	if !answer.Result.Result {
		return "", fmt.Errorf("%w: %s %s", ErrNodeRejected, answer.Result.Code, answer.Result.Message)
	}
	if len(answer.ConstantResult) == 0 {
		return "", ErrBadResult
	}
	return Result(answer.ConstantResult[0]), nil
}

func (c *client) Write(ctx context.Context, contract model.Address, selector string, paramHex string, opt WriteOptions) (string, error) {
	feeLimit := opt.FeeLimit
	if feeLimit == 0 {
		feeLimit = c.cfg.FeeLimit
	}
	body := triggerRequest{
		OwnerAddress:     string(c.owner),
		ContractAddress:  string(contract),
		FunctionSelector: selector,
		Parameter:        paramHex,
		FeeLimit:         feeLimit,
		CallValue:        opt.CallValue,
		Visible:          true,
	}

	var answer triggerAnswer
	if err := c.post(ctx, "/wallet/triggersmartcontract", body, &answer); err != nil {
		return "", err
	}
	if !answer.Result.Result {
		return "", fmt.Errorf("%w: %s %s", ErrNodeRejected, answer.Result.Code, answer.Result.Message)
	}

	var fields transactionFields
	if err := json.Unmarshal(answer.Transaction, &fields); err != nil {
		return "", err
	}
	signature, err := c.sign(fields.RawDataHex)
	if err != nil {
		return "", err
	}

	// reattach the node-built transaction untouched, plus our signature
	var tx map[string]any
	if err := json.Unmarshal(answer.Transaction, &tx); err != nil {
		return "", err
	}
	tx["signature"] = []string{signature}

	var bcast broadcastAnswer
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &bcast); err != nil {
		return "", err
	}
	if !bcast.Result {
		return "", fmt.Errorf("%w: %s %s", ErrNodeRejected, bcast.Code, bcast.Message)
	}

	return fields.TxID, nil
}

// sign produces the 65-byte [R||S||V] signature over sha256(raw_data),
// which is also the transaction id.
func (c *client) sign(rawDataHex string) (string, error) {
	rawData, err := hex.DecodeString(rawDataHex)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(rawData)

	compact := ecdsa.SignCompact(c.key, digest[:], false)
	// SignCompact returns [V+27||R||S]; the node wants [R||S||V]
	signature := append(compact[1:], compact[0]-27)
	return hex.EncodeToString(signature), nil
}

func (c *client) Events(ctx context.Context, txID string) ([]Event, error) {
	var answer receiptAnswer
	err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]string{"value": txID}, &answer)
	if err != nil {
		return nil, err
	}
	if answer.ID == "" {
		// not indexed yet; an empty object is the node's "unknown tx"
		return nil, ErrNoReceipt
	}
	return answer.Log, nil
}

func (c *client) TRXBalance(ctx context.Context, addr model.Address) (model.BaseUnits, error) {
	var answer accountAnswer
	body := map[string]any{"address": string(addr), "visible": true}
	if err := c.post(ctx, "/wallet/getaccount", body, &answer); err != nil {
		return 0, err
	}
	// an account the chain has never seen comes back empty, balance 0
	return model.BaseUnits(answer.Balance), nil
}

func (c *client) post(ctx context.Context, path string, body any, out any) error {
	req := c.http.R().SetContext(ctx).SetBody(body)
	req.Method = http.MethodPost
	req.URL = c.cfg.NodeURL + path
	resp, err := req.Send()
	if err != nil {
		return err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return json.Unmarshal(resp.Body(), out)
	default:
		return fmt.Errorf("tron node status: %d", resp.StatusCode())
	}
}
