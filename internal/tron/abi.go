package tron

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/iurnickita/paymi/internal/model"
)

// Minimal ABI word codec for the two parameter shapes the invoice and
// token contracts use: address and uint256. Everything is hex-encoded
// 32-byte words, as /wallet/trigger* expects in the "parameter" field.

const wordHexLen = 64

var ErrBadResult = errors.New("malformed contract call result")

// EncodeAddress packs the 20-byte address body (prefix byte dropped)
// into one left-padded word.
func EncodeAddress(addr model.Address) (string, error) {
	hexAddr, err := AddressToHex(addr)
	if err != nil {
		return "", err
	}
	// hexAddr is 42 hex chars; drop the "41" prefix, pad to 64
	return strings.Repeat("0", 24) + hexAddr[2:], nil
}

// EncodeUint packs a non-negative integer into one word.
func EncodeUint(v int64) string {
	return fmt.Sprintf("%064x", uint64(v))
}

// Pack concatenates encoded words into the parameter hex string.
func Pack(words ...string) string {
	return strings.Join(words, "")
}

// Result is the constant_result hex blob of a contract read.
type Result string

func (r Result) word(i int) (string, error) {
	start := i * wordHexLen
	if len(r) < start+wordHexLen {
		return "", ErrBadResult
	}
	return string(r[start : start+wordHexLen]), nil
}

// Uint decodes word i as an integer. Values beyond int64 are rejected
// rather than truncated; nothing this contract emits gets near them.
func (r Result) Uint(i int) (int64, error) {
	w, err := r.word(i)
	if err != nil {
		return 0, err
	}
	v, ok := new(big.Int).SetString(w, 16)
	if !ok || !v.IsInt64() {
		return 0, ErrBadResult
	}
	return v.Int64(), nil
}

// Address decodes word i as a base58check display address.
func (r Result) Address(i int) (model.Address, error) {
	w, err := r.word(i)
	if err != nil {
		return "", err
	}
	return AddressFromHex("41" + w[24:])
}

// UintArray decodes a dynamic uint256[] return value
// (offset word, length word, then elements).
func (r Result) UintArray() ([]int64, error) {
	offset, err := r.Uint(0)
	if err != nil {
		return nil, err
	}
	if offset%32 != 0 {
		return nil, ErrBadResult
	}
	base := int(offset / 32)
	length, err := r.Uint(base)
	if err != nil {
		return nil, err
	}

	values := make([]int64, 0, length)
	for i := 0; i < int(length); i++ {
		v, err := r.Uint(base + 1 + i)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// EventTopic computes the topic-0 hash of an event signature,
// e.g. "InvoiceCreated(uint256,address,uint256)".
func EventTopic(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return hex.EncodeToString(h.Sum(nil))
}
