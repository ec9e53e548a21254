package tron

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/iurnickita/paymi/internal/model"
)

// TRON address wire forms: base58check for display ("T...", 34 chars),
// 21-byte hex with a 0x41 prefix on the node API.

const addressPrefixByte = 0x41

var ErrBadAddress = errors.New("malformed tron address")

// AddressToHex decodes a base58check display address into its 21-byte
// hex form.
func AddressToHex(addr model.Address) (string, error) {
	raw, err := base58.Decode(string(addr))
	if err != nil {
		return "", ErrBadAddress
	}
	if len(raw) != 25 || raw[0] != addressPrefixByte {
		return "", ErrBadAddress
	}
	payload, check := raw[:21], raw[21:]
	if !bytes.Equal(check, checksum(payload)) {
		return "", ErrBadAddress
	}
	return hex.EncodeToString(payload), nil
}

// AddressFromHex encodes a 21-byte hex node-form address back to base58check.
func AddressFromHex(s string) (model.Address, error) {
	payload, err := hex.DecodeString(s)
	if err != nil {
		return "", ErrBadAddress
	}
	if len(payload) != 21 || payload[0] != addressPrefixByte {
		return "", ErrBadAddress
	}
	return model.Address(base58.Encode(append(payload, checksum(payload)...))), nil
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// addressFromKey derives the account address of a private key:
// 0x41 + keccak256(uncompressed pubkey body)[12:].
func addressFromKey(key *secp256k1.PrivateKey) model.Address {
	pub := key.PubKey().SerializeUncompressed()[1:]

	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	digest := h.Sum(nil)

	payload := append([]byte{addressPrefixByte}, digest[12:]...)
	return model.Address(base58.Encode(append(payload, checksum(payload)...)))
}
