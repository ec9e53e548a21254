package config

import "time"

type Config struct {
	ContractAddress string // invoice contract, the allowance spender
	USDTAddress     string // TRC-20 token contract

	// Approval settlement poll. The allowance is re-read until it covers
	// the invoice or the deadline passes.
	PollInterval time.Duration
	PollDeadline time.Duration
}
