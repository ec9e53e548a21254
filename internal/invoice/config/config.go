package config

type Config struct {
	ContractAddress string // invoice contract, required for every ledger-touching command
	USDTAddress     string // TRC-20 token contract
}
