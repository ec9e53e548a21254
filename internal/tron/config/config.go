package config

type Config struct {
	NodeURL    string // full node HTTP endpoint
	PrivateKey string // hex, signs all writes
	FeeLimit   int64  // sun, ceiling for every write
}
