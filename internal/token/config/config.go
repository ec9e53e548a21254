package config

import "time"

type Config struct {
	Secret string
	TTL    time.Duration
}
