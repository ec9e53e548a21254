package config

type Config struct {
	AppURL string // base URL of the invoice payment pages
}
