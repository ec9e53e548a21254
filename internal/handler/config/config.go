package config

type Config struct {
	RunAddress    string
	WebhookSecret string
}
