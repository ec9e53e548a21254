package config

type Config struct {
	BotToken string
}
