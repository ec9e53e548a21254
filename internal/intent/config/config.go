package config

type Config struct {
	BaseURL string // defaults to the public Gemini endpoint
	APIKey  string
	Model   string
}
