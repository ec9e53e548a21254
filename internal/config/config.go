package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	handlerConfig "github.com/iurnickita/paymi/internal/handler/config"
	intentConfig "github.com/iurnickita/paymi/internal/intent/config"
	invoiceConfig "github.com/iurnickita/paymi/internal/invoice/config"
	loggerConfig "github.com/iurnickita/paymi/internal/logger/config"
	paymentConfig "github.com/iurnickita/paymi/internal/payment/config"
	serviceConfig "github.com/iurnickita/paymi/internal/service/config"
	storeConfig "github.com/iurnickita/paymi/internal/store/config"
	telegramConfig "github.com/iurnickita/paymi/internal/telegram/config"
	tokenConfig "github.com/iurnickita/paymi/internal/token/config"
	tronConfig "github.com/iurnickita/paymi/internal/tron/config"
)

type Config struct {
	Handler  handlerConfig.Config
	Service  serviceConfig.Config
	Store    storeConfig.Config
	Logger   loggerConfig.Config
	Telegram telegramConfig.Config
	Tron     tronConfig.Config
	Invoice  invoiceConfig.Config
	Payment  paymentConfig.Config
	Intent   intentConfig.Config
	Token    tokenConfig.Config
}

const defaultFeeLimit = 100_000_000 // sun

// GetConfig reads the environment (optionally seeded from a .env file).
// The contract addresses are deliberately not required here: their
// absence is a per-call configuration error, not a boot failure.
func GetConfig() (Config, error) {
	_ = godotenv.Load()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	nodeURL := os.Getenv("TRON_FULL_NODE_URL")
	if nodeURL == "" {
		return Config{}, errors.New("TRON_FULL_NODE_URL is required")
	}
	privateKey := os.Getenv("TRON_PRIVATE_KEY")
	if privateKey == "" {
		return Config{}, errors.New("TRON_PRIVATE_KEY is required")
	}
	tokenSecret := os.Getenv("TOKEN_SECRET")
	if tokenSecret == "" {
		return Config{}, errors.New("TOKEN_SECRET is required")
	}

	feeLimit := int64(defaultFeeLimit)
	if v := os.Getenv("FEE_LIMIT"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, errors.New("FEE_LIMIT must be an integer")
		}
		feeLimit = parsed
	}

	contract := os.Getenv("CONTRACT_ADDRESS")
	usdt := os.Getenv("USDT_CONTRACT_ADDRESS")

	return Config{
		Handler: handlerConfig.Config{
			RunAddress:    envOr("RUN_ADDRESS", ":8080"),
			WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		},
		Service: serviceConfig.Config{
			AppURL: envOr("APP_URL", "http://localhost:8080"),
		},
		Store:    storeConfig.Config{DBDsn: dsn},
		Logger:   loggerConfig.Config{LogLevel: envOr("LOG_LEVEL", "info")},
		Telegram: telegramConfig.Config{BotToken: botToken},
		Tron: tronConfig.Config{
			NodeURL:    nodeURL,
			PrivateKey: privateKey,
			FeeLimit:   feeLimit,
		},
		Invoice: invoiceConfig.Config{
			ContractAddress: contract,
			USDTAddress:     usdt,
		},
		Payment: paymentConfig.Config{
			ContractAddress: contract,
			USDTAddress:     usdt,
		},
		Intent: intentConfig.Config{
			BaseURL: os.Getenv("GEMINI_BASE_URL"),
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Token: tokenConfig.Config{Secret: tokenSecret},
	}, nil
}

func envOr(name string, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
