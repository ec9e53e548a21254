package main

import (
	"log"

	"github.com/iurnickita/paymi/internal/config"
	"github.com/iurnickita/paymi/internal/handler"
	"github.com/iurnickita/paymi/internal/intent"
	"github.com/iurnickita/paymi/internal/invoice"
	"github.com/iurnickita/paymi/internal/logger"
	"github.com/iurnickita/paymi/internal/payment"
	"github.com/iurnickita/paymi/internal/resolver"
	"github.com/iurnickita/paymi/internal/service"
	"github.com/iurnickita/paymi/internal/session"
	"github.com/iurnickita/paymi/internal/store"
	"github.com/iurnickita/paymi/internal/telegram"
	"github.com/iurnickita/paymi/internal/token"
	"github.com/iurnickita/paymi/internal/tron"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}

	client, err := tron.NewClient(cfg.Tron)
	if err != nil {
		return err
	}

	sender, err := telegram.NewSender(cfg.Telegram)
	if err != nil {
		return err
	}

	sessions := session.NewStore()
	classifier := intent.NewClassifier(cfg.Intent)
	issuer := token.NewIssuer(cfg.Token)

	invoices := invoice.NewExecutor(cfg.Invoice, client)
	payments := payment.NewCoordinator(cfg.Payment, client, invoices, store)
	res := resolver.NewResolver(sessions, classifier)

	svc := service.NewService(cfg.Service, res, invoices, payments, store, sessions, sender, issuer, client, zaplog)

	return handler.Serve(cfg.Handler, svc, zaplog)
}
