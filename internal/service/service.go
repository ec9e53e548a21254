package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/iurnickita/paymi/internal/format"
	"github.com/iurnickita/paymi/internal/invoice"
	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/money"
	"github.com/iurnickita/paymi/internal/payment"
	"github.com/iurnickita/paymi/internal/resolver"
	"github.com/iurnickita/paymi/internal/service/config"
	"github.com/iurnickita/paymi/internal/session"
	"github.com/iurnickita/paymi/internal/store"
	"github.com/iurnickita/paymi/internal/telegram"
	"github.com/iurnickita/paymi/internal/token"
)

// Service wires one inbound update through resolve -> execute -> format
// -> send, and backs the invoice-page endpoints.
type Service interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
	InvoiceDetails(ctx context.Context, tokenString string) (model.InvoiceRecord, error)
	PayInvoice(ctx context.Context, tokenString string) (payment.PayResult, error)
}

var ErrInvalidToken = token.ErrInvalidToken

type service struct {
	cfg      config.Config
	resolver resolver.Resolver
	invoices invoice.Executor
	payments payment.Coordinator
	store    store.Store
	sessions session.Store
	sender   telegram.Sender
	issuer   token.Issuer
	balances money.BalanceReader
	zaplog   *zap.Logger

	mutex     sync.Mutex
	busyChats map[int64]bool
}

func NewService(
	cfg config.Config,
	res resolver.Resolver,
	invoices invoice.Executor,
	payments payment.Coordinator,
	st store.Store,
	sessions session.Store,
	sender telegram.Sender,
	issuer token.Issuer,
	balances money.BalanceReader,
	zaplog *zap.Logger,
) Service {
	return &service{
		cfg:       cfg,
		resolver:  res,
		invoices:  invoices,
		payments:  payments,
		store:     st,
		sessions:  sessions,
		sender:    sender,
		issuer:    issuer,
		balances:  balances,
		zaplog:    zaplog,
		busyChats: make(map[int64]bool),
	}
}

// HandleUpdate processes one update as an independent unit of work. Each
// chat runs one command at a time: a concurrent second command gets a
// busy reply instead of racing the first (double-submitting a create
// must not produce two invoices).
func (s *service) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		if err := s.sender.AnswerCallback(upd.CallbackQuery.ID); err != nil {
			s.zaplog.Warn("answer callback", zap.Error(err))
		}
		return
	}
	// From is nil for channel and anonymous-admin messages; there is no
	// user to resolve commands for, so they are skipped like empty text.
	if upd.Message == nil || upd.Message.Text == "" || upd.Message.From == nil {
		return
	}

	// outermost boundary: nothing below may crash the webhook
	var chatID int64
	defer func() {
		if r := recover(); r != nil {
			s.zaplog.Error("panic while handling update", zap.Int64("chat", chatID), zap.Any("panic", r))
			if chatID != 0 {
				s.send(chatID, format.Error(errors.New("unexpected")))
			}
		}
	}()

	chatID = upd.Message.Chat.ID
	userID := upd.Message.From.ID

	if !s.acquire(chatID) {
		s.send(chatID, format.Busy())
		return
	}
	defer s.release(chatID)

	var priorPrompt string
	if upd.Message.ReplyToMessage != nil {
		priorPrompt = upd.Message.ReplyToMessage.Text
	}

	cmd := s.resolver.Resolve(ctx, chatID, upd.Message.Text, priorPrompt)
	s.zaplog.Info("resolved command",
		zap.Int64("chat", chatID),
		zap.String("kind", string(cmd.Kind)),
	)

	switch cmd.Kind {
	case model.CommandSetAddress:
		s.handleSetAddress(ctx, chatID, userID, cmd)
	case model.CommandGetAddress:
		s.handleGetAddress(ctx, chatID, userID)
	case model.CommandCreateInvoice:
		s.handleCreateInvoice(ctx, chatID, userID, cmd)
	case model.CommandListInvoices:
		s.handleListInvoices(ctx, chatID, userID, cmd)
	case model.CommandShowBalance:
		s.handleShowBalance(ctx, chatID, userID)
	default:
		s.send(chatID, format.Unknown(cmd.Reason, s.savedAddress(ctx, userID)))
	}
}

func (s *service) handleSetAddress(ctx context.Context, chatID int64, userID int64, cmd model.Command) {
	if cmd.Address == "" {
		s.send(chatID, format.AddressNotExtracted())
		return
	}

	if err := s.store.UserAddressSet(ctx, userID, cmd.Address); err != nil {
		s.zaplog.Error("save address", zap.Error(err))
		s.send(chatID, format.AddressSaveFailed())
		return
	}

	advice := money.Advise(ctx, s.balances, cmd.Address)
	s.send(chatID, format.AddressSet(cmd.Address, advice))
}

func (s *service) handleGetAddress(ctx context.Context, chatID int64, userID int64) {
	s.send(chatID, format.Welcome(s.savedAddress(ctx, userID)))
}

func (s *service) handleCreateInvoice(ctx context.Context, chatID int64, userID int64, cmd model.Command) {
	if s.savedAddress(ctx, userID) == "" {
		s.send(chatID, format.NeedAddressFirst())
		return
	}

	// fields missing: open a session and prompt for a structured reply
	if cmd.Recipient == "" {
		s.sessions.Begin(chatID, session.AwaitingInvoiceFields)
		s.prompt(chatID, resolver.CreateInvoicePrompt)
		return
	}

	result, err := s.invoices.Create(ctx, cmd.Recipient, cmd.Amount)
	if err != nil {
		s.logExecErr("create invoice", chatID, err)
		s.send(chatID, format.Error(err))
		return
	}

	s.send(chatID, format.InvoiceCreated(result, cmd.Recipient, cmd.Amount, s.invoiceLink(result.InvoiceID)))
}

func (s *service) handleListInvoices(ctx context.Context, chatID int64, userID int64, cmd model.Command) {
	owner := cmd.Address
	if owner == "" {
		owner = s.savedAddress(ctx, userID)
	}
	if owner == "" {
		s.sessions.Begin(chatID, session.AwaitingListAddress)
		s.prompt(chatID, resolver.ListInvoicesPrompt)
		return
	}

	records, err := s.invoices.List(ctx, owner)
	if err != nil {
		s.logExecErr("list invoices", chatID, err)
		s.send(chatID, format.Error(err))
		return
	}

	s.send(chatID, format.InvoiceList(owner, records, s.invoiceLink))
}

func (s *service) handleShowBalance(ctx context.Context, chatID int64, userID int64) {
	owner := s.savedAddress(ctx, userID)
	if owner == "" {
		s.send(chatID, format.NeedAddressFirst())
		return
	}

	balances, err := s.invoices.Balances(ctx, owner)
	if err != nil {
		s.logExecErr("show balance", chatID, err)
		s.send(chatID, format.Error(err))
		return
	}

	s.send(chatID, format.Balances(balances))
}

// Invoice-page endpoints. Both are reached only through a signed link
// token, which binds the request to one invoice id.

func (s *service) InvoiceDetails(ctx context.Context, tokenString string) (model.InvoiceRecord, error) {
	id, err := s.issuer.Verify(tokenString)
	if err != nil {
		return model.InvoiceRecord{}, err
	}
	return s.invoices.Get(ctx, id)
}

func (s *service) PayInvoice(ctx context.Context, tokenString string) (payment.PayResult, error) {
	id, err := s.issuer.Verify(tokenString)
	if err != nil {
		return payment.PayResult{}, err
	}
	return s.payments.Pay(ctx, id)
}

func (s *service) savedAddress(ctx context.Context, userID int64) model.Address {
	addr, err := s.store.UserAddressGet(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNoRows) {
			s.zaplog.Error("read saved address", zap.Error(err))
		}
		return ""
	}
	return addr
}

func (s *service) invoiceLink(id int64) string {
	tok, err := s.issuer.Issue(id)
	if err != nil {
		// the bare page still resolves the invoice, just without a token
		s.zaplog.Error("issue invoice token", zap.Error(err))
		return fmt.Sprintf("%s/invoice/%d", s.cfg.AppURL, id)
	}
	return fmt.Sprintf("%s/invoice/%d?token=%s", s.cfg.AppURL, id, tok)
}

func (s *service) logExecErr(op string, chatID int64, err error) {
	if errors.Is(err, invoice.ErrNoContract) {
		// server fault, not a user mistake
		s.zaplog.Error(op, zap.Int64("chat", chatID), zap.Error(err))
		return
	}
	s.zaplog.Warn(op, zap.Int64("chat", chatID), zap.Error(err))
}

func (s *service) send(chatID int64, text string) {
	if err := s.sender.SendMessage(chatID, text); err != nil {
		s.zaplog.Error("send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (s *service) prompt(chatID int64, text string) {
	if err := s.sender.SendPrompt(chatID, text); err != nil {
		s.zaplog.Error("send prompt", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (s *service) acquire(chatID int64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.busyChats[chatID] {
		return false
	}
	s.busyChats[chatID] = true
	return true
}

func (s *service) release(chatID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.busyChats, chatID)
}
