package resolver

import (
	"context"
	"strings"

	"github.com/iurnickita/paymi/internal/intent"
	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/money"
	"github.com/iurnickita/paymi/internal/session"
)

// Prompt texts the bot sends when it needs a structured reply. Tier 1
// below matches replies against these exact strings, so changing one
// invalidates replies to prompts already sitting in chat history.
const (
	CreateInvoicePrompt = "Reply with the recipient address and amount, separated by a space.\nExample: TXyz... 500"
	ListInvoicesPrompt  = "Reply with the TRON address to list invoices for."
)

// Resolver turns one inbound update into one Command. Three tiers, first
// match wins:
//
//	0: live per-chat session record (explicit, expiring state)
//	1: text of the message being replied to equals a known prompt
//	2: external free-text classification
//
// Explicit state outranks the classifier because it is unambiguous while
// classification is probabilistic. Tier 1 has no session behind it: the
// "state" is reconstructed from the prior message text alone, so it can
// be lost or hijacked if messages are edited, reordered or deleted. That
// limitation is inherent to the tier, kept deliberately as a fallback.
type Resolver interface {
	Resolve(ctx context.Context, chatID int64, text string, priorPromptText string) model.Command
}

type resolver struct {
	sessions   session.Store
	classifier intent.Classifier
}

func NewResolver(sessions session.Store, classifier intent.Classifier) Resolver {
	return &resolver{sessions: sessions, classifier: classifier}
}

func (r *resolver) Resolve(ctx context.Context, chatID int64, text string, priorPromptText string) model.Command {
	// tier 0: session record
	if rec, ok := r.sessions.Take(chatID); ok {
		switch rec.Awaiting {
		case session.AwaitingInvoiceFields:
			return parseInvoiceFields(text)
		case session.AwaitingListAddress:
			return parseListAddress(text)
		}
	}

	// tier 1: reply-to prompt text
	switch priorPromptText {
	case CreateInvoicePrompt:
		return parseInvoiceFields(text)
	case ListInvoicesPrompt:
		return parseListAddress(text)
	}

	// tier 2: external classifier
	return mapIntent(r.classifier.Classify(ctx, text))
}

// parseInvoiceFields expects "<recipient> <amount>".
func parseInvoiceFields(text string) model.Command {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return unknown(model.ReasonBadFields)
	}

	recipient, err := money.ValidateAddress(fields[0])
	if err != nil {
		return unknown(model.ReasonBadRecipient)
	}
	amount, err := money.ValidateAmount(fields[1])
	if err != nil {
		return unknown(model.ReasonBadAmount)
	}

	return model.Command{Kind: model.CommandCreateInvoice, Recipient: recipient, Amount: amount}
}

func parseListAddress(text string) model.Command {
	addr, err := money.ValidateAddress(text)
	if err != nil {
		return unknown(model.ReasonBadAddress)
	}
	return model.Command{Kind: model.CommandListInvoices, Address: addr}
}

// mapIntent maps a classifier answer onto a Command, propagating any
// extracted fields. Fields that are present but invalid yield Unknown;
// fields that are simply absent leave the command empty so the caller
// can prompt for them.
func mapIntent(answer intent.Answer) model.Command {
	switch answer.Intent {
	case intent.IntentSetAddress:
		if answer.Details.Address == "" {
			return model.Command{Kind: model.CommandSetAddress}
		}
		addr, err := money.ValidateAddress(answer.Details.Address)
		if err != nil {
			return unknown(model.ReasonBadAddress)
		}
		return model.Command{Kind: model.CommandSetAddress, Address: addr}

	case intent.IntentGetAddress:
		return model.Command{Kind: model.CommandGetAddress}

	case intent.IntentCreateInvoice:
		if answer.Details.RecipientAddress == "" || answer.Details.Amount == "" {
			return model.Command{Kind: model.CommandCreateInvoice}
		}
		recipient, err := money.ValidateAddress(answer.Details.RecipientAddress)
		if err != nil {
			return unknown(model.ReasonBadRecipient)
		}
		amount, err := money.ValidateAmount(answer.Details.Amount)
		if err != nil {
			return unknown(model.ReasonBadAmount)
		}
		return model.Command{Kind: model.CommandCreateInvoice, Recipient: recipient, Amount: amount}

	case intent.IntentListInvoices:
		return model.Command{Kind: model.CommandListInvoices}

	case intent.IntentShowBalance:
		return model.Command{Kind: model.CommandShowBalance}

	default:
		return unknown(model.ReasonNoIntent)
	}
}

func unknown(reason string) model.Command {
	return model.Command{Kind: model.CommandUnknown, Reason: reason}
}
