package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iurnickita/paymi/internal/invoice"
	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/money"
	"github.com/iurnickita/paymi/internal/payment"
)

// Rendering of every domain result and error kind into user-facing text.
// Pure functions, no collaborator access. Internal error text never
// reaches the user; each kind has its own message.

const timeLayout = "2006-01-02 15:04 UTC"

func Welcome(addr model.Address) string {
	var b strings.Builder
	b.WriteString("Hi there! Welcome to Paymi, your friendly assistant for managing USDT invoices on the TRON blockchain.\n\n")

	if addr == "" {
		b.WriteString("❌ You haven't set your TRON address yet. Please set it up to get started.\n\n")
		b.WriteString("To set your address, please use this command: 'My address is TXyz...'\n")
		b.WriteString("⚠️ Please verify your address carefully to avoid any financial loss.")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("ℹ️ Your TRON Address: %s\n\n", addr))
	b.WriteString("Here's what you can do:\n")
	b.WriteString("- Create a USDT Invoice: 'Create invoice for TRecipient 500 USDT'\n")
	b.WriteString("- List your USDT Invoices: 'List my invoices'\n")
	b.WriteString("- Show your Balance: 'Show my balance'\n")
	b.WriteString("- Update your Address: 'My address is TNewAddress'")
	return b.String()
}

func AddressSet(addr model.Address, advice string) string {
	text := fmt.Sprintf("✅ Address set to: %s", addr)
	switch advice {
	case money.AdviceFunded:
		return text + "\n✅ Valid TRON address with existing balance."
	case money.AdviceUnfunded:
		return text + "\n⚠️ Valid address, but no TRX balance detected."
	default:
		return text + "\n⚠️ Could not check the address on chain right now."
	}
}

func NeedAddressFirst() string {
	return "❌ You need to set your TRON address first!\nUse 'My address is TXyz...'"
}

func AddressNotExtracted() string {
	return "❌ Could not extract a valid TRON address."
}

func AddressSaveFailed() string {
	return "❌ Failed to update address. Please try again."
}

func InvoiceCreated(result invoice.CreateResult, recipient model.Address, amount model.BaseUnits, link string) string {
	var b strings.Builder
	b.WriteString("✅ Invoice Created Successfully!\n\n")
	b.WriteString(fmt.Sprintf("Transaction Hash: %s\n", result.TxHash))
	b.WriteString(fmt.Sprintf("Recipient: %s\n", recipient))
	b.WriteString(fmt.Sprintf("Amount: %s USDT\n\n", money.Display(amount)))
	b.WriteString(fmt.Sprintf("Invoice Link: %s\n\n", link))
	b.WriteString("Track your invoice on TRON blockchain.")
	return b.String()
}

// InvoiceList renders the detail block per invoice, in id order.
// linkFor builds the payment-page link for one invoice.
func InvoiceList(owner model.Address, records []model.InvoiceRecord, linkFor func(id int64) string) string {
	if len(records) == 0 {
		return "No invoices found."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 Invoices for %s:\n\n", owner))
	for _, record := range records {
		status := "⏳ Unpaid"
		paidAt := "Not paid"
		if record.Status == model.InvoiceStatusPaid {
			status = "✅ Paid"
			paidAt = record.PaidAt.Format(timeLayout)
		}

		b.WriteString(fmt.Sprintf("Invoice #%d:\n", record.ID))
		b.WriteString(fmt.Sprintf("Freelancer: %s\n", record.Freelancer))
		b.WriteString(fmt.Sprintf("Amount: %s USDT\n", money.Display(record.Amount)))
		b.WriteString(fmt.Sprintf("Status: %s\n", status))
		b.WriteString(fmt.Sprintf("Created: %s\n", record.CreatedAt.Format(timeLayout)))
		b.WriteString(fmt.Sprintf("Paid At: %s\n", paidAt))
		b.WriteString(fmt.Sprintf("Invoice Link: %s\n\n", linkFor(record.ID)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func Balances(b model.Balances) string {
	return fmt.Sprintf("💰 Your balances:\nUSDT: %s\nTRX: %s",
		money.Display(b.Token),
		money.Display(b.TRX))
}

func PaymentDone(result payment.PayResult) string {
	if result.Approved {
		return fmt.Sprintf("✅ Invoice #%d paid.\nApproval: %s\nPayment: %s",
			result.InvoiceID, result.ApproveTx, result.PayTx)
	}
	return fmt.Sprintf("✅ Invoice #%d paid.\nPayment: %s", result.InvoiceID, result.PayTx)
}

func Busy() string {
	return "⏳ I'm still working on your previous request. Please wait a moment."
}

// Unknown renders a command the resolver could not make sense of.
// Validation reasons get their own message; anything else falls back to
// the welcome guidance, tailored to whether an address is on file.
func Unknown(reason string, savedAddr model.Address) string {
	switch reason {
	case model.ReasonBadRecipient:
		return "❌ The recipient address is not a valid TRON address."
	case model.ReasonBadAmount:
		return Error(money.ErrInvalidAmount)
	case model.ReasonBadAddress:
		return Error(money.ErrInvalidAddress)
	case model.ReasonBadFields:
		return "❌ Invalid input. Please provide a valid TRON address and amount."
	default:
		return Welcome(savedAddr)
	}
}

// Error maps every error kind this system produces to its own
// user-facing message.
func Error(err error) string {
	switch {
	case errors.Is(err, money.ErrInvalidAddress):
		return "❌ Invalid TRON address format. Address should:\n- Start with 'T'\n- Be 34 characters long\nExample: TXyz123..."
	case errors.Is(err, money.ErrTooManyDigits):
		return "❌ Amounts support at most 6 decimal places."
	case errors.Is(err, money.ErrInvalidAmount):
		return "❌ Invalid amount. Please provide a positive number, e.g. 500 or 0.5."
	case errors.Is(err, invoice.ErrNoContract):
		return "❌ The service is not fully configured yet. Please try again later."
	case errors.Is(err, payment.ErrPaymentInFlight):
		return "⏳ A payment for this invoice is already in progress."
	case errors.Is(err, payment.ErrAlreadyPaid):
		return "✅ This invoice is already paid."
	case errors.Is(err, payment.ErrApprovalTimeout):
		return "⌛ The spending approval did not settle in time. No payment was made, please try again."
	case errors.Is(err, payment.ErrExecution):
		return "❌ Sorry, the payment could not be completed. Please try again."
	case errors.Is(err, invoice.ErrExecution):
		return "❌ Sorry, there was an error talking to the TRON network. Please try again."
	default:
		return "Sorry, I encountered an error processing your request."
	}
}
