package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/paymi/internal/intent/config"
)

// Free-text intent classification, an external capability. Whatever goes
// wrong here (transport, model refusal, malformed JSON) the caller gets
// an UNKNOWN answer, never an error: classification is probabilistic
// guidance, not a dependency the chat flow may crash on.

const (
	IntentSetAddress    = "SET_ADDRESS"
	IntentGetAddress    = "GET_ADDRESS"
	IntentCreateInvoice = "CREATE_INVOICE"
	IntentListInvoices  = "LIST_INVOICES"
	IntentShowBalance   = "SHOW_BALANCE"
	IntentUnknown       = "UNKNOWN"
)

// Answer is the classifier's structured verdict for one message.
type Answer struct {
	Intent  string  `json:"intent"`
	Details Details `json:"details"`
}

type Details struct {
	Address          string `json:"address"`
	RecipientAddress string `json:"recipientAddress"`
	Amount           string `json:"amount"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) Answer
}

const defaultBaseURL = "https://generativelanguage.googleapis.com"

const classifierPrompt = `
You are an AI assistant helping users manage TRON blockchain invoices.
Analyze the user's message and classify the intent into one of these categories:

1. SET_ADDRESS - User wants to set or update their TRON wallet address
2. GET_ADDRESS - User wants to retrieve their current address or get guidance
3. CREATE_INVOICE - User wants to create an invoice with a recipient and amount
4. LIST_INVOICES - User wants to list their invoices
5. SHOW_BALANCE - User wants to see their USDT and TRX balance
6. UNKNOWN - Cannot determine the user's intent

Response format (JSON):
{
  "intent": "INTENT_CATEGORY",
  "details": {
    "address": "TRON_ADDRESS",
    "recipientAddress": "RECIPIENT_TRON_ADDRESS",
    "amount": "INVOICE_AMOUNT"
  }
}
`

type classifier struct {
	cfg  config.Config
	http *resty.Client
}

func NewClassifier(cfg config.Config) Classifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &classifier{cfg: cfg, http: resty.New()}
}

// Gemini generateContent JSON shapes, only the fields in use.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateAnswer struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *classifier) Classify(ctx context.Context, text string) Answer {
	unknown := Answer{Intent: IntentUnknown}

	body := generateRequest{Contents: []content{
		{Parts: []part{{Text: classifierPrompt + "\n\nUser Message: " + text}}},
	}}

	req := c.http.R().SetContext(ctx).SetBody(body)
	req.Method = http.MethodPost
	req.URL = fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	resp, err := req.Send()
	if err != nil || resp.StatusCode() != http.StatusOK {
		return unknown
	}

	var answer generateAnswer
	if err := json.Unmarshal(resp.Body(), &answer); err != nil {
		return unknown
	}
	if len(answer.Candidates) == 0 || len(answer.Candidates[0].Content.Parts) == 0 {
		return unknown
	}

	return Parse(answer.Candidates[0].Content.Parts[0].Text)
}

// Parse extracts the structured answer from raw model output, tolerating
// markdown code fences around the JSON. Anything unparseable or outside
// the fixed category set maps to UNKNOWN.
func Parse(raw string) Answer {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var answer Answer
	if err := json.Unmarshal([]byte(cleaned), &answer); err != nil {
		return Answer{Intent: IntentUnknown}
	}

	switch answer.Intent {
	case IntentSetAddress, IntentGetAddress, IntentCreateInvoice, IntentListInvoices, IntentShowBalance:
		return answer
	default:
		return Answer{Intent: IntentUnknown}
	}
}
