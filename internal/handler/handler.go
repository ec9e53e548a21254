package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/iurnickita/paymi/internal/handler/config"
	"github.com/iurnickita/paymi/internal/invoice"
	"github.com/iurnickita/paymi/internal/logger"
	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/money"
	"github.com/iurnickita/paymi/internal/payment"
	"github.com/iurnickita/paymi/internal/service"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

func Serve(cfg config.Config, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(cfg, service, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: router,
	}

	return srv.ListenAndServe()
}

type handler struct {
	cfg     config.Config
	service service.Service
	zaplog  *zap.Logger
}

func newHandler(cfg config.Config, service service.Service, zaplog *zap.Logger) *handler {
	return &handler{
		cfg:     cfg,
		service: service,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/telegram/webhook", logger.RequestLogMdlw(h.PostWebhook, h.zaplog))
	mux.HandleFunc("GET /api/invoice", logger.RequestLogMdlw(h.GetInvoice, h.zaplog))
	mux.HandleFunc("POST /api/invoice/pay", logger.RequestLogMdlw(h.PostPay, h.zaplog))

	return mux
}

// PostWebhook receives Telegram updates. A secret mismatch ends here:
// no command is resolved and no ledger call is made.
func (h *handler) PostWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(secretHeader) != h.cfg.WebhookSecret {
		h.zaplog.Warn("unauthorized webhook attempt")
		http.Error(w, "unauthorized", http.StatusForbidden)
		return
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.service.HandleUpdate(r.Context(), upd)

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type InvoiceJSONResponse struct {
	InvoiceID  int64  `json:"invoiceId"`
	Freelancer string `json:"freelancer"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	PaidAt     string `json:"paidAt,omitempty"`
}

func (h *handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.InvoiceDetails(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := InvoiceJSONResponse{
		InvoiceID:  record.ID,
		Freelancer: string(record.Freelancer),
		Amount:     money.Display(record.Amount),
		Status:     record.Status,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339),
	}
	if record.Status == model.InvoiceStatusPaid {
		response.PaidAt = record.PaidAt.Format(time.RFC3339)
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseJSON)
}

type PayJSONResponse struct {
	InvoiceID int64  `json:"invoiceId"`
	Approved  bool   `json:"approved"`
	ApproveTx string `json:"approveTx,omitempty"`
	PayTx     string `json:"payTx"`
}

func (h *handler) PostPay(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.PayInvoice(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	responseJSON, err := json.Marshal(PayJSONResponse{
		InvoiceID: result.InvoiceID,
		Approved:  result.Approved,
		ApproveTx: result.ApproveTx,
		PayTx:     result.PayTx,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseJSON)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		http.Error(w, "invalid token", http.StatusForbidden)
	case errors.Is(err, payment.ErrPaymentInFlight):
		http.Error(w, "payment in flight", http.StatusConflict)
	case errors.Is(err, payment.ErrAlreadyPaid):
		http.Error(w, "already paid", http.StatusConflict)
	case errors.Is(err, payment.ErrApprovalTimeout):
		http.Error(w, "approval timeout", http.StatusGatewayTimeout)
	case errors.Is(err, invoice.ErrNoContract):
		h.zaplog.Error("contract not configured", zap.Error(err))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, invoice.ErrExecution), errors.Is(err, payment.ErrExecution):
		http.Error(w, "ledger error", http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
