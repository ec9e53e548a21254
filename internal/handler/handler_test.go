package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/paymi/internal/handler/config"
	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/payment"
	"github.com/iurnickita/paymi/internal/service"
)

type fakeService struct {
	updates    int
	record     model.InvoiceRecord
	detailsErr error
	payResult  payment.PayResult
	payErr     error
}

func (f *fakeService) HandleUpdate(_ context.Context, _ tgbotapi.Update) {
	f.updates++
}

func (f *fakeService) InvoiceDetails(_ context.Context, _ string) (model.InvoiceRecord, error) {
	return f.record, f.detailsErr
}

func (f *fakeService) PayInvoice(_ context.Context, _ string) (payment.PayResult, error) {
	return f.payResult, f.payErr
}

func newTestRouter(svc service.Service) http.Handler {
	cfg := config.Config{WebhookSecret: "hook-secret"}
	return newHandler(cfg, svc, zap.NewNop()).newRouter()
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader("{}"))
	r.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	// Rejection happens before any processing.
	require.Equal(t, 0, svc.updates)
}

func TestWebhookRejectsMissingSecret(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, 0, svc.updates)
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	body := `{"update_id":1,"message":{"message_id":2,"chat":{"id":3},"text":"hello"}}`
	r := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(body))
	r.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hook-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	require.Equal(t, 1, svc.updates)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader("{broken"))
	r.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hook-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 0, svc.updates)
}

func TestGetInvoice(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{record: model.InvoiceRecord{
		ID:         7,
		Freelancer: "TOwner",
		Amount:     1_500_000,
		Status:     model.InvoiceStatusUnpaid,
		CreatedAt:  createdAt,
	}}
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/invoice?token=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var response InvoiceJSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, int64(7), response.InvoiceID)
	require.Equal(t, "1.5", response.Amount)
	require.Equal(t, model.InvoiceStatusUnpaid, response.Status)
	require.Empty(t, response.PaidAt)
}

func TestGetInvoiceInvalidToken(t *testing.T) {
	svc := &fakeService{detailsErr: service.ErrInvalidToken}
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/invoice?token=bad", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestPostPay(t *testing.T) {
	svc := &fakeService{payResult: payment.PayResult{InvoiceID: 7, Approved: true, ApproveTx: "aaa", PayTx: "bbb"}}
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodPost, "/api/invoice/pay?token=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var response PayJSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, int64(7), response.InvoiceID)
	require.True(t, response.Approved)
	require.Equal(t, "bbb", response.PayTx)
}

func TestPostPayErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"in flight", payment.ErrPaymentInFlight, http.StatusConflict},
		{"already paid", payment.ErrAlreadyPaid, http.StatusConflict},
		{"approval timeout", payment.ErrApprovalTimeout, http.StatusGatewayTimeout},
		{"execution", payment.ErrExecution, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeService{payErr: tc.err})

			r := httptest.NewRequest(http.MethodPost, "/api/invoice/pay?token=abc", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			require.Equal(t, tc.want, w.Code)
		})
	}
}
