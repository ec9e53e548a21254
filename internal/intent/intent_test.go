package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/paymi/internal/intent/config"
)

func TestParse(t *testing.T) {
	answer := Parse(`{"intent":"CREATE_INVOICE","details":{"recipientAddress":"TXyz","amount":"500"}}`)
	require.Equal(t, IntentCreateInvoice, answer.Intent)
	require.Equal(t, "TXyz", answer.Details.RecipientAddress)
	require.Equal(t, "500", answer.Details.Amount)
}

func TestParseStripsFences(t *testing.T) {
	answer := Parse("```json\n{\"intent\":\"LIST_INVOICES\",\"details\":{}}\n```")
	require.Equal(t, IntentListInvoices, answer.Intent)

	answer = Parse("```\n{\"intent\":\"SHOW_BALANCE\",\"details\":{}}\n```")
	require.Equal(t, IntentShowBalance, answer.Intent)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"not json",
		`{"intent":"DELETE_EVERYTHING","details":{}}`, // outside the category set
		`{"details":{}}`,
	} {
		answer := Parse(raw)
		require.Equal(t, IntentUnknown, answer.Intent, "input %q", raw)
	}
}

func geminiAnswer(text string) any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
}

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		require.Equal(t, "key", r.URL.Query().Get("key"))

		json.NewEncoder(w).Encode(geminiAnswer(`{"intent":"SET_ADDRESS","details":{"address":"TAbc"}}`))
	}))
	defer srv.Close()

	c := NewClassifier(config.Config{BaseURL: srv.URL, APIKey: "key", Model: "test-model"})
	answer := c.Classify(context.Background(), "my address is TAbc")
	require.Equal(t, IntentSetAddress, answer.Intent)
	require.Equal(t, "TAbc", answer.Details.Address)
}

func TestClassifyFailuresMapToUnknown(t *testing.T) {
	// transport failure
	c := NewClassifier(config.Config{BaseURL: "http://127.0.0.1:0", APIKey: "key", Model: "m"})
	require.Equal(t, IntentUnknown, c.Classify(context.Background(), "hello").Intent)

	// upstream error status
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c = NewClassifier(config.Config{BaseURL: srv.URL, APIKey: "key", Model: "m"})
	require.Equal(t, IntentUnknown, c.Classify(context.Background(), "hello").Intent)

	// empty candidate list
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv2.Close()
	c = NewClassifier(config.Config{BaseURL: srv2.URL, APIKey: "key", Model: "m"})
	require.Equal(t, IntentUnknown, c.Classify(context.Background(), "hello").Intent)
}
