package tron

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/tron/config"
)

const testPrivateKey = "0000000000000000000000000000000000000000000000000000000000000001"

func newTestClient(t *testing.T, nodeURL string) Client {
	t.Helper()
	client, err := NewClient(config.Config{
		NodeURL:    nodeURL,
		PrivateKey: testPrivateKey,
		FeeLimit:   100_000_000,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsBadKey(t *testing.T) {
	for _, bad := range []string{"", "zz", "abcd"} {
		_, err := NewClient(config.Config{NodeURL: "http://node", PrivateKey: bad})
		require.Error(t, err, "key %q", bad)
	}
}

func TestOwnerDerivation(t *testing.T) {
	client := newTestClient(t, "http://node")
	owner := client.Owner()
	require.Len(t, string(owner), 34)
	require.True(t, strings.HasPrefix(string(owner), "T"))

	// the derived address survives the codec round trip
	hexAddr, err := AddressToHex(owner)
	require.NoError(t, err)
	back, err := AddressFromHex(hexAddr)
	require.NoError(t, err)
	require.Equal(t, owner, back)
}

func TestRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wallet/triggerconstantcontract", r.URL.Path)

		var req triggerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, usdtBase58, req.ContractAddress)
		require.Equal(t, "balanceOf(address)", req.FunctionSelector)
		require.True(t, req.Visible)

		json.NewEncoder(w).Encode(constantAnswer{
			Result:         triggerResult{Result: true},
			ConstantResult: []string{EncodeUint(5)},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.Read(context.Background(), model.Address(usdtBase58), "balanceOf(address)", "")
	require.NoError(t, err)

	v, err := result.Uint(0)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)
}

func TestReadNodeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(constantAnswer{
			Result: triggerResult{Result: false, Code: "CONTRACT_VALIDATE_ERROR"},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Read(context.Background(), model.Address(usdtBase58), "balanceOf(address)", "")
	require.ErrorIs(t, err, ErrNodeRejected)
}

func TestWriteSignsAndBroadcasts(t *testing.T) {
	const txID = "f0e1d2c3"

	var broadcasted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wallet/triggersmartcontract":
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"result": true},
				"transaction": map[string]any{
					"txID":         txID,
					"raw_data_hex": "deadbeef",
					"raw_data":     map[string]any{"expiration": 1},
				},
			})
		case "/wallet/broadcasttransaction":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&broadcasted))
			json.NewEncoder(w).Encode(broadcastAnswer{Result: true})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	got, err := client.Write(context.Background(), model.Address(usdtBase58), "approve(address,uint256)", "", WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, txID, got)

	// the broadcast carries the node-built transaction plus one signature
	require.Equal(t, txID, broadcasted["txID"])
	require.Contains(t, broadcasted, "raw_data")
	signatures, ok := broadcasted["signature"].([]any)
	require.True(t, ok)
	require.Len(t, signatures, 1)
	require.Len(t, signatures[0].(string), 130) // 65 bytes hex
}

func TestWriteBroadcastRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wallet/triggersmartcontract":
			json.NewEncoder(w).Encode(map[string]any{
				"result":      map[string]any{"result": true},
				"transaction": map[string]any{"txID": "ab", "raw_data_hex": "00"},
			})
		case "/wallet/broadcasttransaction":
			json.NewEncoder(w).Encode(broadcastAnswer{Result: false, Code: "SIGERROR"})
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Write(context.Background(), model.Address(usdtBase58), "approve(address,uint256)", "", WriteOptions{})
	require.ErrorIs(t, err, ErrNodeRejected)
}

func TestEventsNoReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}")) // the node answers an empty object for an unknown tx
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Events(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrNoReceipt)
}

func TestEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(receiptAnswer{
			ID: "ab",
			Log: []Event{
				{Topics: []string{"t0", "t1"}, Data: "00"},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	events, err := client.Events(context.Background(), "ab")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, []string{"t0", "t1"}, events[0].Topics)
}

func TestTRXBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wallet/getaccount", r.URL.Path)
		json.NewEncoder(w).Encode(accountAnswer{Balance: 1_500_000})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	balance, err := client.TRXBalance(context.Background(), model.Address(usdtBase58))
	require.NoError(t, err)
	require.Equal(t, model.BaseUnits(1_500_000), balance)
}

func TestNodeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.TRXBalance(context.Background(), model.Address(usdtBase58))
	require.Error(t, err)
}
