package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mintix/internal/shared/config"
)

const (
	testPayer     = "PayerWallet1111111111111111111111111111111"
	testTreasury  = "TreasuryWallet11111111111111111111111111111"
	testSignature = "5sig111111111111111111111111111111111111111111111111111111111111"
)

func testConfig(endpoints ...string) config.SolanaConfig {
	return config.SolanaConfig{
		Endpoints:      endpoints,
		Commitment:     "confirmed",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		ConfirmTimeout: 2 * time.Second,
		PollInterval:   10 * time.Millisecond,
		RequestTimeout: time.Second,
	}
}

// rpcHandler answers getSignatureStatuses and getTransaction from canned
// results keyed by method name.
func rpcHandler(t *testing.T, results map[string]interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %q", req.Method)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}
}

func confirmedStatus() map[string]interface{} {
	return map[string]interface{}{
		"value": []interface{}{
			map[string]interface{}{
				"slot":               100,
				"confirmations":      5,
				"confirmationStatus": "confirmed",
				"err":                nil,
			},
		},
	}
}

func transferTransaction(pre, post []uint64) map[string]interface{} {
	return map[string]interface{}{
		"meta": map[string]interface{}{
			"err":          nil,
			"preBalances":  pre,
			"postBalances": post,
		},
		"transaction": map[string]interface{}{
			"message": map[string]interface{}{
				"accountKeys": []string{testPayer, testTreasury},
			},
		},
	}
}

func TestClientRotatesOnRateLimit(t *testing.T) {
	var primaryHits int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&primaryHits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"getSignatureStatuses": confirmedStatus(),
	}))
	defer secondary.Close()

	client := NewClient(testConfig(primary.URL, secondary.URL))

	status, err := client.GetSignatureStatus(context.Background(), testSignature)
	if err != nil {
		t.Fatalf("expected failover to the second endpoint, got %v", err)
	}
	if status == nil || status.ConfirmationStatus != "confirmed" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if atomic.LoadInt32(&primaryHits) == 0 {
		t.Fatal("primary endpoint never tried")
	}
}

func TestClientAllEndpointsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	_, err := client.GetSignatureStatus(context.Background(), testSignature)
	if !errors.Is(err, ErrAllEndpointsFailed) {
		t.Fatalf("expected ErrAllEndpointsFailed, got %v", err)
	}
}

func TestWaitForConfirmationPollsUntilReached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		status := "processed"
		if n >= 3 {
			status = "confirmed"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]interface{}{
				"value": []interface{}{
					map[string]interface{}{
						"slot":               100,
						"confirmationStatus": status,
						"err":                nil,
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	if err := client.WaitForConfirmation(context.Background(), testSignature); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if atomic.LoadInt32(&calls) < 3 {
		t.Fatalf("expected repeated polls, got %d", calls)
	}
}

func TestWaitForConfirmationTimesOut(t *testing.T) {
	// The cluster never learns the signature.
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"getSignatureStatuses": map[string]interface{}{"value": []interface{}{nil}},
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ConfirmTimeout = 50 * time.Millisecond
	client := NewClient(cfg)

	err := client.WaitForConfirmation(context.Background(), testSignature)
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("expected ErrConfirmationTimeout, got %v", err)
	}
}

func TestWaitForConfirmationFailedTransaction(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"getSignatureStatuses": map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{
					"slot":               100,
					"confirmationStatus": "confirmed",
					"err":                map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
				},
			},
		},
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	err := client.WaitForConfirmation(context.Background(), testSignature)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
}

func TestVerifyPaymentAcceptsSufficientTransfer(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"getSignatureStatuses": confirmedStatus(),
		// Payer also paid the fee; the treasury delta is what matters.
		"getTransaction": transferTransaction(
			[]uint64{5_000_000_000, 1_000_000_000},
			[]uint64{3_999_995_000, 2_000_000_000},
		),
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	err := client.VerifyPayment(context.Background(), testSignature, testPayer, testTreasury, 1_000_000_000)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyPaymentRejectsShortTransfer(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"getSignatureStatuses": confirmedStatus(),
		"getTransaction": transferTransaction(
			[]uint64{5_000_000_000, 1_000_000_000},
			[]uint64{4_500_000_000, 1_500_000_000},
		),
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	err := client.VerifyPayment(context.Background(), testSignature, testPayer, testTreasury, 1_000_000_000)
	if !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}
}

func TestVerifyPaymentRejectsUnknownRecipient(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"getSignatureStatuses": confirmedStatus(),
		"getTransaction": transferTransaction(
			[]uint64{5_000_000_000, 1_000_000_000},
			[]uint64{4_000_000_000, 2_000_000_000},
		),
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	err := client.VerifyPayment(context.Background(), testSignature, testPayer, "SomeOtherWallet111111111111111111111111111", 1_000_000_000)
	if !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}
}
