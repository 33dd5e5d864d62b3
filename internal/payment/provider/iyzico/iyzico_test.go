package iyzico

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukkan/commerce-core/internal/payment/domain"
	"github.com/dukkan/commerce-core/internal/payment/provider"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(testLogger(), Config{APIKey: "api-key", SecretKey: "secret-key", BaseURL: srv.URL})
}

func paymentRequest() provider.Request {
	return provider.Request{
		PaymentReference: "PAY-1-ABCDEF01",
		Amount:           decimal.RequireFromString("149.90"),
		Currency:         "TRY",
		Method:           domain.MethodCreditCard,
		CustomerEmail:    "buyer@example.com",
		CustomerName:     "Ayse Yilmaz",
		Card: &provider.CardDetails{
			HolderName:  "Ayse Yilmaz",
			Number:      "5528790000000008",
			ExpireMonth: "12",
			ExpireYear:  "2030",
			CVC:         "123",
		},
		BillingAddress: &provider.BillingAddress{
			ContactName: "Ayse Yilmaz",
			City:        "Istanbul",
			Country:     "Turkey",
			Address:     "Test Mah. 1",
			ZipCode:     "34000",
		},
		IPAddress: "10.0.0.1",
	}
}

func TestProcessPaymentSuccess(t *testing.T) {
	var gotPath string
	var gotBody createPaymentRequest
	adapter := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		// IYZWS v1: base64(sha1(apiKey + rnd + secretKey + body))
		rnd := r.Header.Get("x-iyzi-rnd")
		h := sha1.New()
		h.Write([]byte("api-key"))
		h.Write([]byte(rnd))
		h.Write([]byte("secret-key"))
		h.Write(raw)
		want := "IYZWS api-key:" + base64.StdEncoding.EncodeToString(h.Sum(nil))
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("authorization = %q, want %q", got, want)
		}

		_ = json.NewEncoder(w).Encode(apiResponse{
			Status:           "success",
			PaymentID:        "12345",
			ItemTransactions: []itemTransaction{{PaymentTransactionID: "tx-item-1"}},
		})
	})

	resp, err := adapter.ProcessPayment(context.Background(), paymentRequest())
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if gotPath != "/payment/auth" {
		t.Errorf("path = %s, want /payment/auth", gotPath)
	}
	if gotBody.Price != "149.90" || gotBody.PaidPrice != "149.90" {
		t.Errorf("price = %s/%s, want 149.90", gotBody.Price, gotBody.PaidPrice)
	}
	if gotBody.ConversationID != "PAY-1-ABCDEF01" {
		t.Errorf("conversation id = %s, want the payment reference", gotBody.ConversationID)
	}
	if gotBody.Buyer.Name != "Ayse" || gotBody.Buyer.Surname != "Yilmaz" {
		t.Errorf("buyer = %s %s, want Ayse Yilmaz split", gotBody.Buyer.Name, gotBody.Buyer.Surname)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}
	if resp.TransactionID != "tx-item-1" {
		t.Errorf("transaction id = %s, want the item transaction id", resp.TransactionID)
	}
}

func TestProcessPaymentDeclined(t *testing.T) {
	adapter := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiResponse{
			Status:       "failure",
			ErrorCode:    "10051",
			ErrorMessage: "Insufficient funds",
		})
	})

	resp, err := adapter.ProcessPayment(context.Background(), paymentRequest())
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if resp.Success {
		t.Fatal("expected decline")
	}
	if resp.ErrorCode != "10051" || resp.ErrorMessage != "Insufficient funds" {
		t.Errorf("error = %s/%s, want gateway values", resp.ErrorCode, resp.ErrorMessage)
	}
}

func TestRefundKeepsOriginalTransactionID(t *testing.T) {
	var gotPath string
	var gotBody createRefundRequest
	adapter := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(apiResponse{Status: "success", PaymentID: "refund-999"})
	})

	resp, err := adapter.RefundPayment(context.Background(), "tx-item-1", decimal.RequireFromString("50.00"))
	if err != nil {
		t.Fatalf("RefundPayment: %v", err)
	}
	if gotPath != "/payment/refund" {
		t.Errorf("path = %s, want /payment/refund", gotPath)
	}
	if gotBody.PaymentTransactionID != "tx-item-1" || gotBody.Price != "50.00" {
		t.Errorf("refund body = %+v, want tx-item-1 / 50.00", gotBody)
	}
	if resp.TransactionID != "tx-item-1" {
		t.Errorf("transaction id = %s, refunds must keep referring to the original", resp.TransactionID)
	}
}

func TestProcessPaymentMalformedResponse(t *testing.T) {
	adapter := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := adapter.ProcessPayment(context.Background(), paymentRequest())
	if err == nil || !strings.Contains(err.Error(), "unexpected iyzico response") {
		t.Fatalf("err = %v, want unexpected response error", err)
	}
}

func TestSupportsMethod(t *testing.T) {
	adapter := New(testLogger(), Config{})
	if !adapter.SupportsMethod(domain.MethodCreditCard) || !adapter.SupportsMethod(domain.MethodDebitCard) {
		t.Error("card methods should be supported")
	}
	if adapter.SupportsMethod(domain.MethodCashOnDelivery) {
		t.Error("cash on delivery should not be supported")
	}
}
