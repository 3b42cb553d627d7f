package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", CallbackURL: "http://localhost:8080/api/payments/verify"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestInitializeTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("authorization header = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		amount, _ := body["amount"].(float64)
		if amount != 1250 || body["reference"] != "ref-1" || body["email"] != "buyer@example.com" {
			t.Errorf("unexpected body: %v", body)
		}
		if body["callback_url"] != "http://localhost:8080/api/payments/verify" {
			t.Errorf("callback_url = %v", body["callback_url"])
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ref-1"}}`))
	})

	got, err := c.InitializeTransaction(context.Background(), "buyer@example.com", 1250, "ref-1")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got != "https://checkout.paystack.com/abc" {
		t.Fatalf("authorization url = %q", got)
	}
}

func TestInitializeTransactionStatusFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})
	_, err := c.InitializeTransaction(context.Background(), "buyer@example.com", 100, "ref-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid key" {
		t.Fatalf("expected APIError with gateway message, got %v", err)
	}
}

func TestInitializeTransactionHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})
	_, err := c.InitializeTransaction(context.Background(), "buyer@example.com", 100, "ref-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestVerifyTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"Success","reference":"ref-1","amount":1250}}`))
	})
	status, err := c.VerifyTransaction(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != "success" {
		t.Fatalf("status = %q, want success", status)
	}
}

func TestNewClientRequiresSecret(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error without secret key")
	}
}
