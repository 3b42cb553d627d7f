package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Paystack API root.
const DefaultBaseURL = "https://api.paystack.co"

// SignatureHeader carries the webhook body signature.
const SignatureHeader = "x-paystack-signature"

// Client calls the Paystack transaction API.
type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
}

// Config configures a Client. HTTPClient defaults to a 15s timeout client.
type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	HTTPClient  *http.Client
}

// APIError represents a non-2xx or status=false Paystack response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.Status)
}

// NewClient constructs a Paystack client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("paystack: secret key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		secretKey:   cfg.SecretKey,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		httpClient:  httpClient,
	}, nil
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
}

// InitializeTransaction starts a charge of amount (minor units) and returns the checkout URL.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount int64, reference string) (string, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       email,
		Amount:      amount,
		Reference:   reference,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return "", err
	}
	var out envelope[initializeData]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Data.AuthorizationURL) == "" {
		return "", &APIError{Status: http.StatusOK, Message: "missing authorization_url"}
	}
	return out.Data.AuthorizationURL, nil
}

// VerifyTransaction returns the gateway-reported status for reference, lowercased.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (string, error) {
	var out envelope[verifyData]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(out.Data.Status)), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{ ok() (bool, string) }) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
	status, msg := out.ok()
	if resp.StatusCode >= 400 {
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode paystack response: %w", decodeErr)
	}
	if !status {
		if msg == "" {
			msg = "request was not successful"
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	return nil
}

func (e *envelope[T]) ok() (bool, string) {
	return e.Status, e.Message
}
