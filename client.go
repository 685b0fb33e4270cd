package lumenvault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lumenpay/lumenvault/core"
)

const defaultTimeout = 30 * time.Second

// HTTPClient talks to a lumenpay-auth server
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for baseURL. A nil httpClient gets a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

var _ Client = (*HTTPClient)(nil)

// Token returns the stored session token
func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a previously issued session token
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) RequestNonce(ctx context.Context, publicKey string) (Challenge, error) {
	var out Challenge
	path := "/auth/nonce?publicKey=" + url.QueryEscape(publicKey)
	if err := c.do(ctx, http.MethodGet, path, nil, false, &out); err != nil {
		return Challenge{}, err
	}
	return out, nil
}

func (c *HTTPClient) Verify(ctx context.Context, publicKey, signature, nonce string) (Login, error) {
	body := map[string]string{
		"publicKey": publicKey,
		"signature": signature,
		"nonce":     nonce,
	}
	var out Login
	if err := c.do(ctx, http.MethodPost, "/auth/verify", body, false, &out); err != nil {
		return Login{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login signs the raw nonce, not the display message
func (c *HTTPClient) Login(ctx context.Context, signer Signer, walletID string) (Login, error) {
	challenge, err := c.RequestNonce(ctx, walletID)
	if err != nil {
		return Login{}, fmt.Errorf("failed to request nonce: %w", err)
	}

	signed, err := signer.SignMessage(walletID, challenge.Nonce)
	if err != nil {
		return Login{}, fmt.Errorf("failed to sign nonce: %w", err)
	}

	login, err := c.Verify(ctx, signed.PublicKey, signed.Signature, challenge.Nonce)
	if err != nil {
		return Login{}, fmt.Errorf("failed to verify nonce: %w", err)
	}
	return login, nil
}

func (c *HTTPClient) Session(ctx context.Context) (SessionInfo, error) {
	var out SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, true, &out); err != nil {
		return SessionInfo{}, err
	}
	return out, nil
}

// Balances fails with ErrNotFound while the account is unfunded
func (c *HTTPClient) Balances(ctx context.Context) (Balances, error) {
	var out Balances
	if err := c.do(ctx, http.MethodGet, "/api/wallet/balance", nil, true, &out); err != nil {
		return Balances{}, err
	}
	return out, nil
}

func (c *HTTPClient) BuildPayment(ctx context.Context, payment PaymentRequest) (UnsignedTransaction, error) {
	var out UnsignedTransaction
	if err := c.do(ctx, http.MethodPost, "/api/wallet/tx/build", payment, true, &out); err != nil {
		return UnsignedTransaction{}, err
	}
	return out, nil
}

func (c *HTTPClient) Submit(ctx context.Context, signedXDR string) (Submission, error) {
	var out Submission
	body := map[string]string{"signedXdr": signedXDR}
	if err := c.do(ctx, http.MethodPost, "/api/wallet/tx/submit", body, true, &out); err != nil {
		return Submission{}, err
	}
	return out, nil
}

// Pay refuses to sign an envelope built for a network other than the signer's
func (c *HTTPClient) Pay(ctx context.Context, signer Signer, walletID string, payment PaymentRequest) (Submission, error) {
	unsigned, err := c.BuildPayment(ctx, payment)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to build payment: %w", err)
	}
	if unsigned.NetworkPassphrase != signer.NetworkPassphrase() {
		return Submission{}, fmt.Errorf("%w: relay uses %q", ErrNetworkMismatch, unsigned.NetworkPassphrase)
	}

	signed, err := signer.SignTransaction(walletID, unsigned.Transaction)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to sign payment: %w", err)
	}
	return c.Submit(ctx, signed.Envelope)
}

type errorBody struct {
	Error           string   `json:"error"`
	TransactionCode string   `json:"transactionCode"`
	OperationCodes  []string `json:"operationCodes"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, authed bool, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.Token()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", core.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		if eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{
			StatusCode:      resp.StatusCode,
			Message:         eb.Error,
			TransactionCode: eb.TransactionCode,
			OperationCodes:  eb.OperationCodes,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
