package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"learnhub-backend/internal/payments"
)

const defaultAPIBase = "https://api.razorpay.com/v1"

// Provider implements payments.Gateway for the Razorpay Orders API using direct HTTP calls.
type Provider struct {
	keyID      string
	secret     string
	httpClient *http.Client
	apiBaseURL string
	userAgent  string
}

type Option func(*Provider)

// WithAPIBase points the provider at a different API root, e.g. a local stub.
func WithAPIBase(base string) Option {
	return func(p *Provider) {
		if trimmed := strings.TrimSpace(base); trimmed != "" {
			p.apiBaseURL = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewProvider constructs a Razorpay provider. The secret signs payment confirmations
// and is mandatory; the key id is only needed to create orders.
func NewProvider(keyID, secret string, opts ...Option) (*Provider, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("razorpay secret is required")
	}

	p := &Provider{
		keyID:      strings.TrimSpace(keyID),
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBaseURL: defaultAPIBase,
		userAgent:  "learnhub-backend/razorpay-orders",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *Provider) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if p == nil {
		return false
	}
	return VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, p.secret)
}

type createOrderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

func (p *Provider) createRequest(ctx context.Context, params payments.OrderParams) (*http.Request, error) {
	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %d", params.AmountMinor)
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		return nil, errors.New("order currency is required")
	}

	body, err := json.Marshal(createOrderBody{
		Amount:   params.AmountMinor,
		Currency: currency,
		Receipt:  params.Receipt,
		Notes:    params.Notes,
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/orders", strings.TrimRight(p.apiBaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(p.keyID, p.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	return req, nil
}

// CreateOrder registers an order with Razorpay. Transport failures and 5xx answers
// wrap payments.ErrGatewayUnavailable.
func (p *Provider) CreateOrder(ctx context.Context, params payments.OrderParams) (*payments.GatewayOrder, error) {
	if p == nil {
		return nil, errors.New("razorpay provider is not configured")
	}
	if p.keyID == "" {
		return nil, errors.New("razorpay key id is required to create orders")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	req, err := p.createRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var payload struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
		Error    struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: razorpay returned status %d", payments.ErrGatewayUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("razorpay response decode failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(payload.Error.Description)
		if message == "" {
			message = fmt.Sprintf("razorpay returned status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %s", payments.ErrGatewayUnavailable, message)
		}
		return nil, errors.New(message)
	}

	if payload.ID == "" {
		return nil, errors.New("razorpay response missing order id")
	}

	return &payments.GatewayOrder{
		ID:          payload.ID,
		AmountMinor: payload.Amount,
		Currency:    payload.Currency,
		Status:      payload.Status,
	}, nil
}
