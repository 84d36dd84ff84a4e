package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ProcessorClient abstracts the external payment processor. A nil client
// means the processor is not configured and the orchestrator falls back to
// demo mode.
type ProcessorClient interface {
	CreateCustomer(ctx context.Context, name string, companyID int64) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*ExternalSubscription, string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*ExternalSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ExternalSubscription, error)
}

const defaultStripeBaseURL = "https://api.stripe.com/v1"

// StripeClient is a minimal Stripe API client. Requests are form-encoded
// and bounded by the HTTP client timeout; failures surface as
// *ProcessorError rather than hanging the request.
type StripeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewStripeClient creates a Stripe client with a bounded request timeout
func NewStripeClient(apiKey string, timeout time.Duration) *StripeClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &StripeClient{
		apiKey:     apiKey,
		baseURL:    defaultStripeBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API endpoint (for tests)
func (c *StripeClient) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// stripeSubscription mirrors the wire shape with epoch timestamps
type stripeSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	TrialEnd           int64  `json:"trial_end"`
	LatestInvoice      *struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		Total         int64  `json:"total"`
		Paid          bool   `json:"paid"`
		PaymentIntent *struct {
			ClientSecret string `json:"client_secret"`
		} `json:"payment_intent"`
	} `json:"latest_invoice"`
}

func (s *stripeSubscription) toExternal() *ExternalSubscription {
	ext := &ExternalSubscription{
		ID:                s.ID,
		CustomerID:        s.Customer,
		Status:            s.Status,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	// Absent epochs stay zero time so downstream IsZero checks hold.
	if s.CurrentPeriodStart > 0 {
		ext.CurrentPeriodStart = time.Unix(s.CurrentPeriodStart, 0).UTC()
	}
	if s.CurrentPeriodEnd > 0 {
		ext.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	if s.TrialEnd > 0 {
		trialEnd := time.Unix(s.TrialEnd, 0).UTC()
		ext.TrialEnd = &trialEnd
	}
	if s.LatestInvoice != nil {
		ext.LatestInvoice = &LatestInvoice{
			ID:     s.LatestInvoice.ID,
			Status: s.LatestInvoice.Status,
			Total:  s.LatestInvoice.Total,
			Paid:   s.LatestInvoice.Paid,
		}
	}
	return ext
}

// CreateCustomer creates a Stripe customer tagged with the company id
func (c *StripeClient) CreateCustomer(ctx context.Context, name string, companyID int64) (string, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("metadata[company_id]", strconv.FormatInt(companyID, 10))

	var customer struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", form, &customer); err != nil {
		return "", err
	}
	return customer.ID, nil
}

// CreateSubscription creates an incomplete subscription whose first invoice
// must be confirmed client-side. Returns the subscription view and the
// payment intent client secret.
func (c *StripeClient) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*ExternalSubscription, string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("items[0][price]", priceID)
	form.Set("payment_behavior", "default_incomplete")
	form.Set("expand[]", "latest_invoice.payment_intent")
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var sub stripeSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", form, &sub); err != nil {
		return nil, "", err
	}

	clientSecret := ""
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		clientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return sub.toExternal(), clientSecret, nil
}

// GetSubscription fetches the current subscription state
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*ExternalSubscription, error) {
	form := url.Values{}
	form.Set("expand[]", "latest_invoice")

	var sub stripeSubscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, form, &sub); err != nil {
		return nil, err
	}
	return sub.toExternal(), nil
}

// SetCancelAtPeriodEnd toggles scheduled cancellation on a subscription
func (c *StripeClient) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ExternalSubscription, error) {
	form := url.Values{}
	form.Set("cancel_at_period_end", strconv.FormatBool(cancel))

	var sub stripeSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, form, &sub); err != nil {
		return nil, err
	}
	return sub.toExternal(), nil
}

// stripeErrorResponse is the Stripe API error envelope
type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if encoded := form.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
	} else {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &ProcessorError{Code: "request_error", Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProcessorError{Code: "network_error", Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProcessorError{Code: "read_error", Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		var stripeErr stripeErrorResponse
		if err := json.Unmarshal(payload, &stripeErr); err == nil && stripeErr.Error.Message != "" {
			code := stripeErr.Error.Code
			if code == "" {
				code = stripeErr.Error.Type
			}
			return &ProcessorError{Code: code, Message: stripeErr.Error.Message}
		}
		return &ProcessorError{
			Code:    "http_" + strconv.Itoa(resp.StatusCode),
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &ProcessorError{Code: "decode_error", Message: err.Error()}
	}
	return nil
}
