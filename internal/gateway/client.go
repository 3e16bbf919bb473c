package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tokosaku/backend/pkg/config"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errServerKeyRequired = errors.New("gateway server key is required")
	errInvalidGatewayEnv = fmt.Errorf("gateway environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired    = errors.New("gateway logger is required")
)

var snapBaseURLs = map[string]string{
	sandboxEnv:    "https://app.sandbox.midtrans.com",
	productionEnv: "https://app.midtrans.com",
}

var apiBaseURLs = map[string]string{
	sandboxEnv:    "https://api.sandbox.midtrans.com",
	productionEnv: "https://api.midtrans.com",
}

// Client talks to the external payment gateway with centralized auth,
// timeouts, logging, and error mapping.
type Client struct {
	httpClient  *http.Client
	serverKey   string
	environment string
	snapBaseURL string
	apiBaseURL  string
	callbacks   callbackURLs
	logger      *logger.Logger
}

type callbackURLs struct {
	finish  string
	err     string
	pending string
}

// Option customizes the client after config-driven construction.
type Option func(*Client)

// WithBaseURLs overrides the gateway endpoints, primarily for tests.
func WithBaseURLs(snapBaseURL, apiBaseURL string) Option {
	return func(c *Client) {
		if snapBaseURL != "" {
			c.snapBaseURL = snapBaseURL
		}
		if apiBaseURL != "" {
			c.apiBaseURL = apiBaseURL
		}
	}
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	serverKey := strings.TrimSpace(cfg.ServerKey)
	if serverKey == "" {
		return nil, errServerKeyRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		serverKey:   serverKey,
		environment: env,
		snapBaseURL: snapBaseURLs[env],
		apiBaseURL:  apiBaseURLs[env],
		callbacks: callbackURLs{
			finish:  cfg.FinishURL,
			err:     cfg.ErrorURL,
			pending: cfg.PendingURL,
		},
		logger: logg,
	}

	for _, opt := range opts {
		opt(c)
	}

	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ServerKey returns the configured server key, used for signature checks.
func (c *Client) ServerKey() string {
	if c == nil {
		return ""
	}
	return c.serverKey
}

type createTransactionBody struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
	ItemDetails     []TransactionItem `json:"item_details"`
	Callbacks       struct {
		Finish  string `json:"finish,omitempty"`
		Error   string `json:"error,omitempty"`
		Pending string `json:"pending,omitempty"`
	} `json:"callbacks"`
}

// CreateTransaction registers the order with the gateway and returns the
// payment session token and redirect URL.
func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*Session, error) {
	if req.OrderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	if req.GrossAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}

	var body createTransactionBody
	body.TransactionDetails.OrderID = req.OrderNumber
	body.TransactionDetails.GrossAmount = req.GrossAmount
	body.CustomerDetails = req.Customer
	body.ItemDetails = req.Items
	body.Callbacks.Finish = c.callbacks.finish
	body.Callbacks.Error = c.callbacks.err
	body.Callbacks.Pending = c.callbacks.pending

	var session Session
	url := c.snapBaseURL + "/snap/v1/transactions"
	if err := c.doJSON(ctx, http.MethodPost, url, &body, &session); err != nil {
		return nil, mapTransportError(err, "register transaction")
	}
	if session.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned empty session token")
	}
	return &session, nil
}

// GetStatus queries the gateway for the current transaction status of the
// given order number.
func (c *Client) GetStatus(ctx context.Context, orderNumber string) (*TransactionStatus, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}

	var status TransactionStatus
	url := fmt.Sprintf("%s/v2/%s/status", c.apiBaseURL, orderNumber)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &status); err != nil {
		return nil, mapTransportError(err, "query transaction status")
	}
	return &status, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.serverKey))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func basicAuth(serverKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(serverKey + ":"))
}

func mapTransportError(err error, operation string) error {
	if isTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, operation)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, operation)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func normalizeEnv(value string) (string, error) {
	switch value {
	case sandboxEnv, productionEnv:
		return value, nil
	default:
		return "", errInvalidGatewayEnv
	}
}
