// internal/infrastructure/commerce/client.go
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/config"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
)

type tokenKey struct{}

// ContextWithToken attaches the shopper's bearer token for commerce API calls
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token attached to ctx
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// APIError is a non-2xx answer from the commerce API
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commerce API %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the commerce API cart endpoints
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     logrus.FieldLogger
}

// NewClient creates a commerce API client from configuration
func NewClient(cfg *config.Config, logger logrus.FieldLogger) *Client {
	return NewClientWithHTTP(cfg.Commerce.BaseURL, &http.Client{Timeout: cfg.Commerce.Timeout}, logger)
}

// NewClientWithHTTP creates a client around an existing http.Client
func NewClientWithHTTP(baseURL string, httpClient *http.Client, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.WithField("component", "commerce_client"),
	}
}

var _ cart.RemoteStore = (*Client)(nil)

// Fetch retrieves the shopper's cart rows and converts them to cart items.
// Rows without any product reference are dropped.
func (c *Client) Fetch(ctx context.Context) (cart.Cart, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/cart-items", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Method: http.MethodGet, Path: "/cart-items", StatusCode: status, Body: string(body)}
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("error decoding cart rows: %w", err)
	}

	items := make(cart.Cart, 0, len(rows))
	for i, raw := range rows {
		item, ok, err := transformRow(raw)
		if err != nil {
			c.logger.WithError(err).WithField("index", i).Warn("Skipping malformed cart row")
			continue
		}
		if !ok {
			c.logger.WithField("index", i).Debug("Skipping cart row without product")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

type addResponse struct {
	IsUpdate bool            `json:"is_update"`
	Error    string          `json:"error"`
	Data     json.RawMessage `json:"data"`
}

// isUpdate reads is_update from the top level or from a data object
func (r addResponse) isUpdate() bool {
	if r.IsUpdate {
		return true
	}
	var nested struct {
		IsUpdate bool `json:"is_update"`
	}
	if len(r.Data) > 0 && r.Data[0] == '{' && json.Unmarshal(r.Data, &nested) == nil {
		return nested.IsUpdate
	}
	return false
}

// Add creates a cart row or lets the server merge it into an existing one
func (c *Client) Add(ctx context.Context, req cart.AddRequest) (cart.AddResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/cart-items", req)
	if err != nil {
		return cart.AddResponse{}, err
	}

	var parsed addResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			c.logger.WithError(err).WithField("status", status).Debug("Add response is not a JSON object")
		}
	}

	switch {
	case status >= 200 && status < 300:
		if parsed.Error != "" {
			return cart.AddResponse{Rejection: parsed.Error}, nil
		}
		return cart.AddResponse{IsUpdate: parsed.isUpdate()}, nil
	case isRejectionStatus(status) && parsed.Error != "":
		return cart.AddResponse{Rejection: parsed.Error}, nil
	default:
		return cart.AddResponse{}, &APIError{Method: http.MethodPost, Path: "/cart-items", StatusCode: status, Body: string(body)}
	}
}

// Remove deletes one cart row
func (c *Client) Remove(ctx context.Context, itemID string) error {
	return c.expectOK(ctx, http.MethodDelete, "/cart-items/"+url.PathEscape(itemID), nil)
}

// UpdateQuantity sets the quantity of one cart row
func (c *Client) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	return c.expectOK(ctx, http.MethodPut, "/cart-items/"+url.PathEscape(itemID), map[string]int{"quantity": quantity})
}

// Clear deletes every cart row of the shopper
func (c *Client) Clear(ctx context.Context) error {
	return c.expectOK(ctx, http.MethodDelete, "/cart-items", nil)
}

func (c *Client) expectOK(ctx context.Context, method, path string, payload interface{}) error {
	status, body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Method: method, Path: path, StatusCode: status, Body: string(body)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("error encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("error calling commerce API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("error reading response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("Commerce API call completed")

	return resp.StatusCode, body, nil
}

func isRejectionStatus(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
