// Package inventory is the HTTP client for the inventory authority, the
// external owner of per-product stock counters. The authority exposes a
// single atomic conditional decrement; there is no reverse (credit-back)
// operation and no reservation handle.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/minimart/order-service/pkg/errors"
	"github.com/minimart/order-service/pkg/httpclient"
)

// Product is the authority's view of a product after a decrement.
type Product struct {
	ID            string `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
}

// NotFoundError reports that the authority does not know the product.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError reports a rejected decrement. Detail carries the
// authority's own message, which names the available quantity.
type InsufficientStockError struct {
	ProductID string
	Detail    string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %s", e.ProductID, e.Detail)
}

// Client calls the inventory authority. It must be wired with an HTTP
// client configured for zero retries: a decrement is not idempotent, and a
// retried request could deduct stock twice.
type Client struct {
	baseURL string
	http    httpclient.Doer
	logger  *slog.Logger
}

// NewClient builds a client for the authority at baseURL.
func NewClient(baseURL string, doer httpclient.Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger,
	}
}

type deductStockRequest struct {
	QuantityToDeduct int `json:"quantity_to_deduct"`
}

// DeductStock performs one conditional decrement. Exactly one request is
// sent per call. Error mapping:
//   - 404: *NotFoundError
//   - 400: *InsufficientStockError with the authority's detail
//   - transport failure or open circuit: wraps apperrors.ErrServiceUnavail
//   - any other status: plain error
func (c *Client) DeductStock(ctx context.Context, productID string, quantity int) (*Product, error) {
	body, err := json.Marshal(deductStockRequest{QuantityToDeduct: quantity})
	if err != nil {
		return nil, fmt.Errorf("marshal deduct-stock request: %w", err)
	}

	url := fmt.Sprintf("%s/products/%s/deduct-stock", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build deduct-stock request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if apperrors.HTTPStatus(err) == http.StatusServiceUnavailable {
			return nil, err
		}
		return nil, apperrors.ServiceUnavailable(
			fmt.Sprintf("inventory authority unreachable: %v", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		var product Product
		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return nil, fmt.Errorf("decode deduct-stock response: %w", err)
		}
		if product.ID == "" {
			product.ID = productID
		}
		return &product, nil

	case http.StatusNotFound:
		return nil, &NotFoundError{ProductID: productID}

	case http.StatusBadRequest:
		detail := httpclient.ErrorDetail(resp.Body)
		if detail == "" {
			detail = "decrement rejected"
		}
		return nil, &InsufficientStockError{ProductID: productID, Detail: detail}

	default:
		detail := httpclient.ErrorDetail(resp.Body)
		c.logger.ErrorContext(ctx, "unexpected inventory authority response",
			slog.String("product_id", productID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", detail),
		)
		return nil, fmt.Errorf("inventory authority returned status %d: %s", resp.StatusCode, detail)
	}
}
