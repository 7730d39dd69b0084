package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrPaymentNotFound 金流查無此筆付款
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrGatewayResponse 金流回應非預期
	ErrGatewayResponse = errors.New("unexpected payment gateway response")
)

// Confirmation 金流回報的付款結果, 真偽驗證不在這裡處理
type Confirmation struct {
	PaymentID string
	Amount    decimal.Decimal
	Status    string
}

//go:generate mockgen -source=gateway.go -destination=mock/mock_gateway.go -package=mock
type Gateway interface {
	Lookup(ctx context.Context, paymentID string) (*Confirmation, error)
}

// PortOneClient 查詢 PortOne v2 付款單
// GET {base}/payments/{paymentId}, Authorization: PortOne {secret}
type PortOneClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewPortOneClient(baseURL, secret string, timeout time.Duration) *PortOneClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PortOneClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type portOnePayment struct {
	Status string `json:"status"`
	Amount struct {
		Total decimal.Decimal `json:"total"`
	} `json:"amount"`
}

func (c *PortOneClient) Lookup(ctx context.Context, paymentID string) (*Confirmation, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", c.baseURL, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "PortOne "+c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGatewayResponse, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var p portOnePayment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayResponse, err)
	}
	return &Confirmation{
		PaymentID: paymentID,
		Amount:    p.Amount.Total,
		Status:    p.Status,
	}, nil
}

var _ Gateway = (*PortOneClient)(nil)
