package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/payment"
	"github.com/RoyceAzure/lab/storefront/internal/infra/payment/mock"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memdb"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }

type RouterTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memdb.MemDB
	gateway *mock.MockGateway
	router  *chi.Mux
	server  *Server
	member  *model.Member
	address *model.MemberAddress
	product *model.Product
}

func (s *RouterTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memdb.New(2 * time.Second)
	s.gateway = mock.NewMockGateway(gomock.NewController(s.T()))

	logger := zerolog.Nop()
	serverMetrics := metrics.NewServerMetrics(prometheus.NewRegistry())
	guard := service.NewConcurrencyGuard(s.store, serverMetrics, logger)
	checkout := service.NewCheckoutService(guard, s.gateway, "storefront.orders", serverMetrics, logger)
	s.server = NewServer(
		handler.NewCartHandler(service.NewCartService(guard)),
		handler.NewOrderHandler(checkout),
		handler.NewPaymentHandler(checkout),
	)
	s.router = SetupRouter(s.server, serverMetrics, nil, logger)

	s.member = &model.Member{Email: "a@example.com", Name: "a", Point: 1000}
	require.NoError(s.T(), s.store.CreateMember(s.ctx, s.member))
	s.address = &model.MemberAddress{MemberID: s.member.ID, Name: "A", Phone: "1", Address: "road", Zipcode: "11111"}
	require.NoError(s.T(), s.store.CreateAddress(s.ctx, s.address))
	s.product = &model.Product{
		Name:          "shirt",
		SellPrice:     decimal.NewFromInt(100),
		ConsumerPrice: decimal.NewFromInt(120),
		Stock:         5,
		HasOptions:    true,
		IsShow:        true,
		Options: []model.ProductOption{
			{OptionTitle: "Size", OptionValue: "M", Stock: 3, IsShow: true},
			{OptionTitle: "Size", OptionValue: "L", Stock: 2, IsShow: true},
		},
	}
	require.NoError(s.T(), s.store.CreateProduct(s.ctx, s.product))
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) do(method, path string, body any, memberID int64) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if memberID > 0 {
		req.Header.Set(constants.MemberIDHeader, fmt.Sprint(memberID))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *RouterTestSuite) TestRequiresMember() {
	rec, env := s.do(http.MethodGet, "/api/v1/cart", nil, 0)
	require.Equal(s.T(), http.StatusUnauthorized, rec.Code)
	require.Equal(s.T(), int(apperror.UnauthenticatedCode), env.Code)
}

func (s *RouterTestSuite) TestCartFlowAndPointCheckout() {
	optionM := s.product.Options[0].ID
	rec, env := s.do(http.MethodPost, "/api/v1/cart", map[string]any{"product_id": s.product.ID, "option_id": optionM}, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	var added struct {
		CartLineID int64 `json:"cart_line_id"`
	}
	require.NoError(s.T(), json.Unmarshal(env.Data, &added))
	require.NotZero(s.T(), added.CartLineID)

	rec, _ = s.do(http.MethodPut, fmt.Sprintf("/api/v1/cart/%d/quantity", added.CartLineID), map[string]any{"quantity": 2}, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/cart", nil, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var view service.CartView
	require.NoError(s.T(), json.Unmarshal(env.Data, &view))
	require.Equal(s.T(), 2, view.TotalQuantity)

	rec, env = s.do(http.MethodPost, "/api/v1/orders/checkout", map[string]any{"address_id": s.address.ID}, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	var summary service.OrderSummary
	require.NoError(s.T(), json.Unmarshal(env.Data, &summary))
	require.Equal(s.T(), model.OrderStatusPaid, summary.Status)

	rec, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", summary.OrderID), nil, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/orders", nil, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var orders []service.OrderSummary
	require.NoError(s.T(), json.Unmarshal(env.Data, &orders))
	require.Len(s.T(), orders, 1)
}

func (s *RouterTestSuite) TestErrorMapping() {
	rec, env := s.do(http.MethodPost, "/api/v1/cart", map[string]any{"product_id": s.product.ID}, s.member.ID)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), int(apperror.OptionRequiredCode), env.Code)

	rec, env = s.do(http.MethodPost, "/api/v1/cart", map[string]any{"product_id": s.product.ID, "option_id": -1}, s.member.ID)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), int(apperror.ValidationCode), env.Code)

	rec, env = s.do(http.MethodPost, "/api/v1/cart", map[string]any{"product_id": s.product.ID, "option_id": s.product.Options[1].ID, "quantity": 3}, s.member.ID)
	require.Equal(s.T(), http.StatusConflict, rec.Code)
	require.Equal(s.T(), int(apperror.InsufficientStockCode), env.Code)

	rec, env = s.do(http.MethodPost, "/api/v1/orders/checkout", map[string]any{"address_id": s.address.ID}, s.member.ID)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), int(apperror.EmptyCartCode), env.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/orders/abc", nil, s.member.ID)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/orders/999", nil, s.member.ID)
	require.Equal(s.T(), http.StatusNotFound, rec.Code)
	require.Equal(s.T(), int(apperror.NotFoundCode), env.Code)
}

func (s *RouterTestSuite) TestCardCheckoutAndVerify() {
	rec, _ := s.do(http.MethodPost, "/api/v1/cart", map[string]any{"product_id": s.product.ID, "option_id": s.product.Options[1].ID, "quantity": 2}, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec, env := s.do(http.MethodPost, "/api/v1/orders/checkout/card", map[string]any{"address_id": s.address.ID}, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	var res service.Reservation
	require.NoError(s.T(), json.Unmarshal(env.Data, &res))
	require.True(s.T(), decimal.NewFromInt(200).Equal(res.AmountDue))

	s.gateway.EXPECT().
		Lookup(gomock.Any(), "pay-1").
		Return(&payment.Confirmation{PaymentID: "pay-1", Amount: res.AmountDue, Status: "PAID"}, nil).
		Times(2)

	verify := map[string]any{"order_id": res.OrderID, "payment_id": "pay-1"}
	rec, env = s.do(http.MethodPost, "/api/v1/payments/verify", verify, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(s.T(), 0, env.Code)

	// 重複回呼回 200 並帶 AlreadySettled
	rec, env = s.do(http.MethodPost, "/api/v1/payments/verify", verify, s.member.ID)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	require.Equal(s.T(), int(apperror.AlreadySettledCode), env.Code)

	option, err := s.store.GetOptionByID(s.ctx, s.product.Options[1].ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, option.Stock)
}

func (s *RouterTestSuite) TestCheckoutRateLimited() {
	r := SetupRouter(s.server, nil, denyLimiter{}, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/checkout", bytes.NewBufferString(`{"address_id":1}`))
	req.Header.Set(constants.MemberIDHeader, fmt.Sprint(s.member.ID))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(s.T(), http.StatusTooManyRequests, rec.Code)

	// 其他路由不受影響
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(constants.MemberIDHeader, fmt.Sprint(s.member.ID))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *RouterTestSuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/api/v1/cart", nil, s.member.ID)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(s.T(), http.StatusOK, rec.Code)
	require.Contains(s.T(), rec.Body.String(), "requests_total")
}
