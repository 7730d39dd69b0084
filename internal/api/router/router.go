package router

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	m "github.com/RoyceAzure/lab/storefront/internal/api/middleware"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Server struct {
	CartHandler    *handler.CartHandler
	OrderHandler   *handler.OrderHandler
	PaymentHandler *handler.PaymentHandler
}

func NewServer(
	cartHandler *handler.CartHandler,
	orderHandler *handler.OrderHandler,
	paymentHandler *handler.PaymentHandler,
) *Server {
	return &Server{
		CartHandler:    cartHandler,
		OrderHandler:   orderHandler,
		PaymentHandler: paymentHandler,
	}
}

// SetupRouter limiter 為 nil 時不限流
func SetupRouter(server *Server, serverMetrics *metrics.ServerMetrics, limiter redis_repo.IRateLimitRepository, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// 全局中間件
	r.Use(m.RequestIdMiddleware)
	r.Use(middleware.RealIP)
	r.Use(m.LoggerMiddleware(logger))
	if serverMetrics != nil {
		r.Use(m.MetricsMiddleware(serverMetrics))
		r.Method(http.MethodGet, "/metrics", serverMetrics.Handler())
	}

	checkoutLimit := m.NewRateLimitMiddleware(limiter, "checkout", logger)

	// API 路由
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(m.AuthMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", server.CartHandler.AddLine)
			r.Get("/", server.CartHandler.GetCart)
			r.Delete("/", server.CartHandler.Clear)
			r.Put("/{id}/quantity", server.CartHandler.UpdateQuantity)
			r.Put("/{id}/option", server.CartHandler.ChangeOption)
			r.Delete("/{id}", server.CartHandler.RemoveLine)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(checkoutLimit).Post("/checkout", server.OrderHandler.Checkout)
			r.With(checkoutLimit).Post("/checkout/card", server.OrderHandler.CheckoutCard)
			r.Get("/", server.OrderHandler.ListOrders)
			r.Get("/{id}", server.OrderHandler.GetOrder)
		})

		r.Post("/payments/verify", server.PaymentHandler.Verify)
	})
	return r
}
