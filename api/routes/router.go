package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazario/bazario-backend/api/controllers"
	"github.com/bazario/bazario-backend/api/middleware"
	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/notifications"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	ordersService orders.Service,
	approvalService orders.ApprovalService,
	walletService wallet.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleCustomer))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(cartService, logg))
				r.Post("/items", controllers.CartAddItem(cartService, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/checkout", controllers.Checkout(ordersService, logg))
				r.Get("/", controllers.ListOrders(ordersService, logg))
			})

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", controllers.WalletFetch(walletService, logg))
				r.Post("/funds", controllers.WalletAddFunds(walletService, logg))
				r.Get("/transactions", controllers.WalletTransactions(walletService, logg))
			})
		})

		// Order detail enforces its own per-role visibility.
		r.Get("/orders/{orderId}", controllers.OrderDetail(ordersService, logg))

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleSeller))
			r.Get("/order-items", controllers.SellerItems(ordersService, logg))
			r.Post("/order-items/{itemId}/approve", controllers.ApproveItem(approvalService, logg))
			r.Post("/order-items/{itemId}/reject", controllers.RejectItem(approvalService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
