package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/rank"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// CacheStore is the slice of the redis client the HTTP layer needs.
type CacheStore interface {
	redis.Pinger
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Services groups what the router hands to controllers. Nil services answer
// with an internal error rather than panicking.
type Services struct {
	Catalog  catalog.Service
	Cart     cart.Service
	Coupons  coupons.Service
	Address  address.Service
	Orders   orders.Service
	Payments payments.Service
	Rank     rank.Service
	Reviews  reviews.Service
}

// Infra carries the process-level dependencies.
type Infra struct {
	DB          db.Pinger
	Cache       CacheStore
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(infra.HTTPMetrics),
		middleware.CORS(cfg.CORS),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		cache            CacheStore = infra.Cache
		dbPinger         db.Pinger  = infra.DB
		redisPinger      redis.Pinger
	)
	if cache != nil {
		idempotencyStore = cache
		redisPinger = cache
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)
	couponPolicy := middleware.NewRateLimitPolicy("coupon-validate", cfg.RateLimit.Window, cfg.RateLimit.CouponValidate)
	feedbackPolicy := middleware.NewRateLimitPolicy("feedback", cfg.RateLimit.Window, cfg.RateLimit.Feedback)
	couponLimit := middleware.RateLimit(couponPolicy, rateStore(cache), logg)
	feedbackLimit := middleware.RateLimit(feedbackPolicy, rateStore(cache), logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbPinger, redisPinger, logg))
	})
	if infra.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Public storefront reads and gateway callbacks.
		r.Group(func(r chi.Router) {
			r.Get("/products/list", controllers.ProductList(svc.Catalog, logg))
			r.Get("/products/filter", controllers.ProductFilter(svc.Catalog, logg))
			r.Get("/products/search", controllers.ProductSearch(svc.Catalog, logg))
			r.Get("/products/{productId}", controllers.ProductGet(svc.Catalog, logg))
			r.Get("/products/{productId}/reviews", controllers.ReviewList(svc.Reviews, logg))
			r.Get("/products/{productId}/comments", controllers.CommentList(svc.Reviews, logg))
			r.Get("/categories", controllers.CategoryList(svc.Catalog, logg))
			r.Get("/brands", controllers.BrandList(svc.Catalog, logg))
			r.Get("/attributes", controllers.AttributeList(svc.Catalog, logg))
			r.Get("/user-rank/rewards", controllers.RankRewards(svc.Rank, logg))
			r.Get("/payments/vnpay-return", controllers.VNPayReturn(svc.Payments, logg))
			r.Get("/payments/vnpay-ipn", controllers.VNPayIPN(svc.Payments, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/cart", controllers.CartGet(svc.Cart, logg))
			r.Post("/cart/update", controllers.CartUpdate(svc.Cart, logg))

			r.With(couponLimit).Post("/coupons/validate", controllers.CouponValidate(svc.Coupons, logg))
			r.Get("/user-coupons/my", controllers.MyVouchers(svc.Coupons, logg))

			r.Get("/addresses", controllers.AddressList(svc.Address, logg))
			r.Post("/addresses", controllers.AddressCreate(svc.Address, logg))
			r.Delete("/addresses/{addressId}", controllers.AddressDelete(svc.Address, logg))

			r.With(idempotent).Post("/orders/create", controllers.OrderCreate(svc.Orders, logg))
			r.Get("/orders/my", controllers.OrderListMine(svc.Orders, logg))
			r.Get("/orders/{orderId}", controllers.OrderGet(svc.Orders, logg))

			r.With(idempotent).Post("/payments/create-vnpay-payment", controllers.VNPayCreate(svc.Payments, logg))

			r.Get("/user-rank/my-rank", controllers.MyRank(svc.Rank, logg))
			r.Post("/user-rank/spin", controllers.RankSpin(svc.Rank, logg))

			r.With(feedbackLimit).Post("/products/{productId}/reviews", controllers.ReviewCreate(svc.Reviews, logg))
			r.With(feedbackLimit).Post("/products/{productId}/comments", controllers.CommentCreate(svc.Reviews, logg))

			r.Route("/seller", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleSeller))
				mountSeller(r, svc, idempotent, logg)
			})
		})
	})

	return r
}

func mountSeller(r chi.Router, svc Services, idempotent func(http.Handler) http.Handler, logg *logger.Logger) {
	r.Get("/dashboard", controllers.SellerDashboard(svc.Orders, logg))

	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.SellerProductList(svc.Catalog, logg))
		r.Post("/", controllers.SellerProductCreate(svc.Catalog, logg))
		r.Put("/{productId}", controllers.SellerProductUpdate(svc.Catalog, logg))
		r.Delete("/{productId}", controllers.SellerProductDelete(svc.Catalog, logg))
	})
	r.Route("/categories", func(r chi.Router) {
		r.Post("/", controllers.SellerCategorySave(svc.Catalog, logg))
		r.Put("/{categoryId}", controllers.SellerCategorySave(svc.Catalog, logg))
		r.Delete("/{categoryId}", controllers.SellerCategoryDelete(svc.Catalog, logg))
	})
	r.Route("/brands", func(r chi.Router) {
		r.Post("/", controllers.SellerBrandSave(svc.Catalog, logg))
		r.Put("/{brandId}", controllers.SellerBrandSave(svc.Catalog, logg))
		r.Delete("/{brandId}", controllers.SellerBrandDelete(svc.Catalog, logg))
	})
	r.Route("/attributes", func(r chi.Router) {
		r.Post("/", controllers.SellerAttributeSave(svc.Catalog, logg))
		r.Put("/{attributeId}", controllers.SellerAttributeSave(svc.Catalog, logg))
		r.Delete("/{attributeId}", controllers.SellerAttributeDelete(svc.Catalog, logg))
	})
	r.Route("/coupons", func(r chi.Router) {
		r.Get("/", controllers.SellerCouponList(svc.Coupons, logg))
		r.Post("/", controllers.SellerCouponCreate(svc.Coupons, logg))
		r.Put("/{couponId}", controllers.SellerCouponUpdate(svc.Coupons, logg))
		r.Delete("/{couponId}", controllers.SellerCouponDelete(svc.Coupons, logg))
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", controllers.SellerOrderList(svc.Orders, logg))
		r.With(idempotent).Post("/{orderId}/status", controllers.SellerOrderStatus(svc.Orders, logg))
	})
}

type incrStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// rateStore keeps a nil cache as a nil interface so the limiter disables itself.
func rateStore(cache CacheStore) incrStore {
	if cache == nil {
		return nil
	}
	return cache
}
