// Package handler is the HTTP surface of the ordering API: a chi router
// translating JSON requests into domain service calls.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/tokyo-express/internal/domain/auth"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
	"github.com/xenking/tokyo-express/internal/domain/user"
	"github.com/xenking/tokyo-express/internal/media"
)

// CatalogService is the catalog behaviour the handler needs.
type CatalogService interface {
	ListCategories(ctx context.Context, onlyActive bool) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalog.Category, error)
	UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (*catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// PromotionService is the promotion behaviour the handler needs.
type PromotionService interface {
	ListActive(ctx context.Context) ([]promotion.Promotion, error)
	ListAll(ctx context.Context) ([]promotion.Promotion, error)
	Get(ctx context.Context, id string) (*promotion.Promotion, error)
	Create(ctx context.Context, in promotion.Input) (*promotion.Promotion, error)
	Update(ctx context.Context, id string, in promotion.Input) (*promotion.Promotion, error)
	Delete(ctx context.Context, id string) error
}

// OrderService is the order behaviour the handler needs.
type OrderService interface {
	Quote(ctx context.Context, cart pricing.Cart) (*pricing.Quote, error)
	Place(ctx context.Context, cart pricing.Cart) (*order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
	Update(ctx context.Context, id string, cart pricing.Cart) (*order.Order, error)
	Delete(ctx context.Context, id string) error
	Today(ctx context.Context) (*order.DailyStats, error)
}

// UserService is the staff account behaviour the handler needs.
type UserService interface {
	List(ctx context.Context) ([]user.User, error)
	Get(ctx context.Context, id string) (*user.User, error)
	Create(ctx context.Context, in user.CreateInput) (*user.User, error)
	Update(ctx context.Context, id string, in user.UpdateInput) (*user.User, error)
	Delete(ctx context.Context, actorID, id string) error
	Authenticate(ctx context.Context, login, password string) (*user.User, error)
}

// TokenService issues and verifies staff tokens.
type TokenService interface {
	Issue(u *user.User) (string, error)
	Parse(raw string) (*auth.Identity, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// UploadsPublicURL is prepended to root-relative upload URLs. When
	// empty, the request scheme and host are used.
	UploadsPublicURL string
	// UploadsDir is served under /uploads/ when set.
	UploadsDir string
	// MaxUploadSize caps image uploads. Defaults to media.MaxImageSize.
	MaxUploadSize int64
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Catalog    CatalogService
	Promotions PromotionService
	Orders     OrderService
	Users      UserService
	Tokens     TokenService
	Media      media.Store
}

// Handler serves the JSON API.
type Handler struct {
	catalog    CatalogService
	promotions PromotionService
	orders     OrderService
	users      UserService
	tokens     TokenService
	media      media.Store

	uploadsPublicURL string
	uploadsDir       string
	maxUploadSize    int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, deps Deps) *Handler {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = media.MaxImageSize
	}
	return &Handler{
		catalog:          deps.Catalog,
		promotions:       deps.Promotions,
		orders:           deps.Orders,
		users:            deps.Users,
		tokens:           deps.Tokens,
		media:            deps.Media,
		uploadsPublicURL: cfg.UploadsPublicURL,
		uploadsDir:       cfg.UploadsDir,
		maxUploadSize:    cfg.MaxUploadSize,
	}
}

// Router returns the chi router with every API route mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.login)
			r.With(h.requireStaff).Get("/me", h.me)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", h.listCategories)
			r.Get("/products", h.listProducts)
			r.Get("/products/{id}", h.getProduct)

			r.Group(func(r chi.Router) {
				r.Use(h.requireStaff)
				r.Get("/categories/all", h.listAllCategories)
				r.Post("/categories", h.createCategory)
				r.Put("/categories/{id}", h.updateCategory)
				r.Delete("/categories/{id}", h.deleteCategory)
				r.Post("/products", h.createProduct)
				r.Put("/products/{id}", h.updateProduct)
				r.Delete("/products/{id}", h.deleteProduct)
			})
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Get("/", h.listActivePromotions)

			r.Group(func(r chi.Router) {
				r.Use(h.requireStaff)
				r.Get("/all", h.listAllPromotions)
				r.Get("/{id}", h.getPromotion)
				r.Post("/", h.createPromotion)
				r.Put("/{id}", h.updatePromotion)
				r.Delete("/{id}", h.deletePromotion)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/quote", h.quoteOrder)
			r.Post("/", h.placeOrder)

			r.Group(func(r chi.Router) {
				r.Use(h.requireStaff)
				r.Get("/", h.listOrders)
				r.Get("/{id}", h.getOrder)
				r.Patch("/{id}/status", h.updateOrderStatus)
				r.Patch("/{id}", h.updateOrder)
				r.Delete("/{id}", h.deleteOrder)
			})
		})

		r.With(h.requireStaff).Get("/stats/today", h.statsToday)
		r.With(h.requireStaff).Post("/upload/image", h.uploadImage)

		r.Route("/users", func(r chi.Router) {
			r.Use(h.requireStaff)
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Get("/{id}", h.getUser)
			r.Put("/{id}", h.updateUser)
			r.Delete("/{id}", h.deleteUser)
		})
	})

	if h.uploadsDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploadsDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}
	return r
}
