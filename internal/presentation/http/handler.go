package httppresentation

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	appaccess "github.com/Zhima-Mochi/minishop-storefront/internal/application/access"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-storefront/internal/application/order"
	appreturns "github.com/Zhima-Mochi/minishop-storefront/internal/application/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
)

const componentHTTPHandler = "http_server"

// Services are the use cases the REST surface exposes.
type Services struct {
	CheckStock       *appinv.CheckStockUseCase
	AdjustStock      *appinv.AdjustStockUseCase
	PlaceOrder       *apporder.PlaceOrderUseCase
	TransitionOrder  *apporder.TransitionOrderUseCase
	Orders           *apporder.Queries
	CreateReturn     *appreturns.CreateReturnUseCase
	TransitionReturn *appreturns.TransitionReturnUseCase
	Returns          *appreturns.Queries
	Scopes           *appaccess.ScopeAdmin
	Audit            *appaudit.Query
}

type Options struct {
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Health backs GET /health; nil means always healthy.
	Health func(ctx context.Context) error
}

type Handler struct {
	svc      Services
	auth     Authenticator
	opts     Options
	validate *validator.Validate
	log      observability.Logger
	tel      observability.Observability
}

func NewHandler(svc Services, auth Authenticator, opts Options, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		svc:      svc,
		auth:     auth,
		opts:     opts,
		validate: v,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

// Router wires: Observability (trace, request logger, metrics, access log) → Recoverer → Auth → Handler.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ObservabilityMiddleware(h.log, h.tel))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}
	r.Get("/products/{id}/check-stock", h.handleCheckStock)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/orders/new", h.handlePlaceOrder)
		r.Get("/orders/me", h.handleListMyOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Put("/orders/admin/order/{id}", h.handleTransitionOrder)

		r.Post("/returns", h.handleCreateReturn)
		r.Get("/returns/{id}", h.handleGetReturn)

		r.Route("/admin", func(r chi.Router) {
			r.Patch("/qc", h.handleQC)
			r.Get("/modules", h.handleAssignableScopes)
			r.Get("/users/{id}/modules", h.handleGetScopes)
			r.Put("/users/{id}/modules", h.handleReplaceScopes)
			r.Get("/audit", h.handleListAudit)
			r.Put("/inventory/{id}/{size}", h.handleAdjustStock)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		if err := h.opts.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, KindInternal, errors.New("dependency unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type checkStockResponse struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Available int    `json:"available"`
	InStock   bool   `json:"inStock"`
}

func (h *Handler) handleCheckStock(w http.ResponseWriter, r *http.Request) {
	qty := 0
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, KindValidation, errors.New("quantity must be an integer"))
			return
		}
		qty = n
	}

	res, err := h.svc.CheckStock.Execute(r.Context(), appinv.CheckStockInput{
		ProductID: chi.URLParam(r, "id"),
		Variant:   r.URL.Query().Get("size"),
		Quantity:  qty,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !res.InStock {
		writeError(w, http.StatusConflict, KindOutOfStock, errors.New("requested size is not available"))
		return
	}
	writeJSON(w, http.StatusOK, checkStockResponse{
		ProductID: res.ProductID,
		Size:      res.Variant,
		Available: res.Available,
		InStock:   res.InStock,
	})
}
