package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	apporder "github.com/TLF1607916/loopbuy-trade/internal/application/order"
	apppayment "github.com/TLF1607916/loopbuy-trade/internal/application/payment"
	appproduct "github.com/TLF1607916/loopbuy-trade/internal/application/product"
	"github.com/TLF1607916/loopbuy-trade/internal/application/saga"
	"github.com/TLF1607916/loopbuy-trade/internal/application/sweeper"
	dompayment "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// userIDHeader carries the caller identity. Authentication itself is outside
// this service; the header is trusted as set by the edge.
const userIDHeader = "X-User-ID"

// Handler exposes the trade flows over HTTP. Write flows go through the
// coordinator; reads hit the services directly.
type Handler struct {
	coordinator *saga.Coordinator
	orders      *apporder.Service
	payments    *apppayment.Service
	catalog     *appproduct.Catalog
	sweep       *sweeper.Sweeper
	logger      *zap.Logger
}

func NewHandler(coordinator *saga.Coordinator, orders *apporder.Service, payments *apppayment.Service, catalog *appproduct.Catalog, sweep *sweeper.Sweeper, logger *zap.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		orders:      orders,
		payments:    payments,
		catalog:     catalog,
		sweep:       sweep,
		logger:      logger,
	}
}

// Router builds the chi mux with request logging and panic recovery.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.withLogger)

	r.Get("/health", h.health)

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.listProduct)
		r.Get("/{id}", h.getProduct)
		r.Post("/{id}/delist", h.delistProduct)
		r.Post("/{id}/relist", h.relistProduct)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.checkout)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/ship", h.ship)
		r.Post("/{id}/confirm-receipt", h.confirmReceipt)
		r.Post("/{id}/return-request", h.requestReturn)
		r.Post("/{id}/return-process", h.processReturn)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.createPayment)
		r.Get("/", h.listPayments)
		r.Get("/{ref}", h.getPayment)
		r.Post("/{ref}/confirm", h.confirmPayment)
		r.Post("/{ref}/cancel", h.cancelPayment)
	})

	r.Route("/admin/sweeper", func(r chi.Router) {
		r.Get("/status", h.sweeperStatus)
		r.Post("/run", h.sweeperRun)
		r.Post("/payments/{ref}", h.sweeperExpireOne)
	})

	return r
}

// withLogger puts a request-scoped logger on the context so the services log
// with the request id attached.
func (h *Handler) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		ctx := logging.ContextWithLogger(r.Context(), reqLogger)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		reqLogger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func identity(r *http.Request) (string, error) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		return "", apperr.Permission("AUTH_REQUIRED", "caller identity is required")
	}
	return userID, nil
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("INVALID_BODY", "request body is not valid JSON")
	}
	return nil
}

func (h *Handler) listProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Price       string   `json:"price"`
		ImageURLs   []string `json:"image_urls"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, r, apperr.Validation("INVALID_PRICE", "price is not a valid decimal"))
		return
	}

	p, err := h.catalog.List(r.Context(), sellerID, req.Title, req.Description, price, req.ImageURLs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductView(p))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductView(p))
}

func (h *Handler) delistProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.Delist(r.Context(), chi.URLParam(r, "id"), sellerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductView(p))
}

func (h *Handler) relistProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.Relist(r.Context(), chi.URLParam(r, "id"), sellerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductView(p))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	buyerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.coordinator.Checkout(r.Context(), buyerID, req.ProductIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderViews(orders))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch r.URL.Query().Get("role") {
	case "seller":
		orders, err := h.orders.ListBySeller(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderViews(orders))
	default:
		orders, err := h.orders.ListByBuyer(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderViews(orders))
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	sellerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.coordinator.Ship(r.Context(), chi.URLParam(r, "id"), sellerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

func (h *Handler) confirmReceipt(w http.ResponseWriter, r *http.Request) {
	buyerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.coordinator.ConfirmReceipt(r.Context(), chi.URLParam(r, "id"), buyerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

func (h *Handler) requestReturn(w http.ResponseWriter, r *http.Request) {
	buyerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.coordinator.RequestReturn(r.Context(), chi.URLParam(r, "id"), buyerID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

func (h *Handler) processReturn(w http.ResponseWriter, r *http.Request) {
	sellerID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Approve      bool   `json:"approve"`
		RejectReason string `json:"reject_reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.coordinator.ProcessReturn(r.Context(), chi.URLParam(r, "id"), sellerID, req.Approve, req.RejectReason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		OrderIDs []string `json:"order_ids"`
		Amount   string   `json:"amount"`
		Method   string   `json:"method"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, r, apperr.Validation("INVALID_AMOUNT", "amount is not a valid decimal"))
		return
	}

	p, err := h.coordinator.CreatePayment(r.Context(), userID, req.OrderIDs, amount, dompayment.Method(req.Method))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentView(p))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payments, err := h.payments.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentViews(payments))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.payments.GetByRef(r.Context(), chi.URLParam(r, "ref"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Credential string `json:"credential"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.coordinator.ConfirmPayment(r.Context(), chi.URLParam(r, "ref"), req.Credential, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.coordinator.CancelPayment(r.Context(), chi.URLParam(r, "ref"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

func (h *Handler) sweeperStatus(w http.ResponseWriter, r *http.Request) {
	overdue, err := h.sweep.Count(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"running": h.sweep.IsRunning(),
		"overdue": overdue,
	})
}

func (h *Handler) sweeperRun(w http.ResponseWriter, r *http.Request) {
	expired, err := h.sweep.RunOnce(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

func (h *Handler) sweeperExpireOne(w http.ResponseWriter, r *http.Request) {
	if err := h.sweep.SweepOne(r.Context(), chi.URLParam(r, "ref")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "expired"})
}
