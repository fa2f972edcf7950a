package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// Handler wires the register cart to HTTP.
type Handler struct {
	Store     *Store
	Inventory Provider
	Pricing   pricing.Config
	Currency  string
	Validate  *validator.Validate
}

type addItemPayload struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"gt=0"`
}

type updateQtyPayload struct {
	Qty int `json:"qty"`
}

type percentPayload struct {
	Percent decimal.Decimal `json:"percent"`
}

type wholesalePayload struct {
	Enabled bool `json:"enabled"`
}

// Create opens a new register session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	id, err := h.Store.Create(r.Context())
	if err != nil {
		h.writeError(w, "create", err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"cartId": id}})
}

// Get returns the cart lines and the totals projection.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK)
}

// AddItem adds a product or merges quantity into its existing line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	id := chi.URLParam(r, "id")
	err = h.Store.With(r.Context(), id, func(c *Cart) error {
		return c.AddLine(r.Context(), h.Inventory, productID, payload.Qty)
	})
	if err != nil {
		h.writeError(w, "add_item", err)
		return
	}
	obs.IncCartMutation("add_item", "ok")
	h.render(w, r, http.StatusOK)
}

// UpdateItem sets the absolute quantity for a line; zero removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload updateQtyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id := chi.URLParam(r, "id")
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	err := h.Store.With(r.Context(), id, func(c *Cart) error {
		return c.UpdateQuantity(r.Context(), h.Inventory, productID, payload.Qty)
	})
	if err != nil {
		h.writeError(w, "update_qty", err)
		return
	}
	obs.IncCartMutation("update_qty", "ok")
	h.render(w, r, http.StatusOK)
}

// UpdateItemDiscount overwrites the manual line discount.
func (h *Handler) UpdateItemDiscount(w http.ResponseWriter, r *http.Request) {
	var payload percentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id := chi.URLParam(r, "id")
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	err := h.Store.With(r.Context(), id, func(c *Cart) error {
		return c.UpdateLineDiscount(productID, payload.Percent)
	})
	if err != nil {
		h.writeError(w, "update_discount", err)
		return
	}
	obs.IncCartMutation("update_discount", "ok")
	h.render(w, r, http.StatusOK)
}

// RemoveItem deletes a line. Removing an absent line succeeds.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	err := h.Store.With(r.Context(), id, func(c *Cart) error {
		c.RemoveLine(productID)
		return nil
	})
	if err != nil {
		h.writeError(w, "remove_item", err)
		return
	}
	obs.IncCartMutation("remove_item", "ok")
	h.render(w, r, http.StatusOK)
}

// SetWholesale toggles wholesale pricing for the session.
func (h *Handler) SetWholesale(w http.ResponseWriter, r *http.Request) {
	var payload wholesalePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id := chi.URLParam(r, "id")
	err := h.Store.With(r.Context(), id, func(c *Cart) error {
		c.SetWholesale(payload.Enabled)
		return nil
	})
	if err != nil {
		h.writeError(w, "set_wholesale", err)
		return
	}
	h.render(w, r, http.StatusOK)
}

// SetGeneralDiscount sets the cart-wide discount percent.
func (h *Handler) SetGeneralDiscount(w http.ResponseWriter, r *http.Request) {
	var payload percentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id := chi.URLParam(r, "id")
	err := h.Store.With(r.Context(), id, func(c *Cart) error {
		c.SetGeneralDiscount(payload.Percent)
		return nil
	})
	if err != nil {
		h.writeError(w, "set_general_discount", err)
		return
	}
	h.render(w, r, http.StatusOK)
}

// Clear empties the cart. Without force=true a non-empty cart is rejected so
// the front-end can confirm with the cashier.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	err := h.Store.With(r.Context(), id, func(c *Cart) error {
		return c.Clear(force)
	})
	if err != nil {
		h.writeError(w, "clear", err)
		return
	}
	obs.IncCartMutation("clear", "ok")
	h.render(w, r, http.StatusOK)
}

// Routes mounts the cart endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Clear)
	r.Put("/{id}/wholesale", h.SetWholesale)
	r.Put("/{id}/discount", h.SetGeneralDiscount)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{productId}", h.UpdateItem)
	r.Patch("/{id}/items/{productId}/discount", h.UpdateItemDiscount)
	r.Delete("/{id}/items/{productId}", h.RemoveItem)
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	id := chi.URLParam(r, "id")
	var (
		st      State
		summary pricing.Summary
	)
	err := h.Store.View(r.Context(), id, func(c *Cart) {
		st = c.State()
		summary = c.Totals(h.Pricing)
	})
	if err != nil {
		h.writeError(w, "get", err)
		return
	}
	items := make([]map[string]any, 0, len(st.Lines))
	for _, ln := range st.Lines {
		item := map[string]any{
			"productId":       ln.ProductID,
			"name":            ln.Name,
			"sku":             ln.SKU,
			"category":        ln.Category,
			"unitPrice":       ln.UnitPrice,
			"qty":             ln.Qty,
			"discountPercent": ln.DiscountPercent,
			"stockAtAdd":      ln.StockAtAdd,
		}
		if ln.WholesalePrice != nil {
			item["wholesalePrice"] = *ln.WholesalePrice
		}
		items = append(items, item)
	}
	common.JSON(w, status, map[string]any{
		"data": map[string]any{
			"cartId":                 id,
			"wholesale":              st.Wholesale,
			"generalDiscountPercent": st.GeneralDiscountPercent,
			"items":                  items,
			"pricing": map[string]any{
				"subtotal":          summary.Subtotal,
				"subtotalRetail":    summary.SubtotalRetail,
				"lineDiscounts":     summary.LineDiscounts,
				"generalDiscount":   summary.GeneralDiscount,
				"wholesaleDiscount": summary.WholesaleDiscount,
				"tax":               summary.Tax,
				"total":             summary.Total,
				"totalSavings":      summary.TotalSavings,
				"itemCount":         summary.ItemCount,
			},
			"currency": h.Currency,
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	obs.IncCartMutation(op, "error")
	var stockErr *InsufficientStockError
	var qtyErr *InvalidQuantityError
	switch {
	case errors.As(err, &stockErr):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", stockErr.Error(), map[string]any{
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.As(err, &qtyErr):
		details := map[string]any{"qty": qtyErr.Qty}
		if qtyErr.Limit > 0 {
			details["limit"] = qtyErr.Limit
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUANTITY", qtyErr.Error(), details)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrSessionNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrNotEmpty):
		common.JSONError(w, http.StatusConflict, "CONFIRMATION_REQUIRED", "cart is not empty, pass force=true to clear", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
