package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler exposes product management over HTTP.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type productPayload struct {
	Name           string           `json:"name" validate:"required,max=200"`
	SKU            string           `json:"sku" validate:"required,max=64"`
	Category       string           `json:"category" validate:"max=100"`
	SalePrice      decimal.Decimal  `json:"salePrice"`
	WholesalePrice *decimal.Decimal `json:"wholesalePrice"`
	Stock          int              `json:"stock" validate:"gte=0"`
}

type restockPayload struct {
	Delta int `json:"delta" validate:"required"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Post("/stock", h.Restock)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	items, total, err := h.Service.List(r.Context(), ListFilter{
		Query:    r.URL.Query().Get("query"),
		Category: r.URL.Query().Get("category"),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "product id must be a uuid", nil)
		return
	}
	p, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in productPayload
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.Service.Create(r.Context(), Product{
		Name:           in.Name,
		SKU:            in.SKU,
		Category:       in.Category,
		SalePrice:      in.SalePrice,
		WholesalePrice: in.WholesalePrice,
		Stock:          in.Stock,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "product id must be a uuid", nil)
		return
	}
	var in productPayload
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.Service.Update(r.Context(), Product{
		ID:             id,
		Name:           in.Name,
		SKU:            in.SKU,
		Category:       in.Category,
		SalePrice:      in.SalePrice,
		WholesalePrice: in.WholesalePrice,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "product id must be a uuid", nil)
		return
	}
	var in restockPayload
	if !h.decode(w, r, &in) {
		return
	}
	stock, err := h.Service.Restock(r.Context(), id, in.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":    id,
		"stock": stock,
	}})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dest); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
			return false
		}
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
