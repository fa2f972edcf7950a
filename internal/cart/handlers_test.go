package cart_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

type cartResponse struct {
	Data struct {
		CartID    string `json:"cartId"`
		Wholesale bool   `json:"wholesale"`
		Items     []struct {
			ProductID       string          `json:"productId"`
			Qty             int             `json:"qty"`
			DiscountPercent decimal.Decimal `json:"discountPercent"`
		} `json:"items"`
		Pricing struct {
			Subtotal  decimal.Decimal `json:"subtotal"`
			Tax       decimal.Decimal `json:"tax"`
			Total     decimal.Decimal `json:"total"`
			ItemCount int             `json:"itemCount"`
		} `json:"pricing"`
		Currency string `json:"currency"`
	} `json:"data"`
}

type errResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T, inv cart.Provider) *httptest.Server {
	t.Helper()
	h := &cart.Handler{
		Store:     &cart.Store{},
		Inventory: inv,
		Pricing:   pricing.Config{TaxRate: dec("0.19"), PricesIncludeTax: true},
		Currency:  "IDR",
		Validate:  validator.New(),
	}
	r := chi.NewRouter()
	r.Route("/carts", h.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createCart(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/carts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out cartResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Data.CartID)
	return out.Data.CartID
}

func TestHandlerAddItemAndTotals(t *testing.T) {
	p := product("119", 10)
	srv := newTestServer(t, newProvider(p))
	id := createCart(t, srv)

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/carts/%s/items", srv.URL, id), map[string]any{
		"productId": p.ID.String(),
		"qty":       1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out cartResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Data.Items, 1)
	require.Equal(t, 1, out.Data.Pricing.ItemCount)
	require.Equal(t, "119.00", out.Data.Pricing.Total.StringFixed(2))
	require.Equal(t, "19.00", out.Data.Pricing.Tax.StringFixed(2))
	require.Equal(t, "IDR", out.Data.Currency)
}

func TestHandlerInsufficientStock(t *testing.T) {
	p := product("100", 2)
	srv := newTestServer(t, newProvider(p))
	id := createCart(t, srv)

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/carts/%s/items", srv.URL, id), map[string]any{
		"productId": p.ID.String(),
		"qty":       5,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var out errResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "INSUFFICIENT_STOCK", out.Error.Code)
	require.EqualValues(t, 2, out.Error.Details["available"])
}

func TestHandlerValidation(t *testing.T) {
	srv := newTestServer(t, newProvider())
	id := createCart(t, srv)

	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/carts/%s/items", srv.URL, id), map[string]any{
		"productId": "not-a-uuid",
		"qty":       1,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/carts/%s/items", srv.URL, id), map[string]any{
		"productId": "9b9f2f3e-0a55-4f3b-9b6e-0f6f8a8f3f11",
		"qty":       0,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerUnknownSession(t *testing.T) {
	srv := newTestServer(t, newProvider())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/carts/unknown", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var out errResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "NOT_FOUND", out.Error.Code)
}

func TestHandlerClearConfirmation(t *testing.T) {
	p := product("50", 10)
	srv := newTestServer(t, newProvider(p))
	id := createCart(t, srv)

	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/carts/%s/items", srv.URL, id), map[string]any{
		"productId": p.ID.String(),
		"qty":       1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/carts/%s", srv.URL, id), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var out errResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "CONFIRMATION_REQUIRED", out.Error.Code)

	resp, body = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/carts/%s?force=true", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cleared cartResponse
	require.NoError(t, json.Unmarshal(body, &cleared))
	require.Empty(t, cleared.Data.Items)
}

func TestHandlerWholesaleToggleAndGeneralDiscount(t *testing.T) {
	p := product("100", 100)
	srv := newTestServer(t, newProvider(p))
	id := createCart(t, srv)

	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/carts/%s/items", srv.URL, id), map[string]any{
		"productId": p.ID.String(),
		"qty":       10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, fmt.Sprintf("%s/carts/%s/wholesale", srv.URL, id), map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPut, fmt.Sprintf("%s/carts/%s/discount", srv.URL, id), map[string]any{"percent": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out cartResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.True(t, out.Data.Wholesale)
	// 10 units at 100 retail: 5% tier, wholesale basis 90.00.
	// Subtotal 855.00, general 10% -> 769.50 tax-inclusive total.
	require.Equal(t, "855.00", out.Data.Pricing.Subtotal.StringFixed(2))
	require.Equal(t, "769.50", out.Data.Pricing.Total.StringFixed(2))
}
