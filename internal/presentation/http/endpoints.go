package httppresentation

import (
	"net/http"
	"time"

	appCustomer "github.com/Zhima-Mochi/minishop-orders/internal/application/customer"
	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	appProduct "github.com/Zhima-Mochi/minishop-orders/internal/application/product"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type requestedProduct struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type placeOrderRequest struct {
	CustomerID     string             `json:"customer_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Products       []requestedProduct `json:"products"`
}

type lineItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customer_id"`
	Status        domainOrder.Status `json:"status"`
	FailureReason string             `json:"failure_reason,omitempty"`
	Items         []lineItemResponse `json:"items"`
	Total         decimal.Decimal    `json:"total"`
	CreatedAt     time.Time          `json:"created_at"`
}

func newOrderResponse(o *domainOrder.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, lineItemResponse{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Subtotal:  li.Subtotal(),
		})
	}
	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		FailureReason: o.FailureReason,
		Items:         items,
		Total:         o.Total(),
		CreatedAt:     o.CreatedAt,
	}
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get(headerIdempotencyKey)
	}

	items := make([]appOrder.RequestedItem, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, appOrder.RequestedItem{ProductID: p.ID, Quantity: p.Quantity})
	}

	result, err := h.uc.PlaceOrder.Execute(r.Context(), appOrder.PlaceOrderInput{
		IdempotencyKey: key,
		CustomerID:     req.CustomerID,
		Items:          items,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, newOrderResponse(result.Order))
}

func (h *Handler) handleFindOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.FindOrder.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

type createCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type customerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.uc.CreateCustomer.Execute(r.Context(), appCustomer.CreateCustomerInput{Name: req.Name, Email: req.Email})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customerResponse{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt})
}

type createProductRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type productResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.uc.CreateProduct.Execute(r.Context(), appProduct.CreateProductInput{
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt,
	})
}
