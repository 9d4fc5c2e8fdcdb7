package http

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
)

type createProductRequest struct {
	Name    string `json:"name"`
	Price   string `json:"price"`
	InStock *bool  `json:"in_stock"`
}

type updatePriceRequest struct {
	Price string `json:"price"`
}

type setInStockRequest struct {
	InStock *bool `json:"in_stock"`
}

func (h *Handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	price, err := domain.ParseMoney(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidPrice, "price must be a decimal string")
		return
	}
	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}

	product, err := h.svc.Catalog.CreateProduct(r.Context(), catalog.CreateProductInput{
		Name:    req.Name,
		Price:   price,
		InStock: inStock,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.render.product(product))
}

func (h *Handler) adminUpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updatePriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	price, err := domain.ParseMoney(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidPrice, "price must be a decimal string")
		return
	}

	product, err := h.svc.Catalog.UpdatePrice(r.Context(), id, price)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.product(product))
}

func (h *Handler) adminSetInStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setInStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.InStock == nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "in_stock is required")
		return
	}

	product, err := h.svc.Catalog.SetInStock(r.Context(), id, *req.InStock)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.product(product))
}
