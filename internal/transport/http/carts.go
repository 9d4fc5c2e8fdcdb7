package http

import "net/http"

type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Carts.List(r.Context(), identityFrom(r.Context()).CustomerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.cart(items))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.svc.Carts.AddItem(r.Context(), identityFrom(r.Context()).CustomerID, req.ProductID, req.Quantity)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.cartItem(item))
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req setQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Carts.SetQuantity(r.Context(), identityFrom(r.Context()).CustomerID, productID, req.Quantity); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	if err := h.svc.Carts.RemoveItem(r.Context(), identityFrom(r.Context()).CustomerID, productID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
