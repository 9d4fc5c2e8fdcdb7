package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

type lineItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerAddress string            `json:"customer_address"`
	PaymentMethod   string            `json:"payment_method"`
	Items           []lineItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// Поля заказа, которые покупатель может менять через PATCH.
var shippingFields = map[string]struct{}{
	"customer_name":    {},
	"customer_phone":   {},
	"customer_address": {},
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	h.withIdempotency(w, r, func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		lines := make([]domain.LineItem, 0, len(req.Items))
		for _, item := range req.Items {
			lines = append(lines, domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		order, err := h.svc.Orders.CreateOrder(r.Context(), orders.CreateOrderInput{
			CustomerID: identityFrom(r.Context()).CustomerID,
			Shipping: domain.Shipping{
				Name:    req.CustomerName,
				Phone:   req.CustomerPhone,
				Address: req.CustomerAddress,
			},
			PaymentMethod: req.PaymentMethod,
			Lines:         lines,
		})
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, h.render.order(order))
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Orders.ListForCustomer(r.Context(), identityFrom(r.Context()).CustomerID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.orders(list))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.GetForCustomer(r.Context(), identityFrom(r.Context()).CustomerID, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.order(order))
}

// updateOrder принимает только поля доставки; любое другое поле отклоняется целиком.
func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	values, ok := h.decodeStringPatch(w, r, shippingFields)
	if !ok {
		return
	}

	var update orders.ShippingUpdate
	for field, value := range values {
		switch field {
		case "customer_name":
			update.Name = &value
		case "customer_phone":
			update.Phone = &value
		case "customer_address":
			update.Address = &value
		}
	}

	order, err := h.svc.Orders.UpdateShipping(r.Context(), identityFrom(r.Context()).CustomerID, id, update)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.order(order))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Orders.Delete(r.Context(), identityFrom(r.Context()).CustomerID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	filter := domain.OrderFilter{Limit: limit}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		filter.Status = status
	}
	if raw := query.Get("customer_id"); raw != "" {
		id, err := parsePositiveInt(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "customer_id must be a positive integer")
			return
		}
		filter.CustomerID = id
	}

	list, err := h.svc.Orders.ListAll(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.orders(list))
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.order(order))
}

func (h *Handler) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.svc.Orders.Transition(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.order(order))
}

func (h *Handler) adminTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	events, err := h.svc.Orders.Timeline(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.timeline(events))
}

// adminRevenue считает выручку за дни [from, to] включительно в часовом поясе магазина.
func (h *Handler) adminRevenue(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, errFrom := time.ParseInLocation(time.DateOnly, query.Get("from"), h.render.loc)
	to, errTo := time.ParseInLocation(time.DateOnly, query.Get("to"), h.render.loc)
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, codeInvalidPeriod, "from and to must be dates in YYYY-MM-DD format")
		return
	}

	summary, err := h.svc.Orders.Revenue(r.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.revenue(summary))
}
