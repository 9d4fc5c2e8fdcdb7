package http

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
)

type registerCustomerRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type customerStatusRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	customer, err := h.svc.Customers.Profile(r.Context(), identityFrom(r.Context()).CustomerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.customer(customer))
}

// Поля профиля, которые покупатель может менять через PATCH /me.
var profileFields = map[string]struct{}{
	"name":    {},
	"phone":   {},
	"address": {},
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	values, ok := h.decodeStringPatch(w, r, profileFields)
	if !ok {
		return
	}

	var update customers.ProfileUpdate
	for field, value := range values {
		switch field {
		case "name":
			update.Name = &value
		case "phone":
			update.Phone = &value
		case "address":
			update.Address = &value
		}
	}

	customer, err := h.svc.Customers.UpdateProfile(r.Context(), identityFrom(r.Context()).CustomerID, update)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.customer(customer))
}

// adminRegisterCustomer заводит покупателя; в проде вызывается сервисом аккаунтов.
func (h *Handler) adminRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.svc.Customers.Register(r.Context(), customers.RegisterInput{
		Email:   req.Email,
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.render.customer(customer))
}

func (h *Handler) adminSetCustomerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req customerStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "active is required")
		return
	}

	customer, err := h.svc.Customers.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render.customer(customer))
}
