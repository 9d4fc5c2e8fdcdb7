package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// TimeLayout - формат всех временных меток в ответах.
const TimeLayout = "2006-01-02 15:04:05"

type orderItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	CustomerID      int64               `json:"customer_id"`
	Status          string              `json:"status"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	CustomerAddress string              `json:"customer_address"`
	RankAtOrder     string              `json:"rank_at_order"`
	BonusPercent    int                 `json:"bonus_percent"`
	Subtotal        string              `json:"subtotal_amount"`
	Discount        string              `json:"discount_amount"`
	Final           string              `json:"final_amount"`
	PaymentMethod   string              `json:"payment_method"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       string              `json:"created_at"`
	CompletedAt     *string             `json:"completed_at"`
}

type timelineEventResponse struct {
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Occurred string `json:"occurred_at"`
}

type cartItemResponse struct {
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	AddedAt   string `json:"added_at"`
}

type customerResponse struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	LifetimeSpend string `json:"lifetime_spend"`
	Rank          string `json:"rank"`
	Active        bool   `json:"active"`
}

type productResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	InStock bool   `json:"in_stock"`
}

type revenueResponse struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Orders   int64  `json:"orders"`
	Subtotal string `json:"subtotal_amount"`
	Discount string `json:"discount_amount"`
	Final    string `json:"final_amount"`
}

// renderer переводит доменные типы в JSON-представление в часовом поясе магазина.
type renderer struct {
	loc *time.Location
}

func (r renderer) time(t time.Time) string {
	return t.In(r.loc).Format(TimeLayout)
}

func (r renderer) order(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: domain.FormatMoney(item.UnitPrice),
		})
	}

	resp := orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		CustomerName:    o.Shipping.Name,
		CustomerPhone:   o.Shipping.Phone,
		CustomerAddress: o.Shipping.Address,
		RankAtOrder:     string(o.RankAtOrder),
		BonusPercent:    o.BonusPercent,
		Subtotal:        domain.FormatMoney(o.Subtotal),
		Discount:        domain.FormatMoney(o.Discount),
		Final:           domain.FormatMoney(o.Final),
		PaymentMethod:   o.PaymentMethod,
		Items:           items,
		CreatedAt:       r.time(o.CreatedAt),
	}
	if o.CompletedAt != nil {
		completed := r.time(*o.CompletedAt)
		resp.CompletedAt = &completed
	}
	return resp
}

func (r renderer) orders(list []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, r.order(o))
	}
	return out
}

func (r renderer) timeline(events []domain.TimelineEvent) []timelineEventResponse {
	out := make([]timelineEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, timelineEventResponse{Type: e.Type, Reason: e.Reason, Occurred: r.time(e.Occurred)})
	}
	return out
}

func (r renderer) cart(items []domain.CartItem) []cartItemResponse {
	out := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, r.cartItem(item))
	}
	return out
}

func (r renderer) cartItem(item domain.CartItem) cartItemResponse {
	return cartItemResponse{ProductID: item.ProductID, Quantity: item.Quantity, AddedAt: r.time(item.AddedAt)}
}

func (r renderer) customer(c domain.Customer) customerResponse {
	return customerResponse{
		ID:            c.ID,
		Email:         c.Email,
		Name:          c.Name,
		Phone:         c.Phone,
		Address:       c.Address,
		LifetimeSpend: domain.FormatMoney(c.LifetimeSpend),
		Rank:          string(c.Rank),
		Active:        c.Active,
	}
}

func (r renderer) product(p domain.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, Price: domain.FormatMoney(p.Price), InStock: p.InStock}
}

func (r renderer) revenue(s domain.RevenueSummary) revenueResponse {
	return revenueResponse{
		From:     r.time(s.From),
		To:       r.time(s.To),
		Orders:   s.Orders,
		Subtotal: domain.FormatMoney(s.Subtotal),
		Discount: domain.FormatMoney(s.Discount),
		Final:    domain.FormatMoney(s.Final),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
