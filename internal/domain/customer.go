package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer - покупатель с накопленной суммой выполненных заказов и рангом.
type Customer struct {
	ID            int64
	Email         string
	Name          string
	Phone         string
	Address       string
	LifetimeSpend decimal.Decimal
	Rank          Rank
	Active        bool
	UpdatedAt     time.Time
}

// Accrue добавляет сумму выполненного заказа и пересчитывает ранг по таблице.
func (c *Customer) Accrue(amount decimal.Decimal, table RankTable) {
	c.LifetimeSpend = RoundMoney(c.LifetimeSpend.Add(amount))
	c.Rank = table.RankFor(c.LifetimeSpend).Rank
}

// Product - товар каталога в том виде, в каком его видит оформление заказа.
type Product struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	InStock   bool
	UpdatedAt time.Time
}

// CartItem - позиция корзины покупателя. UpdatedAt меняется при каждом
// изменении количества.
type CartItem struct {
	ProductID int64
	Quantity  int32
	AddedAt   time.Time
	UpdatedAt time.Time
}
