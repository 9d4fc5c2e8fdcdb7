package domain

import "github.com/shopspring/decimal"

// MoneyScale - количество знаков после запятой во всех денежных суммах.
const MoneyScale int32 = 2

// RoundMoney приводит сумму к двум знакам (банковское округление не используется).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// FormatMoney возвращает сумму в виде строки с ровно двумя знаками после запятой.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// ParseMoney разбирает строковую сумму; отрицательные значения допустимы, проверку делает вызывающий.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return RoundMoney(d), nil
}
