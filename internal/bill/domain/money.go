package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are stored as decimal(MoneyPrecision, MoneyScale). Any amount a
// command carries must fit that column exactly.
const (
	MoneyPrecision = 20
	MoneyScale     = 4
)

var moneyLimit = decimal.New(1, MoneyPrecision-MoneyScale)

// CheckMoney reports why d does not fit the money column, or nil.
func CheckMoney(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MoneyScale)) {
		return fmt.Errorf("more than %d decimal places", MoneyScale)
	}
	if d.Abs().GreaterThanOrEqual(moneyLimit) {
		return fmt.Errorf("more than %d integer digits", MoneyPrecision-MoneyScale)
	}
	return nil
}
