package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Amount is a money column. sqlite has no exact decimal storage and would
// round through float64, so the digits are kept as text there.
type Amount struct {
	decimal.Decimal
}

// NullAmount is the nullable form of Amount.
type NullAmount struct {
	decimal.NullDecimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func NewNullAmount(d *decimal.Decimal) NullAmount {
	if d == nil {
		return NullAmount{}
	}
	return NullAmount{NullDecimal: decimal.NewNullDecimal(*d)}
}

func (Amount) GormDataType() string { return "decimal" }

func (NullAmount) GormDataType() string { return "decimal" }

func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return amountType(db)
}

func (NullAmount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return amountType(db)
}

func amountType(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return MoneyColumnType
}

// MoneyColumnType is the column type of every amount outside sqlite.
var MoneyColumnType = fmt.Sprintf("decimal(%d,%d)", billdomain.MoneyPrecision, billdomain.MoneyScale)

// AmountExpr returns an expression that compares and sorts column
// numerically on the current dialect.
func AmountExpr(db *gorm.DB, column string) string {
	if db.Dialector.Name() == "sqlite" {
		return "CAST(" + column + " AS REAL)"
	}
	return column
}
