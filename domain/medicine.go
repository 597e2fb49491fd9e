package domain

import "github.com/shopspring/decimal"

type Medicine struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	GenericName string `db:"generic_name" json:"generic_name"`
	Brand       string `db:"brand" json:"brand"`
	Strength    string `db:"strength" json:"strength"`
	Barcode     string `db:"barcode" json:"barcode"`
	BaseUnitID  int64  `db:"base_unit_id" json:"base_unit_id"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

// SaleUnit is a unit a medicine can be sold in. Factor is the number of
// base units one SaleUnit holds; the base unit itself has factor 1.
type SaleUnit struct {
	ID     int64           `db:"id" json:"id"`
	Name   string          `db:"name" json:"name"`
	Factor int64           `db:"conversion_factor" json:"conversion_factor"`
	Price  decimal.Decimal `db:"selling_price" json:"price"`
}
