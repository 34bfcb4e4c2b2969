package models

import (
	"time"
)

// HistoricalKpi is a point-in-time portfolio aggregate, uniquely keyed by
// (calculation date, name, period). Written by downstream reporting.
type HistoricalKpi struct {
	ID              int64     `db:"id" json:"id"`
	CalculationDate time.Time `db:"calculation_date" json:"calculation_date"`
	Name            string    `db:"kpi_name" json:"kpi_name"`
	Value           float64   `db:"kpi_value" json:"kpi_value"`
	Description     string    `db:"kpi_description" json:"kpi_description"`
	Period          string    `db:"period" json:"period"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
