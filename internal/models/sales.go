package models

// Column names of the historical automobile sales CSV.
const (
	ColYear         = "Year"
	ColMonth        = "Month"
	ColRecession    = "Recession"
	ColSales        = "Automobile_Sales"
	ColVehicleType  = "Vehicle_Type"
	ColAdvertising  = "Advertising_Expenditure"
	ColUnemployment = "unemployment_rate"
)

// Columns lists every column the dashboard reads, in frame order.
var Columns = []string{
	ColYear,
	ColMonth,
	ColRecession,
	ColSales,
	ColVehicleType,
	ColAdvertising,
	ColUnemployment,
}

type SalesRecord struct {
	Year                   int
	Month                  string
	Recession              bool
	AutomobileSales        float64
	VehicleType            string
	AdvertisingExpenditure float64
	UnemploymentRate       float64
}
