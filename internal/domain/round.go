package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Precisión con la que se persisten importes y precios.
const (
	MoneyPlaces = 4
	PricePlaces = 6
)

// IsFinite indica si x no es NaN ni ±Inf.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Round redondea x a places decimales (half away from zero) sin el ruido
// de float64: 0.1+0.2 queda en 0.3. NaN e Inf se devuelven tal cual.
func Round(x float64, places int32) float64 {
	if !IsFinite(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// RoundMoney redondea un importe USD a MoneyPlaces.
func RoundMoney(x float64) float64 { return Round(x, MoneyPlaces) }

// RoundPrice redondea un precio a PricePlaces.
func RoundPrice(x float64) float64 { return Round(x, PricePlaces) }

// AddMoney suma importes en aritmética decimal y redondea el resultado.
// Con algún operando no finito el resultado es la suma float sin redondear.
func AddMoney(a float64, deltas ...float64) float64 {
	if !IsFinite(a) {
		return a
	}
	sum := decimal.NewFromFloat(a)
	for _, d := range deltas {
		if !IsFinite(d) {
			f := a
			for _, x := range deltas {
				f += x
			}
			return f
		}
		sum = sum.Add(decimal.NewFromFloat(d))
	}
	return sum.Round(MoneyPlaces).InexactFloat64()
}
