package domain

import (
	"sort"
	"strconv"
)

// OrderBook representa el libro de órdenes de un token.
type OrderBook struct {
	TokenID string
	Bids    []BookEntry // ordenados mayor a menor precio
	Asks    []BookEntry // ordenados menor a mayor precio
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread devuelve el spread del book (ask - bid).
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// LevelsFor devuelve el lado del book que consume una orden:
// asks (menor a mayor) para BUY, bids (mayor a menor) para SELL.
func (ob OrderBook) LevelsFor(action Action) []BookEntry {
	if action == ActionBuy {
		return ob.Asks
	}
	return ob.Bids
}

// Depth devuelve la suma de tamaños (en shares) de un lado del book.
func Depth(levels []BookEntry) float64 {
	var total float64
	for _, l := range levels {
		if l.Size > 0 {
			total += l.Size
		}
	}
	return total
}

// SortLevels ordena una copia de los niveles en orden de matching.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func SortLevels(levels []BookEntry, ascending bool) []BookEntry {
	out := make([]BookEntry, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].Price < out[j].Price
		}
		return out[i].Price > out[j].Price
	})
	return out
}

// ParseLevelValue convierte el precio o tamaño (string) de un nivel del
// API. Devuelve 0 si no es un número finito.
func ParseLevelValue(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !IsFinite(v) {
		return 0
	}
	return v
}
