package polymarket

import (
	"fmt"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// mapOrderBook convierte la respuesta de /book a domain.OrderBook.
func mapOrderBook(tokenID string, r orderBookResponse) domain.OrderBook {
	if r.AssetID != "" {
		tokenID = r.AssetID
	}
	return domain.OrderBook{
		TokenID: tokenID,
		Bids:    mapBookEntries(r.Bids, false),
		Asks:    mapBookEntries(r.Asks, true),
	}
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
// Los niveles no parseables, no finitos o con precio/tamaño <= 0 se descartan.
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price := domain.ParseLevelValue(r.Price)
		size := domain.ParseLevelValue(r.Size)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}
	return domain.SortLevels(entries, ascending)
}

// parseMidpoint valida que el midpoint sea un precio en (0, 1].
func parseMidpoint(r midpointResponse) (float64, error) {
	mid, err := r.Mid.Float64()
	if err != nil {
		return 0, fmt.Errorf("parse mid %q: %w", r.Mid, err)
	}
	if !(mid > 0) || mid > 1 {
		return 0, fmt.Errorf("midpoint %g out of range", mid)
	}
	return mid, nil
}
