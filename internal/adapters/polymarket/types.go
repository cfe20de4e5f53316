package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// orderBookResponse es la respuesta de GET /book.
type orderBookResponse struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// midpointResponse es la respuesta de GET /midpoint. mid llega como string.
type midpointResponse struct {
	Mid json.Number `json:"mid"`
}

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata de un mercado que usa el ledger.
type gammaMarket struct {
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	ClobTokenIDs string `json:"clobTokenIds"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
}
