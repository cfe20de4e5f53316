package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recToken = "71321045679252212594626385532706912750332728571942532289631379312455583992563"

func TestDecodeRecommendations_ObjectOrArray(t *testing.T) {
	one, err := DecodeRecommendations([]byte(`{"token_id":"` + recToken + `","size_usd":50}`))
	require.NoError(t, err)
	assert.Len(t, one, 1)

	many, err := DecodeRecommendations([]byte(` [{"token_id":"1"},{"token_id":"2"}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	_, err = DecodeRecommendations([]byte(`{"token_id":`))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DecodeRecommendations([]byte("  "))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecommendationPayload_ValidateDefaults(t *testing.T) {
	rec, err := RecommendationPayload{TokenID: recToken}.Validate()
	require.NoError(t, err)

	assert.Equal(t, SideYes, rec.Side)
	assert.Equal(t, RecBuy, rec.Action)
	assert.Equal(t, SizingKelly, rec.Sizing)
	assert.Equal(t, 0.5, rec.Confidence)
	assert.Equal(t, "unknown", rec.Strategy)
}

func TestRecommendationPayload_ValidateVariants(t *testing.T) {
	usd, pct, conf := 50.0, 0.05, 0.8

	rec, err := RecommendationPayload{TokenID: recToken, Side: "no", Action: "close", SizeUSD: &usd, Confidence: &conf}.Validate()
	require.NoError(t, err)
	assert.Equal(t, SideNo, rec.Side)
	assert.Equal(t, RecClose, rec.Action)
	assert.Equal(t, SizingUSD, rec.Sizing)
	assert.Equal(t, 50.0, rec.SizeUSD)

	rec, err = RecommendationPayload{TokenID: recToken, SizePct: &pct}.Validate()
	require.NoError(t, err)
	assert.Equal(t, SizingPct, rec.Sizing)
	assert.InDelta(t, 50.0, rec.BaseSize(1000, 0.10), 1e-9)
}

func TestRecommendationPayload_ValidateRejects(t *testing.T) {
	usd, pct, badConf, badPrice := 50.0, 0.05, 1.2, 1.5

	cases := map[string]RecommendationPayload{
		"missing token":   {},
		"short token":     {TokenID: "123"},
		"non digit token": {TokenID: "7132104567925221259462638553270691275033272857194253228963137931245558399256x"},
		"bad side":        {TokenID: recToken, Side: "MAYBE"},
		"bad action":      {TokenID: recToken, Action: "HOLD"},
		"bad confidence":  {TokenID: recToken, Confidence: &badConf},
		"bad price":       {TokenID: recToken, Price: &badPrice},
		"both sizes":      {TokenID: recToken, SizeUSD: &usd, SizePct: &pct},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Validate()
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestKellyFraction(t *testing.T) {
	assert.Equal(t, 0.0, KellyFraction(0.5, 0.10))
	assert.Equal(t, 0.0, KellyFraction(0.3, 0.10))
	assert.InDelta(t, 0.05, KellyFraction(0.55, 0.10), 1e-9)
	assert.Equal(t, 0.10, KellyFraction(0.9, 0.10))
}

func TestRecommendation_TaggedReasoningRoundTrip(t *testing.T) {
	rec := Recommendation{Strategy: "momentum", Confidence: 0.75, Reasoning: "breakout"}
	tagged := rec.TaggedReasoning()
	assert.Equal(t, "[momentum] (conf=75%) breakout", tagged)
	assert.Equal(t, "momentum", StrategyFromReasoning(tagged))
	assert.Equal(t, "manual", StrategyFromReasoning("no tag here"))
}

func TestStrategyFromReasoning_KeywordFallback(t *testing.T) {
	tests := []struct {
		reasoning string
		want      string
	}{
		{"YES+NO sum below 1", "arbitrage"},
		{"classic arb on the pair", "arbitrage"},
		{"order book Imbalance 3:1", "momentum"},
		{"price deviates from 7d mean", "mean-reversion"},
		{"wide spread, expect revert", "mean-reversion"},
		{"Breaking: headline from AP", "news"},
		{"[value] news driven", "value"},
		{"harbor closure", "manual"},
		{"take profit", "manual"},
		{"", "manual"},
	}
	for _, tt := range tests {
		t.Run(tt.reasoning, func(t *testing.T) {
			assert.Equal(t, tt.want, StrategyFromReasoning(tt.reasoning))
		})
	}
}
