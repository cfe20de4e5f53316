package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RecAction is what an advisor recommendation asks for.
type RecAction string

const (
	RecBuy   RecAction = "BUY"
	RecSell  RecAction = "SELL"
	RecClose RecAction = "CLOSE"
)

// SizingMode says how the USD size of a recommendation is derived.
type SizingMode string

const (
	SizingUSD   SizingMode = "usd"   // explicit size_usd
	SizingPct   SizingMode = "pct"   // size_pct of total portfolio value
	SizingKelly SizingMode = "kelly" // half-Kelly from confidence
)

const (
	DefaultConfidence = 0.5
	DefaultStrategy   = "unknown"
)

// RecommendationPayload is the JSON shape produced by strategy advisors.
type RecommendationPayload struct {
	TokenID    string   `json:"token_id" validate:"required,number,min=20,max=120"`
	Side       string   `json:"side" validate:"omitempty,oneof=YES NO"`
	Action     string   `json:"action" validate:"omitempty,oneof=BUY SELL CLOSE"`
	SizeUSD    *float64 `json:"size_usd,omitempty" validate:"omitempty,gt=0"`
	SizePct    *float64 `json:"size_pct,omitempty" validate:"omitempty,gt=0,lte=1"`
	Price      *float64 `json:"price,omitempty" validate:"omitempty,gt=0,lte=1"`
	Confidence *float64 `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
	FeeRate    *float64 `json:"fee_rate,omitempty" validate:"omitempty,gte=0,lt=1"`
}

// Recommendation is a validated payload. Sizing tells which of SizeUSD or
// SizePct applies; with SizingKelly neither is set.
type Recommendation struct {
	TokenID    string                `json:"token_id"`
	Side       Side                  `json:"side"`
	Action     RecAction             `json:"action"`
	Sizing     SizingMode            `json:"sizing"`
	SizeUSD    float64               `json:"size_usd,omitempty"`
	SizePct    float64               `json:"size_pct,omitempty"`
	LimitPrice *float64              `json:"price,omitempty"`
	Confidence float64               `json:"confidence"`
	Reasoning  string                `json:"reasoning"`
	Strategy   string                `json:"strategy"`
	FeeRate    *float64              `json:"fee_rate,omitempty"`
	Payload    RecommendationPayload `json:"-"`
}

var validate = validator.New()

// DecodeRecommendations accepts a single JSON object or an array of them.
func DecodeRecommendations(data []byte) ([]RecommendationPayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty recommendation payload", ErrValidation)
	}
	if trimmed[0] == '[' {
		var list []RecommendationPayload
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: decode recommendations: %v", ErrValidation, err)
		}
		return list, nil
	}
	var one RecommendationPayload
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, fmt.Errorf("%w: decode recommendation: %v", ErrValidation, err)
	}
	return []RecommendationPayload{one}, nil
}

// Validate normalizes and checks the payload, applying the advisor defaults
// (side YES, action BUY, confidence 0.5, strategy "unknown").
func (p RecommendationPayload) Validate() (Recommendation, error) {
	p.Side = strings.ToUpper(strings.TrimSpace(p.Side))
	p.Action = strings.ToUpper(strings.TrimSpace(p.Action))
	p.TokenID = strings.TrimSpace(p.TokenID)

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Recommendation{}, fmt.Errorf("%w: %s failed %q (value %v)",
				ErrValidation, fe.Field(), fe.ActualTag(), fe.Value())
		}
		return Recommendation{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if p.SizeUSD != nil && p.SizePct != nil {
		return Recommendation{}, fmt.Errorf("%w: size_usd and size_pct are mutually exclusive", ErrValidation)
	}

	rec := Recommendation{
		TokenID:    p.TokenID,
		Side:       SideYes,
		Action:     RecBuy,
		Sizing:     SizingKelly,
		LimitPrice: p.Price,
		Confidence: DefaultConfidence,
		Reasoning:  p.Reasoning,
		Strategy:   DefaultStrategy,
		FeeRate:    p.FeeRate,
		Payload:    p,
	}
	if p.Side != "" {
		rec.Side = Side(p.Side)
	}
	if p.Action != "" {
		rec.Action = RecAction(p.Action)
	}
	if p.Confidence != nil {
		rec.Confidence = *p.Confidence
	}
	if s := strings.TrimSpace(p.Strategy); s != "" {
		rec.Strategy = s
	}
	switch {
	case p.SizeUSD != nil:
		rec.Sizing = SizingUSD
		rec.SizeUSD = *p.SizeUSD
	case p.SizePct != nil:
		rec.Sizing = SizingPct
		rec.SizePct = *p.SizePct
	}
	return rec, nil
}

// KellyFraction is half-Kelly for an even-odds bet won with probability
// confidence, capped at maxFraction.
func KellyFraction(confidence, maxFraction float64) float64 {
	f := math.Max(0, 2*confidence-1) * 0.5
	return math.Min(f, maxFraction)
}

// BaseSize resolves the USD size before any drawdown multiplier.
func (r Recommendation) BaseSize(totalValue, kellyCap float64) float64 {
	switch r.Sizing {
	case SizingUSD:
		return r.SizeUSD
	case SizingPct:
		return totalValue * r.SizePct
	}
	return totalValue * KellyFraction(r.Confidence, kellyCap)
}

// TaggedReasoning prefixes reasoning with the strategy tag and confidence,
// e.g. "[momentum] (conf=75%) breakout".
func (r Recommendation) TaggedReasoning() string {
	return fmt.Sprintf("[%s] (conf=%.0f%%) %s", r.Strategy, r.Confidence*100, r.Reasoning)
}

var strategyTagRe = regexp.MustCompile(`^\[([^\]]+)\]`)

// strategyKeywords clasifica trades sin tag por palabras clave, en orden de
// prioridad.
var strategyKeywords = []struct {
	strategy string
	re       *regexp.Regexp
}{
	{"arbitrage", keywordRe("arbitrage", "arb", "gabagool", "yes+no", "underpriced pair")},
	{"momentum", keywordRe("momentum", "imbalance", "vol/liq", "volume/liquidity")},
	{"mean-reversion", keywordRe("mean-reversion", "mean reversion", "spread", "midpoint", "deviates", "revert")},
	{"news", keywordRe("news", "breaking", "announcement", "event-driven", "headline")},
}

func keywordRe(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// StrategyFromReasoning extracts the "[strategy]" tag written by
// TaggedReasoning. Untagged reasoning falls back to keyword matching;
// "manual" when nothing matches.
func StrategyFromReasoning(reasoning string) string {
	reasoning = strings.TrimSpace(reasoning)
	if m := strategyTagRe.FindStringSubmatch(reasoning); m != nil {
		return m[1]
	}
	for _, k := range strategyKeywords {
		if k.re.MatchString(reasoning) {
			return k.strategy
		}
	}
	return "manual"
}
