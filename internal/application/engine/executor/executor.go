// Package executor turns strategy advisor recommendations into paper orders.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/polypaper/internal/application/engine"
	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

const (
	defaultMinConfidence = 0.5
	defaultKellyCap      = 0.10

	haltReason = "Trading halted due to drawdown limit"
)

// Config holds executor thresholds.
type Config struct {
	MinConfidence float64
	KellyCap      float64 // fracción máxima del portfolio con sizing Kelly
}

// Executor valida recomendaciones, calcula el tamaño y las ejecuta contra el ledger.
type Executor struct {
	ledger engine.Ledger
	market ports.MarketData
	cfg    Config
}

// New creates an executor.
func New(ledger engine.Ledger, market ports.MarketData, cfg Config) *Executor {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	if cfg.KellyCap <= 0 {
		cfg.KellyCap = defaultKellyCap
	}
	return &Executor{ledger: ledger, market: market, cfg: cfg}
}

// ExecuteBatch ejecuta las recomendaciones en orden. Tras un rechazo por
// drawdown el resto queda como skipped.
func (x *Executor) ExecuteBatch(ctx context.Context, portfolio string, recs []domain.RecommendationPayload, dryRun bool) []domain.RecommendationResult {
	results := make([]domain.RecommendationResult, 0, len(recs))
	for i, rec := range recs {
		res, err := x.execute(ctx, portfolio, rec, dryRun)
		results = append(results, res)
		if !domain.IsDrawdownHalt(err) {
			continue
		}
		slog.Warn("batch halted by drawdown", "executed", i+1, "skipped", len(recs)-i-1)
		for _, rest := range recs[i+1:] {
			results = append(results, domain.RecommendationResult{
				Status:  domain.StatusSkipped,
				Reason:  haltReason,
				TokenID: rest.TokenID,
				Payload: &rest,
			})
		}
		break
	}
	return results
}

// Execute ejecuta una recomendación.
func (x *Executor) Execute(ctx context.Context, portfolio string, rec domain.RecommendationPayload, dryRun bool) domain.RecommendationResult {
	res, _ := x.execute(ctx, portfolio, rec, dryRun)
	return res
}

// execute devuelve además el error que causó el rechazo, para que el batch
// pueda detectar un halt por drawdown.
func (x *Executor) execute(ctx context.Context, portfolio string, payload domain.RecommendationPayload, dryRun bool) (domain.RecommendationResult, error) {
	rec, err := payload.Validate()
	if err != nil {
		return rejected(payload, err), err
	}

	view, err := x.ledger.Portfolio(ctx, portfolio, true)
	if err != nil {
		return rejected(payload, err), err
	}

	if rec.Confidence < x.cfg.MinConfidence {
		err := fmt.Errorf("%w: confidence %.0f%% below minimum %.0f%%",
			domain.ErrValidation, rec.Confidence*100, x.cfg.MinConfidence*100)
		return rejected(payload, err), err
	}

	tier := view.Risk.Tier(view.DrawdownPct)
	res := domain.RecommendationResult{
		Action:   rec.Action,
		TokenID:  rec.TokenID,
		Side:     rec.Side,
		Strategy: rec.Strategy,
		Tier:     tier,
	}

	var execs []domain.Execution
	switch rec.Action {
	case domain.RecClose:
		// side omitido: cerrar ambos lados
		res.Side = domain.Side(rec.Payload.Side)
		if dryRun {
			res.Status = domain.StatusDryRun
			summary := view.Summary()
			res.Portfolio = &summary
			return res, nil
		}
		execs, err = x.ledger.ClosePosition(ctx, engine.CloseRequest{
			Portfolio: portfolio,
			TokenID:   rec.TokenID,
			Side:      res.Side,
			Reasoning: rec.TaggedReasoning(),
			FeeRate:   rec.FeeRate,
		})

	case domain.RecSell:
		req := engine.OrderRequest{
			Portfolio:  portfolio,
			TokenID:    rec.TokenID,
			Side:       rec.Side,
			LimitPrice: rec.LimitPrice,
			Reasoning:  rec.TaggedReasoning(),
			FeeRate:    rec.FeeRate,
		}
		if rec.Sizing == domain.SizingKelly {
			req.Shares = math.MaxFloat64 // toda la posición
		} else {
			req.Size = domain.Round(rec.BaseSize(view.TotalValue, x.cfg.KellyCap), 2)
			res.SizeUSD = req.Size
		}
		res.LimitPrice = rec.LimitPrice
		if dryRun {
			return x.dryRun(ctx, res, view), nil
		}
		var exec domain.Execution
		if exec, err = x.ledger.Sell(ctx, req); err == nil {
			execs = []domain.Execution{exec}
		}

	default:
		if !tier.AllowsStrategy(rec.Strategy) {
			err := tierRejection(tier, rec.Strategy)
			return rejectedWith(res, payload, err), err
		}
		size := domain.Round(rec.BaseSize(view.TotalValue, x.cfg.KellyCap)*tier.SizeMultiplier(), 2)
		if size <= 0 {
			err := fmt.Errorf("%w: calculated trade size is zero (confidence too low for Kelly sizing)", domain.ErrInvalidSize)
			return rejectedWith(res, payload, err), err
		}
		res.SizeUSD = size
		res.LimitPrice = rec.LimitPrice
		if dryRun {
			return x.dryRun(ctx, res, view), nil
		}
		var exec domain.Execution
		exec, err = x.ledger.PlaceOrder(ctx, engine.OrderRequest{
			Portfolio:  portfolio,
			TokenID:    rec.TokenID,
			Side:       rec.Side,
			Size:       size,
			LimitPrice: rec.LimitPrice,
			Reasoning:  rec.TaggedReasoning(),
			FeeRate:    rec.FeeRate,
		})
		if err == nil {
			execs = []domain.Execution{exec}
		}
	}

	if err != nil {
		slog.Warn("recommendation rejected",
			"action", rec.Action,
			"token", engine.TruncateStr(rec.TokenID, 16),
			"strategy", rec.Strategy,
			"err", err,
		)
		return rejectedWith(res, payload, err), err
	}

	res.Status = domain.StatusExecuted
	res.Executions = execs
	if updated, err := x.ledger.Portfolio(ctx, portfolio, false); err == nil {
		summary := updated.Summary()
		res.Portfolio = &summary
	}
	slog.Info("recommendation executed",
		"action", rec.Action,
		"side", res.Side,
		"strategy", rec.Strategy,
		"size_usd", res.SizeUSD,
		"fills", len(execs),
	)
	return res, nil
}

// dryRun completa el resultado con el midpoint y el spread actuales, si
// están disponibles.
func (x *Executor) dryRun(ctx context.Context, res domain.RecommendationResult, view domain.PortfolioView) domain.RecommendationResult {
	res.Status = domain.StatusDryRun
	book, err := x.market.FetchOrderBook(ctx, res.TokenID)
	if err == nil {
		if spread := book.Spread(); spread > 0 {
			res.Spread = &spread
		}
	}
	if mid, err := x.market.FetchMidpoint(ctx, res.TokenID); err == nil {
		res.CurrentPrice = &mid
	} else if mid := book.Midpoint(); mid > 0 {
		res.CurrentPrice = &mid
	} else {
		slog.Debug("dry run without midpoint", "token", res.TokenID, "err", err)
	}
	summary := view.Summary()
	res.Portfolio = &summary
	return res
}

func tierRejection(tier domain.DrawdownTier, strategy string) *domain.RiskError {
	if tier == domain.TierCritical {
		return &domain.RiskError{
			Rule:   domain.RuleDrawdownCritical,
			Reason: "drawdown tier CRITICAL: " + tier.Action(),
		}
	}
	return &domain.RiskError{
		Rule:   domain.RuleStrategyBlocked,
		Reason: fmt.Sprintf("drawdown tier %s blocks %q entries", tier, strategy),
	}
}

func rejected(payload domain.RecommendationPayload, err error) domain.RecommendationResult {
	return rejectedWith(domain.RecommendationResult{TokenID: payload.TokenID}, payload, err)
}

func rejectedWith(res domain.RecommendationResult, payload domain.RecommendationPayload, err error) domain.RecommendationResult {
	res.Status = domain.StatusRejected
	res.Reason = err.Error()
	res.Payload = &payload
	res.Executions = nil
	return res
}
