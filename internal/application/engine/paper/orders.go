package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polypaper/internal/application/engine"
	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/metrics"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

// shareTolerance absorbe el ruido float al comparar shares.
const shareTolerance = 1e-9

// PlaceOrder simula una compra. El book, el midpoint y la pregunta del
// mercado se consultan antes de abrir la transacción; dentro se relee el
// portfolio, se valida caja y riesgo y se registran posición, caja y trade.
func (pe *Engine) PlaceOrder(ctx context.Context, req engine.OrderRequest) (exec domain.Execution, err error) {
	defer func() { metrics.ObserveOrder(string(domain.ActionBuy), err) }()

	name := portfolioName(req.Portfolio)
	side, err := validateOrder(req.TokenID, req.Side)
	if err != nil {
		return exec, fmt.Errorf("paper.PlaceOrder: %w", err)
	}
	if !(req.Size > 0) || math.IsInf(req.Size, 0) {
		return exec, fmt.Errorf("paper.PlaceOrder: %w: %g", domain.ErrInvalidSize, req.Size)
	}
	if err := validatePricing(req.LimitPrice, req.FeeRate); err != nil {
		return exec, fmt.Errorf("paper.PlaceOrder: %w", err)
	}

	fill, err := pe.quote(ctx, req.TokenID, domain.ActionBuy, req.LimitPrice,
		domain.NotionalDemand(req.Size), pe.fees(req.FeeRate))
	if err != nil {
		return exec, fmt.Errorf("paper.PlaceOrder: %w", err)
	}
	view, err := pe.Portfolio(ctx, name, true)
	if err != nil {
		return exec, fmt.Errorf("paper.PlaceOrder: %w", err)
	}
	key := domain.PositionKey{TokenID: req.TokenID, Side: side}
	question := pe.question(ctx, view, req.TokenID)

	now := pe.now()
	err = pe.store.InTx(ctx, func(tx ports.Ledger) error {
		p, err := tx.ActivePortfolio(ctx, name)
		if err != nil {
			return err
		}
		if p.ID != view.ID {
			return domain.ErrConflict
		}
		if debit := domain.RoundMoney(fill.Debit()); debit > p.CashBalance {
			return fmt.Errorf("%w: need $%.2f, have $%.2f", domain.ErrInsufficientBalance, debit, p.CashBalance)
		}
		positions, err := tx.OpenPositions(ctx, p.ID)
		if err != nil {
			return err
		}

		if !req.Force {
			state, err := riskState(ctx, tx, p, positions, view, now)
			if err != nil {
				return err
			}
			intent := domain.OrderIntent{TokenID: req.TokenID, Side: side, Size: req.Size, Approved: req.Approved}
			if err := domain.NewRiskEngine(p.Risk).Evaluate(state, intent); err != nil {
				return err
			}
		}

		pos, found := findPosition(positions, key)
		entryAvg := fill.AvgPrice
		if found {
			entryAvg = pos.AvgEntryPrice
		} else {
			pos = domain.Position{
				PortfolioID:    p.ID,
				TokenID:        req.TokenID,
				MarketQuestion: question,
				Side:           side,
				OpenedAt:       now,
			}
		}
		pos.ApplyBuy(fill.SharesFilled, fill.AvgPrice, now)
		if pos, err = tx.SavePosition(ctx, pos); err != nil {
			return err
		}

		p.CashBalance = domain.AddMoney(p.CashBalance, -fill.Debit())
		p.UpdatedAt = now
		if err := tx.UpdatePortfolio(ctx, p); err != nil {
			return err
		}

		trade, err := tx.InsertTrade(ctx, domain.Trade{
			Ref:            uuid.NewString(),
			PortfolioID:    p.ID,
			TokenID:        req.TokenID,
			MarketQuestion: pos.MarketQuestion,
			Side:           side,
			Action:         domain.ActionBuy,
			Shares:         fill.SharesFilled,
			Price:          domain.RoundPrice(fill.AvgPrice),
			Fee:            domain.RoundMoney(fill.Fee),
			TotalCost:      domain.RoundMoney(fill.Debit()),
			Reasoning:      req.Reasoning,
			ExecutedAt:     now,
			EntryAvg:       domain.RoundPrice(entryAvg),
		})
		if err != nil {
			return err
		}
		exec = domain.Execution{Trade: trade, Fill: fill, Position: pos, Cash: p.CashBalance}
		return nil
	})
	if err != nil {
		return domain.Execution{}, fmt.Errorf("paper.PlaceOrder: %s: %w", key, err)
	}

	slog.Info("paper BUY filled",
		"market", engine.TruncateStr(exec.Trade.MarketQuestion, 40),
		"side", side,
		"shares", fmt.Sprintf("%.4f", fill.SharesFilled),
		"avg_price", fmt.Sprintf("%.4f", fill.AvgPrice),
		"cost", exec.Trade.TotalCost,
		"levels", fill.LevelsConsumed,
		"full", fill.FullyFilled,
	)
	return exec, nil
}

// Sell simula una venta contra los bids. La demanda es el notional pedido
// limitado a las shares en cartera, o un número explícito de shares.
func (pe *Engine) Sell(ctx context.Context, req engine.OrderRequest) (exec domain.Execution, err error) {
	defer func() { metrics.ObserveOrder(string(domain.ActionSell), err) }()

	name := portfolioName(req.Portfolio)
	side, err := validateOrder(req.TokenID, req.Side)
	if err != nil {
		return exec, fmt.Errorf("paper.Sell: %w", err)
	}
	if !domain.IsFinite(req.Size) || !domain.IsFinite(req.Shares) ||
		req.Size < 0 || req.Shares < 0 || (req.Size == 0 && req.Shares == 0) {
		return exec, fmt.Errorf("paper.Sell: %w: size %g shares %g", domain.ErrInvalidSize, req.Size, req.Shares)
	}
	if err := validatePricing(req.LimitPrice, req.FeeRate); err != nil {
		return exec, fmt.Errorf("paper.Sell: %w", err)
	}

	p, err := pe.store.ActivePortfolio(ctx, name)
	if err != nil {
		return exec, fmt.Errorf("paper.Sell: %q: %w", name, err)
	}
	key := domain.PositionKey{TokenID: req.TokenID, Side: side}
	pos, err := pe.store.OpenPosition(ctx, p.ID, key)
	if err != nil {
		return exec, fmt.Errorf("paper.Sell: %w", err)
	}

	demand := domain.Demand{Notional: req.Size, Shares: pos.Shares}
	if req.Shares > 0 {
		demand.Shares = math.Min(req.Shares, pos.Shares)
	}
	fill, err := pe.quote(ctx, req.TokenID, domain.ActionSell, req.LimitPrice, demand, pe.fees(req.FeeRate))
	if err != nil {
		return exec, fmt.Errorf("paper.Sell: %w", err)
	}

	now := pe.now()
	err = pe.store.InTx(ctx, func(tx ports.Ledger) error {
		p, err := tx.ActivePortfolio(ctx, name)
		if err != nil {
			return err
		}
		pos, err := tx.OpenPosition(ctx, p.ID, key)
		if err != nil {
			return err
		}
		if fill.SharesFilled > pos.Shares+shareTolerance {
			return domain.ErrConflict
		}
		exec, err = applySell(ctx, tx, &p, pos, fill, req.Reasoning, now, false)
		return err
	})
	if err != nil {
		return domain.Execution{}, fmt.Errorf("paper.Sell: %s: %w", key, err)
	}

	slog.Info("paper SELL filled",
		"market", engine.TruncateStr(exec.Trade.MarketQuestion, 40),
		"side", side,
		"shares", fmt.Sprintf("%.4f", fill.SharesFilled),
		"avg_price", fmt.Sprintf("%.4f", fill.AvgPrice),
		"realized", exec.RealizedPnL,
		"closed", exec.Position.Closed,
	)
	return exec, nil
}

// ClosePosition vende todas las shares de las posiciones abiertas del token
// (ambos lados si Side está vacío). La posición queda cerrada aunque el book
// no cubra todas las shares; el P&L realizado sólo cuenta lo vendido.
func (pe *Engine) ClosePosition(ctx context.Context, req engine.CloseRequest) (execs []domain.Execution, err error) {
	defer func() { metrics.ObserveOrder("CLOSE", err) }()

	name := portfolioName(req.Portfolio)
	if err := domain.ValidateTokenID(req.TokenID); err != nil {
		return nil, fmt.Errorf("paper.ClosePosition: %w", err)
	}
	if err := validatePricing(nil, req.FeeRate); err != nil {
		return nil, fmt.Errorf("paper.ClosePosition: %w", err)
	}
	var side domain.Side
	if req.Side != "" {
		if side, err = domain.ParseSide(string(req.Side)); err != nil {
			return nil, fmt.Errorf("paper.ClosePosition: %w", err)
		}
	}

	p, err := pe.store.ActivePortfolio(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("paper.ClosePosition: %q: %w", name, err)
	}
	open, err := pe.store.OpenPositions(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("paper.ClosePosition: %w", err)
	}
	var targets []domain.Position
	for _, pos := range open {
		if pos.TokenID == req.TokenID && (side == "" || pos.Side == side) {
			targets = append(targets, pos)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("paper.ClosePosition: no open position for %s %s: %w", req.TokenID, side, domain.ErrNotFound)
	}

	book, err := pe.market.FetchOrderBook(ctx, req.TokenID)
	if err != nil {
		return nil, fmt.Errorf("paper.ClosePosition: %w", err)
	}
	fees := pe.fees(req.FeeRate)
	fills := make([]domain.Fill, len(targets))
	for i, pos := range targets {
		fill, err := domain.SimulateFill(book.Bids, domain.ActionSell, domain.ShareDemand(pos.Shares), fees)
		if err != nil {
			return nil, fmt.Errorf("paper.ClosePosition: %s: %w", pos.Key(), err)
		}
		if !fill.FullyFilled {
			slog.Warn("closing with thin book",
				"market", engine.TruncateStr(pos.MarketQuestion, 40),
				"side", pos.Side,
				"held", pos.Shares,
				"sold", fill.SharesFilled,
				"bid_depth", domain.Depth(book.Bids),
			)
		}
		fills[i] = fill
	}

	now := pe.now()
	err = pe.store.InTx(ctx, func(tx ports.Ledger) error {
		p, err := tx.ActivePortfolio(ctx, name)
		if err != nil {
			return err
		}
		execs = execs[:0]
		for i, target := range targets {
			pos, err := tx.OpenPosition(ctx, p.ID, target.Key())
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.ErrConflict
				}
				return err
			}
			if fills[i].SharesFilled > pos.Shares+shareTolerance {
				return domain.ErrConflict
			}
			exec, err := applySell(ctx, tx, &p, pos, fills[i], req.Reasoning, now, true)
			if err != nil {
				return err
			}
			execs = append(execs, exec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("paper.ClosePosition: %w", err)
	}

	for _, exec := range execs {
		slog.Info("paper position closed",
			"market", engine.TruncateStr(exec.Trade.MarketQuestion, 40),
			"side", exec.Trade.Side,
			"shares", fmt.Sprintf("%.4f", exec.Trade.Shares),
			"avg_price", fmt.Sprintf("%.4f", exec.Fill.AvgPrice),
			"realized", exec.RealizedPnL,
		)
	}
	return execs, nil
}

// applySell registra una venta dentro de tx: reduce (o cierra) la posición,
// abona el neto y añade el trade SELL con el precio medio de entrada vigente.
// Un cierre que no vende todo da de baja el resto y lo anota en el reasoning.
func applySell(
	ctx context.Context,
	tx ports.Ledger,
	p *domain.Portfolio,
	pos domain.Position,
	fill domain.Fill,
	reasoning string,
	now time.Time,
	closeAll bool,
) (domain.Execution, error) {
	entry := pos.AvgEntryPrice
	if unsold := pos.Shares - fill.SharesFilled; closeAll && unsold > shareTolerance {
		reasoning = writeOffNote(reasoning, unsold)
	}
	if closeAll {
		pos.CurrentPrice = fill.AvgPrice
		pos.Close(now)
	} else {
		pos.ApplySell(fill.SharesFilled, fill.AvgPrice, now)
	}
	pos, err := tx.SavePosition(ctx, pos)
	if err != nil {
		return domain.Execution{}, err
	}

	p.CashBalance = domain.AddMoney(p.CashBalance, fill.Proceeds())
	p.UpdatedAt = now
	if err := tx.UpdatePortfolio(ctx, *p); err != nil {
		return domain.Execution{}, err
	}

	trade, err := tx.InsertTrade(ctx, domain.Trade{
		Ref:            uuid.NewString(),
		PortfolioID:    p.ID,
		TokenID:        pos.TokenID,
		MarketQuestion: pos.MarketQuestion,
		Side:           pos.Side,
		Action:         domain.ActionSell,
		Shares:         fill.SharesFilled,
		Price:          domain.RoundPrice(fill.AvgPrice),
		Fee:            domain.RoundMoney(fill.Fee),
		TotalCost:      domain.RoundMoney(fill.Proceeds()),
		Reasoning:      reasoning,
		ExecutedAt:     now,
		EntryAvg:       entry,
	})
	if err != nil {
		return domain.Execution{}, err
	}
	return domain.Execution{
		Trade:       trade,
		Fill:        fill,
		Position:    pos,
		RealizedPnL: domain.RoundMoney((fill.AvgPrice-entry)*fill.SharesFilled - fill.Fee),
		Cash:        p.CashBalance,
	}, nil
}

func writeOffNote(reasoning string, unsold float64) string {
	note := fmt.Sprintf("(written off %.4f unsold shares)", unsold)
	if reasoning == "" {
		return note
	}
	return reasoning + " " + note
}

// quote calcula el fill: determinista con precio límite, o recorriendo el
// lado del book que consume la acción.
func (pe *Engine) quote(
	ctx context.Context,
	tokenID string,
	action domain.Action,
	limit *float64,
	demand domain.Demand,
	fees domain.FeeModel,
) (domain.Fill, error) {
	if limit != nil {
		return domain.LimitFill(*limit, demand, fees)
	}
	book, err := pe.market.FetchOrderBook(ctx, tokenID)
	if err != nil {
		return domain.Fill{}, err
	}
	return domain.SimulateFill(book.LevelsFor(action), action, demand, fees)
}

// question reutiliza la pregunta de una posición ya abierta del token o la
// busca en Gamma. Si la búsqueda falla devuelve "Unknown market".
func (pe *Engine) question(ctx context.Context, view domain.PortfolioView, tokenID string) string {
	for _, pv := range view.Positions {
		if pv.TokenID == tokenID && pv.MarketQuestion != "" && pv.MarketQuestion != unknownMarket {
			return pv.MarketQuestion
		}
	}
	q, err := pe.market.LookupQuestion(ctx, tokenID)
	if err != nil || q == "" {
		slog.Debug("market lookup failed", "token", tokenID, "err", err)
		return unknownMarket
	}
	return q
}

// riskState arma el estado previo a la orden: caja y posiciones leídas en la
// tx, valoradas con los precios obtenidos antes de abrirla.
func riskState(
	ctx context.Context,
	tx ports.Ledger,
	p domain.Portfolio,
	positions []domain.Position,
	view domain.PortfolioView,
	now time.Time,
) (domain.RiskState, error) {
	prices := make(map[domain.PositionKey]float64, len(view.Positions))
	for _, pv := range view.Positions {
		prices[pv.Key()] = pv.CurrentPrice
	}

	state := domain.RiskState{
		StartingBalance: p.StartingBalance,
		PeakValue:       math.Max(p.PeakValue, view.PeakValue),
	}
	total := p.CashBalance
	for _, pos := range positions {
		if price, ok := prices[pos.Key()]; ok {
			pos.CurrentPrice = price
		}
		state.Open = append(state.Open, domain.Exposure{Key: pos.Key(), Value: pos.Value()})
		total += pos.Value()
	}
	state.TotalValue = total

	daily, weekly, err := realizedWindows(ctx, tx, p.ID, now)
	if err != nil {
		return domain.RiskState{}, err
	}
	state.DailyRealizedPnL = daily
	state.WeeklyRealizedPnL = weekly
	return state, nil
}

func findPosition(positions []domain.Position, key domain.PositionKey) (domain.Position, bool) {
	for _, pos := range positions {
		if pos.Key() == key {
			return pos, true
		}
	}
	return domain.Position{}, false
}

func validateOrder(tokenID string, side domain.Side) (domain.Side, error) {
	if err := domain.ValidateTokenID(tokenID); err != nil {
		return "", err
	}
	return domain.ParseSide(string(side))
}

// validatePricing comprueba el precio límite y el fee rate opcionales.
func validatePricing(limit, feeRate *float64) error {
	if limit != nil && (!(*limit > 0) || *limit > 1) {
		return fmt.Errorf("%w: limit price must be in (0, 1], got %g", domain.ErrValidation, *limit)
	}
	if feeRate != nil && (!domain.IsFinite(*feeRate) || *feeRate < 0 || *feeRate > 1) {
		return fmt.Errorf("%w: fee rate must be in [0, 1], got %g", domain.ErrValidation, *feeRate)
	}
	return nil
}
