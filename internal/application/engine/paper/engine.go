package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alejandrodnm/polypaper/internal/application/engine"
	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/metrics"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

const (
	defaultStartingBalance = 10000
	unknownMarket          = "Unknown market"

	FeeModelFlat  = "flat"
	FeeModelCurve = "curve"
)

// Config holds paper trading-specific settings.
type Config struct {
	StartingBalance float64
	FeeRate         float64
	FeeModel        string // flat | curve
	Risk            domain.RiskConfig
	Clock           engine.Clock
}

// Engine es el ledger de paper trading: simula fills contra el book real y
// registra portfolios, posiciones, trades y snapshots.
type Engine struct {
	market ports.MarketData
	store  ports.LedgerStore
	cfg    Config
	now    engine.Clock
}

var _ engine.Ledger = (*Engine)(nil)

// New creates a paper trading engine.
func New(market ports.MarketData, store ports.LedgerStore, cfg Config) *Engine {
	if cfg.StartingBalance <= 0 {
		cfg.StartingBalance = defaultStartingBalance
	}
	if cfg.FeeModel == "" {
		cfg.FeeModel = FeeModelFlat
	}
	if cfg.Clock == nil {
		cfg.Clock = engine.SystemClock
	}
	cfg.Risk = cfg.Risk.WithDefaults()
	return &Engine{
		market: market,
		store:  store,
		cfg:    cfg,
		now:    cfg.Clock,
	}
}

// InitPortfolio crea un portfolio nuevo. Si ya había uno activo con ese
// nombre queda desactivado en la misma transacción. balance <= 0 usa el saldo por defecto; un risk
// a cero usa los umbrales de Config.
func (pe *Engine) InitPortfolio(ctx context.Context, name string, balance float64, risk *domain.RiskConfig) (domain.PortfolioView, error) {
	name = portfolioName(name)
	if !domain.IsFinite(balance) {
		return domain.PortfolioView{}, fmt.Errorf("paper.InitPortfolio: %w: balance %g", domain.ErrInvalidSize, balance)
	}
	if balance <= 0 {
		balance = pe.cfg.StartingBalance
	}
	cfg := pe.cfg.Risk
	if risk != nil {
		cfg = risk.WithDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return domain.PortfolioView{}, fmt.Errorf("paper.InitPortfolio: %w", err)
	}

	now := pe.now()
	var p domain.Portfolio
	err := pe.store.InTx(ctx, func(tx ports.Ledger) error {
		var err error
		p, err = tx.CreatePortfolio(ctx, domain.Portfolio{
			Name:            name,
			StartingBalance: domain.RoundMoney(balance),
			CashBalance:     domain.RoundMoney(balance),
			PeakValue:       domain.RoundMoney(balance),
			Risk:            cfg,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		return err
	})
	if err != nil {
		return domain.PortfolioView{}, fmt.Errorf("paper.InitPortfolio: %w", err)
	}
	slog.Info("portfolio initialized", "name", p.Name, "balance", p.StartingBalance)
	return domain.NewPortfolioView(p, nil), nil
}

// Portfolio devuelve el portfolio valorado. Con refresh consulta el midpoint
// de cada posición; si falla usa el último precio guardado y marca la vista
// como stale. Los precios nuevos y el pico se persisten.
func (pe *Engine) Portfolio(ctx context.Context, name string, refresh bool) (domain.PortfolioView, error) {
	name = portfolioName(name)
	p, err := pe.store.ActivePortfolio(ctx, name)
	if err != nil {
		return domain.PortfolioView{}, fmt.Errorf("paper.Portfolio: %q: %w", name, err)
	}
	positions, err := pe.store.OpenPositions(ctx, p.ID)
	if err != nil {
		return domain.PortfolioView{}, fmt.Errorf("paper.Portfolio: positions: %w", err)
	}

	var quotes map[string]quote
	if refresh {
		tokens := make([]string, 0, len(positions))
		for _, pos := range positions {
			tokens = append(tokens, pos.TokenID)
		}
		quotes = fetchMidpoints(ctx, pe.market, tokens)
	}

	live := map[int64]float64{}
	views := make([]domain.PositionView, 0, len(positions))
	for _, pos := range positions {
		src := domain.PriceCached
		if refresh {
			if q := quotes[pos.TokenID]; q.err == nil {
				pos.CurrentPrice = q.mid
				live[pos.ID] = q.mid
				src = domain.PriceLive
			} else {
				metrics.StaleQuotes.Inc()
				slog.Warn("using cached price",
					"token", pos.TokenID,
					"market", engine.TruncateStr(pos.MarketQuestion, 40),
					"price", pos.CurrentPrice,
					"err", q.err,
				)
			}
		}
		views = append(views, domain.NewPositionView(pos, src))
	}

	view := domain.NewPortfolioView(p, views)
	if len(live) > 0 || view.PeakValue > p.PeakValue {
		if err := pe.persistValuation(ctx, p.ID, name, live, view.PeakValue); err != nil {
			return domain.PortfolioView{}, fmt.Errorf("paper.Portfolio: %w", err)
		}
	}
	metrics.ObservePortfolio(view)
	return view, nil
}

// persistValuation guarda los precios live y eleva el pico. Relee el
// portfolio dentro de la tx para no pisar la caja.
func (pe *Engine) persistValuation(ctx context.Context, id int64, name string, prices map[int64]float64, peak float64) error {
	now := pe.now()
	return pe.store.InTx(ctx, func(tx ports.Ledger) error {
		if len(prices) > 0 {
			if err := tx.UpdatePositionPrices(ctx, prices, now); err != nil {
				return fmt.Errorf("prices: %w", err)
			}
		}
		p, err := tx.ActivePortfolio(ctx, name)
		if err != nil {
			return err
		}
		if p.ID != id || peak <= p.PeakValue {
			return nil
		}
		p.PeakValue = domain.RoundMoney(peak)
		p.UpdatedAt = now
		return tx.UpdatePortfolio(ctx, p)
	})
}

// Trades devuelve los últimos limit trades (todos si limit <= 0) en orden cronológico.
func (pe *Engine) Trades(ctx context.Context, name string, limit int) ([]domain.Trade, error) {
	return pe.TradesSince(ctx, name, ports.TradeFilter{Limit: limit})
}

// TradesSince devuelve los trades que cumplen f.
func (pe *Engine) TradesSince(ctx context.Context, name string, f ports.TradeFilter) ([]domain.Trade, error) {
	p, err := pe.store.ActivePortfolio(ctx, portfolioName(name))
	if err != nil {
		return nil, fmt.Errorf("paper.Trades: %w", err)
	}
	trades, err := pe.store.Trades(ctx, p.ID, f)
	if err != nil {
		return nil, fmt.Errorf("paper.Trades: %w", err)
	}
	return trades, nil
}

// Snapshots devuelve la curva de equity desde since (zero = completa).
func (pe *Engine) Snapshots(ctx context.Context, name string, since time.Time) ([]domain.DailySnapshot, error) {
	p, err := pe.store.ActivePortfolio(ctx, portfolioName(name))
	if err != nil {
		return nil, fmt.Errorf("paper.Snapshots: %w", err)
	}
	if !since.IsZero() {
		since = domain.DayStart(since)
	}
	snaps, err := pe.store.Snapshots(ctx, p.ID, since)
	if err != nil {
		return nil, fmt.Errorf("paper.Snapshots: %w", err)
	}
	return snaps, nil
}

// Snapshot registra (o reemplaza) el snapshot de hoy. daily_pnl se mide
// contra el último snapshot anterior o, si no hay, contra el saldo inicial.
func (pe *Engine) Snapshot(ctx context.Context, name string) (domain.DailySnapshot, error) {
	name = portfolioName(name)
	view, err := pe.Portfolio(ctx, name, true)
	if err != nil {
		return domain.DailySnapshot{}, fmt.Errorf("paper.Snapshot: %w", err)
	}
	now := pe.now()
	snap := domain.DailySnapshot{
		PortfolioID:    view.ID,
		Date:           now.UTC().Format(domain.SnapshotDateLayout),
		Cash:           view.Cash,
		PositionsValue: view.PositionsValue,
		TotalValue:     view.TotalValue,
		CreatedAt:      now,
	}
	err = pe.store.InTx(ctx, func(tx ports.Ledger) error {
		prev, err := pe.previousValue(ctx, tx, view)
		if err != nil {
			return err
		}
		snap.DailyPnL = domain.RoundMoney(view.TotalValue - prev)
		return tx.UpsertSnapshot(ctx, snap)
	})
	if err != nil {
		return domain.DailySnapshot{}, fmt.Errorf("paper.Snapshot: %w", err)
	}
	slog.Info("snapshot saved",
		"portfolio", name,
		"date", snap.Date,
		"total", snap.TotalValue,
		"daily_pnl", snap.DailyPnL,
	)
	return snap, nil
}

// Health evalúa el estado de riesgo del portfolio con precios frescos.
func (pe *Engine) Health(ctx context.Context, name string) (domain.HealthReport, error) {
	name = portfolioName(name)
	view, err := pe.Portfolio(ctx, name, true)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("paper.Health: %w", err)
	}
	now := pe.now()
	prev, err := pe.previousValue(ctx, pe.store, view)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("paper.Health: %w", err)
	}
	daily, weekly, err := realizedWindows(ctx, pe.store, view.ID, now)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("paper.Health: %w", err)
	}
	rep := domain.AssessHealth(domain.HealthInput{
		View:              view,
		PrevValue:         prev,
		DailyRealizedPnL:  daily,
		WeeklyRealizedPnL: weekly,
		CheckedAt:         now,
	})
	if rep.Status != domain.HealthGreen {
		slog.Warn("portfolio health degraded",
			"portfolio", name,
			"status", rep.Status,
			"alerts", len(rep.Alerts),
		)
	}
	return rep, nil
}

func (pe *Engine) previousValue(ctx context.Context, l ports.Ledger, view domain.PortfolioView) (float64, error) {
	today := pe.now().UTC().Format(domain.SnapshotDateLayout)
	prev, err := l.SnapshotBefore(ctx, view.ID, today)
	switch {
	case err == nil:
		return prev.TotalValue, nil
	case errors.Is(err, domain.ErrNotFound):
		return view.StartingBalance, nil
	default:
		return 0, fmt.Errorf("previous snapshot: %w", err)
	}
}

// realizedWindows devuelve el P&L realizado del día y de la semana (UTC).
func realizedWindows(ctx context.Context, l ports.Ledger, portfolioID int64, now time.Time) (daily, weekly float64, err error) {
	daily, err = l.RealizedPnLSince(ctx, portfolioID, domain.DayStart(now))
	if err != nil {
		return 0, 0, fmt.Errorf("daily realized: %w", err)
	}
	weekly, err = l.RealizedPnLSince(ctx, portfolioID, domain.WeekStart(now))
	if err != nil {
		return 0, 0, fmt.Errorf("weekly realized: %w", err)
	}
	return daily, weekly, nil
}

// fees devuelve el modelo de fees, con rate opcional por orden.
func (pe *Engine) fees(override *float64) domain.FeeModel {
	rate := pe.cfg.FeeRate
	if override != nil {
		rate = *override
	}
	rate = math.Max(rate, 0)
	if strings.EqualFold(pe.cfg.FeeModel, FeeModelCurve) {
		return domain.CurveFee(rate)
	}
	return domain.FlatFee(rate)
}

func portfolioName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return domain.DefaultPortfolioName
	}
	return name
}
