package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/polypaper/internal/application/engine"
	"github.com/alejandrodnm/polypaper/internal/domain"
)

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// optional devuelve nil para valores no positivos (flag no indicado).
func optional(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func (a *app) cmdInit(ctx context.Context, args []string) error {
	fs := newFlags("init")
	balance := fs.Float64("balance", 0, "starting balance in USD (default from config)")
	maxPos := fs.Float64("max-position-pct", 0, "max single order as a fraction of portfolio value")
	maxDD := fs.Float64("max-drawdown-pct", 0, "drawdown that halts new entries")
	maxOpen := fs.Int("max-positions", 0, "max concurrent open positions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	risk := a.cfg.Risk
	if *maxPos > 0 {
		risk.MaxPositionPct = *maxPos
	}
	if *maxDD > 0 {
		risk.MaxDrawdownPct = *maxDD
	}
	if *maxOpen > 0 {
		risk.MaxConcurrentPositions = *maxOpen
	}

	view, err := a.ledger.InitPortfolio(ctx, a.portfolio, *balance, &risk)
	if err != nil {
		return err
	}
	return a.out.Portfolio(ctx, view)
}

func (a *app) cmdBuy(ctx context.Context, args []string) error {
	fs := newFlags("buy")
	token := fs.String("token", "", "CLOB token id")
	side := fs.String("side", "YES", "YES or NO")
	size := fs.Float64("size", 0, "USD to spend")
	limit := fs.Float64("price", 0, "limit price (omit to walk the book)")
	reason := fs.String("reason", "", "reasoning stored with the trade")
	force := fs.Bool("force", false, "skip risk checks")
	approved := fs.Bool("approved", false, "human approval for large orders")
	fee := fs.Float64("fee", 0, "fee rate override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exec, err := a.ledger.PlaceOrder(ctx, engine.OrderRequest{
		Portfolio:  a.portfolio,
		TokenID:    *token,
		Side:       domain.Side(*side),
		Size:       *size,
		LimitPrice: optional(*limit),
		Reasoning:  *reason,
		Force:      *force,
		Approved:   *approved,
		FeeRate:    optional(*fee),
	})
	if err != nil {
		return err
	}
	return a.out.Execution(ctx, exec)
}

func (a *app) cmdSell(ctx context.Context, args []string) error {
	fs := newFlags("sell")
	token := fs.String("token", "", "CLOB token id")
	side := fs.String("side", "YES", "YES or NO")
	size := fs.Float64("size", 0, "USD notional to sell")
	shares := fs.Float64("shares", 0, "shares to sell (instead of -size)")
	limit := fs.Float64("price", 0, "limit price (omit to walk the book)")
	reason := fs.String("reason", "", "reasoning stored with the trade")
	fee := fs.Float64("fee", 0, "fee rate override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exec, err := a.ledger.Sell(ctx, engine.OrderRequest{
		Portfolio:  a.portfolio,
		TokenID:    *token,
		Side:       domain.Side(*side),
		Size:       *size,
		Shares:     *shares,
		LimitPrice: optional(*limit),
		Reasoning:  *reason,
		FeeRate:    optional(*fee),
	})
	if err != nil {
		return err
	}
	return a.out.Execution(ctx, exec)
}

func (a *app) cmdClose(ctx context.Context, args []string) error {
	fs := newFlags("close")
	token := fs.String("token", "", "CLOB token id")
	side := fs.String("side", "", "YES or NO (both when omitted)")
	reason := fs.String("reason", "", "reasoning stored with the trade")
	if err := fs.Parse(args); err != nil {
		return err
	}

	execs, err := a.ledger.ClosePosition(ctx, engine.CloseRequest{
		Portfolio: a.portfolio,
		TokenID:   *token,
		Side:      domain.Side(*side),
		Reasoning: *reason,
	})
	if err != nil {
		return err
	}
	for _, e := range execs {
		if err := a.out.Execution(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) cmdPortfolio(ctx context.Context, args []string) error {
	fs := newFlags("portfolio")
	cached := fs.Bool("cached", false, "use stored prices, no network")
	if err := fs.Parse(args); err != nil {
		return err
	}
	view, err := a.ledger.Portfolio(ctx, a.portfolio, !*cached)
	if err != nil {
		return err
	}
	return a.out.Portfolio(ctx, view)
}

func (a *app) cmdTrades(ctx context.Context, args []string) error {
	fs := newFlags("trades")
	limit := fs.Int("limit", 20, "most recent N trades (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	trades, err := a.ledger.Trades(ctx, a.portfolio, *limit)
	if err != nil {
		return err
	}
	// más reciente primero
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return a.out.Trades(ctx, trades)
}

func (a *app) cmdSnapshot(ctx context.Context, args []string) error {
	if err := newFlags("snapshot").Parse(args); err != nil {
		return err
	}
	snap, err := a.ledger.Snapshot(ctx, a.portfolio)
	if err != nil {
		return err
	}
	return a.out.Snapshot(ctx, snap)
}

func (a *app) cmdReport(ctx context.Context, args []string) error {
	fs := newFlags("report")
	sinceFlag := fs.String("since", "", "only trades/snapshots from this date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var since time.Time
	if *sinceFlag != "" {
		t, err := time.Parse(domain.SnapshotDateLayout, *sinceFlag)
		if err != nil {
			return fmt.Errorf("%w: -since must be YYYY-MM-DD, got %q", domain.ErrValidation, *sinceFlag)
		}
		since = t
	}

	rep, err := a.ledger.Report(ctx, a.portfolio, since, a.cfg.Report())
	if err != nil {
		return err
	}
	return a.out.Report(ctx, rep)
}

func (a *app) cmdHealth(ctx context.Context, args []string) error {
	if err := newFlags("health").Parse(args); err != nil {
		return err
	}
	h, err := a.ledger.Health(ctx, a.portfolio)
	if err != nil {
		return err
	}
	return a.out.Health(ctx, h)
}

func (a *app) cmdExecute(ctx context.Context, args []string) error {
	fs := newFlags("execute")
	file := fs.String("file", "-", "recommendations JSON (object or array); - for stdin")
	dryRun := fs.Bool("dry-run", false, "size and validate without trading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var data []byte
	var err error
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read recommendations: %w", err)
	}
	recs, err := domain.DecodeRecommendations(data)
	if err != nil {
		return err
	}

	results := a.executor.ExecuteBatch(ctx, a.portfolio, recs, *dryRun)
	return a.out.Results(ctx, results)
}
