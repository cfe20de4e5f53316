package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polypaper/internal/analytics"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

// Report reúne vista valorada, trades y snapshots y construye el informe de
// rendimiento. since a cero cubre toda la historia.
func (pe *Engine) Report(ctx context.Context, name string, since time.Time, cfg analytics.Config) (analytics.Report, error) {
	name = portfolioName(name)
	view, err := pe.Portfolio(ctx, name, true)
	if err != nil {
		return analytics.Report{}, fmt.Errorf("paper.Report: %w", err)
	}
	trades, err := pe.store.Trades(ctx, view.ID, ports.TradeFilter{})
	if err != nil {
		return analytics.Report{}, fmt.Errorf("paper.Report: trades: %w", err)
	}
	snaps, err := pe.store.Snapshots(ctx, view.ID, time.Time{})
	if err != nil {
		return analytics.Report{}, fmt.Errorf("paper.Report: snapshots: %w", err)
	}

	return analytics.BuildReport(analytics.ReportInput{
		View:      view,
		Trades:    trades,
		Snapshots: snaps,
		Since:     since,
		Now:       pe.now(),
		Config:    cfg,
	}), nil
}
