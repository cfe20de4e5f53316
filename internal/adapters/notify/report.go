package notify

import (
	"context"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polypaper/internal/analytics"
)

// Report imprime el informe de rendimiento completo.
func (c *Console) Report(_ context.Context, r analytics.Report) error {
	s := r.Summary
	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  PERFORMANCE REPORT %s\n", s.Portfolio)
	if r.Since != nil {
		fmt.Fprintf(c.out, "  since %s\n", r.Since.Format("2006-01-02"))
	}
	fmt.Fprintf(c.out, "  generated %s (%.1f days active)\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04"), s.DaysActive)
	fmt.Fprintf(c.out, "========================================================\n")

	fmt.Fprintf(c.out, "\n  --- SUMMARY ---\n")
	fmt.Fprintf(c.out, "  Starting balance:      $%.2f\n", s.StartingBalance)
	fmt.Fprintf(c.out, "  Current value:         $%.2f\n", s.CurrentValue)
	fmt.Fprintf(c.out, "  Cash / positions:      $%.2f / $%.2f\n", s.Cash, s.PositionsValue)
	fmt.Fprintf(c.out, "  Total return:          %s (%+.2f%%)\n", money(s.TotalReturnUSD), s.TotalReturnPct)
	fmt.Fprintf(c.out, "  Annualized return:     %+.2f%%\n", s.AnnualizedReturnPct)

	rk := r.Risk
	fmt.Fprintf(c.out, "\n  --- RISK ---\n")
	fmt.Fprintf(c.out, "  Sharpe ratio:          %s\n", ratio(rk.Sharpe))
	fmt.Fprintf(c.out, "  Sortino ratio:         %s\n", ratio(rk.Sortino))
	fmt.Fprintf(c.out, "  Max drawdown:          %.2f%% ($%.2f, %d periods)\n",
		rk.Drawdown.MaxDrawdownPct*100, rk.Drawdown.MaxDrawdownUSD, rk.Drawdown.DurationPeriods)
	fmt.Fprintf(c.out, "  Current drawdown:      %.2f%% (tier %s)\n", rk.Drawdown.CurrentDrawdownPct*100, rk.Tier)

	st := r.Stats
	fmt.Fprintf(c.out, "\n  --- TRADES ---\n")
	fmt.Fprintf(c.out, "  Closed round trips:    %d (%d W / %d L / %d BE)\n", st.ClosedTrades, st.Winners, st.Losers, st.Breakeven)
	fmt.Fprintf(c.out, "  Win rate:              %.1f%%\n", st.WinRate*100)
	fmt.Fprintf(c.out, "  Avg win / avg loss:    %s / %s\n", money(st.AvgWin), money(st.AvgLoss))
	fmt.Fprintf(c.out, "  Profit factor:         %s\n", ratio(st.ProfitFactor))
	fmt.Fprintf(c.out, "  Avg hold:              %.1f h\n", st.AvgHoldHours)
	fmt.Fprintf(c.out, "  Fees paid:             $%.4f\n", st.TotalFees)

	if len(r.Strategies) > 0 {
		names := make([]string, 0, len(r.Strategies))
		for name := range r.Strategies {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(c.out, "\n")
		table := tablewriter.NewWriter(c.out)
		table.Header("Strategy", "Trades", "Win%", "P&L", "PF")
		for _, name := range names {
			ss := r.Strategies[name]
			table.Append(
				name,
				fmt.Sprintf("%d", ss.ClosedTrades),
				fmt.Sprintf("%.1f", ss.WinRate*100),
				money(ss.TotalPnL),
				ratio(ss.ProfitFactor),
			)
		}
		table.Render()
	}

	c.tripsTable("BEST", r.Best)
	c.tripsTable("WORST", r.Worst)

	if len(r.OpenEntries) > 0 {
		fmt.Fprintf(c.out, "\n  --- OPEN LOTS (%d) ---\n", len(r.OpenEntries))
		for _, o := range r.OpenEntries {
			fmt.Fprintf(c.out, "  %-40s %-3s %.2f @ %.4f [%s]\n",
				truncate(o.MarketQuestion, 40), o.Side, o.Shares, o.EntryPrice, o.Strategy)
		}
	}
	if len(r.Orphans) > 0 {
		fmt.Fprintf(c.out, "\n  !! %d SELL(s) without a matching BUY in the log\n", len(r.Orphans))
		for _, o := range r.Orphans {
			fmt.Fprintf(c.out, "     trade #%d %s %.2f @ %.4f\n", o.TradeID, o.Side, o.Shares, o.Price)
		}
	}

	fmt.Fprintf(c.out, "\n  --- COMPLIANCE ---\n")
	if len(r.Violations) == 0 {
		fmt.Fprintf(c.out, "  No violations.\n")
	}
	for _, v := range r.Violations {
		fmt.Fprintf(c.out, "  [%s] %s: %s\n", v.Severity, v.Type, v.Message)
	}

	rd := r.Readiness
	fmt.Fprintf(c.out, "\n  --- LIVE READINESS (%d/%d) ---\n", rd.Passed, rd.Total)
	for _, cr := range rd.Criteria {
		mark := "✗"
		if cr.Passed {
			mark = "✓"
		}
		fmt.Fprintf(c.out, "  %s %-14s %s (required %g)\n", mark, cr.Name, ratio(cr.Actual), cr.Required)
	}
	if rd.Ready {
		fmt.Fprintf(c.out, "  >>> READY for live trading with minimum capital.\n")
	} else {
		for _, g := range rd.Gaps {
			fmt.Fprintf(c.out, "  >> %s\n", g)
		}
		fmt.Fprintf(c.out, "  >>> NOT READY. Keep paper trading.\n")
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintf(c.out, "\n  --- SUGGESTIONS ---\n")
		for i, sg := range r.Suggestions {
			fmt.Fprintf(c.out, "  %d. %s\n", i+1, sg)
		}
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Console) tripsTable(title string, trips []analytics.RoundTrip) {
	if len(trips) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n  --- %s TRADES ---\n", title)
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Side", "Shares", "Entry", "Exit", "P&L", "Ret%", "Strategy")
	for _, t := range trips {
		table.Append(
			truncate(t.MarketQuestion, 36),
			string(t.Side),
			fmt.Sprintf("%.2f", t.Shares),
			fmt.Sprintf("%.4f", t.EntryPrice),
			fmt.Sprintf("%.4f", t.ExitPrice),
			money(t.PnL),
			fmt.Sprintf("%+.2f", t.ReturnPct),
			t.Strategy,
		)
	}
	table.Render()
}

func ratio(r analytics.Ratio) string {
	if r.IsInf() {
		return "INF"
	}
	return fmt.Sprintf("%.2f", float64(r))
}
