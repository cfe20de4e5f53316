package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// Console implementa ports.Notifier con tablas de texto.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador que escribe a w (tests).
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Portfolio imprime el resumen y las posiciones abiertas.
func (c *Console) Portfolio(_ context.Context, v domain.PortfolioView) error {
	fmt.Fprintf(c.out, "\n=== PORTFOLIO %s ===\n", v.Name)
	fmt.Fprintf(c.out, "  Cash:            $%.2f\n", v.Cash)
	fmt.Fprintf(c.out, "  Positions value: $%.2f\n", v.PositionsValue)
	fmt.Fprintf(c.out, "  Total value:     $%.2f\n", v.TotalValue)
	fmt.Fprintf(c.out, "  P&L:             %s (%+.2f%%)\n", money(v.PnL), v.PnLPct)
	fmt.Fprintf(c.out, "  Peak / drawdown: $%.2f / %.2f%%\n", v.PeakValue, v.DrawdownPct*100)
	if v.Stale {
		fmt.Fprintln(c.out, "  !! some prices are cached (live quote unavailable)")
	}

	if len(v.Positions) == 0 {
		fmt.Fprintln(c.out, "\n  No open positions.")
		return nil
	}
	fmt.Fprintln(c.out)
	c.positionsTable(v.Positions)
	return nil
}

func (c *Console) positionsTable(positions []domain.PositionView) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Side", "Shares", "Avg", "Price", "Value", "Unreal P&L", "Src")
	for _, p := range positions {
		table.Append(
			truncate(p.MarketQuestion, 40),
			string(p.Side),
			fmt.Sprintf("%.2f", p.Shares),
			fmt.Sprintf("%.4f", p.AvgEntryPrice),
			fmt.Sprintf("%.4f", p.CurrentPrice),
			fmt.Sprintf("$%.2f", p.Value),
			fmt.Sprintf("%s (%+.1f%%)", money(p.UnrealizedPnL), p.UnrealizedPct),
			string(p.PriceSource),
		)
	}
	table.Render()
}

// Trades imprime el log de trades, más reciente primero.
func (c *Console) Trades(_ context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "No trades yet.")
		return nil
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Action", "Side", "Market", "Shares", "Price", "Fee", "Cash", "Reasoning")
	for _, t := range trades {
		table.Append(
			t.ExecutedAt.UTC().Format("01-02 15:04"),
			string(t.Action),
			string(t.Side),
			truncate(t.MarketQuestion, 32),
			fmt.Sprintf("%.2f", t.Shares),
			fmt.Sprintf("%.4f", t.Price),
			fmt.Sprintf("$%.4f", t.Fee),
			fmt.Sprintf("$%.2f", t.TotalCost),
			truncate(t.Reasoning, 40),
		)
	}
	table.Render()
	return nil
}

// Execution imprime una línea por orden ejecutada.
func (c *Console) Execution(_ context.Context, e domain.Execution) error {
	t := e.Trade
	fmt.Fprintf(c.out, "[%s] %s %.2f %s @ %.4f | fee $%.4f | levels %d",
		t.ExecutedAt.UTC().Format("15:04:05"), t.Action, t.Shares, t.Side, t.Price, t.Fee, e.Fill.LevelsConsumed)
	if t.Action == domain.ActionSell {
		fmt.Fprintf(c.out, " | realized %s", money(e.RealizedPnL))
	}
	if !e.Fill.FullyFilled {
		fmt.Fprint(c.out, " | PARTIAL")
	}
	fmt.Fprintf(c.out, " | cash $%.2f\n  %s\n", e.Cash, truncate(t.MarketQuestion, 70))
	return nil
}

// Snapshot imprime el snapshot diario guardado.
func (c *Console) Snapshot(_ context.Context, s domain.DailySnapshot) error {
	fmt.Fprintf(c.out, "snapshot %s: total $%.2f (cash $%.2f + positions $%.2f) | daily %s\n",
		s.Date, s.TotalValue, s.Cash, s.PositionsValue, money(s.DailyPnL))
	return nil
}

// Health imprime el chequeo de inicio de sesión.
func (c *Console) Health(_ context.Context, h domain.HealthReport) error {
	fmt.Fprintf(c.out, "\n=== HEALTH %s [%s] ===\n", h.Portfolio.Name, h.Status)
	fmt.Fprintf(c.out, "  Value $%.2f | daily %s (%+.2f%%)\n", h.Portfolio.TotalValue, money(h.DailyPnL), h.DailyPnLPct)
	fmt.Fprintf(c.out, "  Drawdown %.2f%% tier %s: %s\n", h.Portfolio.DrawdownPct*100, h.Tier, h.TierAction)
	fmt.Fprintf(c.out, "  Daily loss  $%.2f / $%.2f%s\n", h.DailyLoss, h.DailyLossLimit, breached(h.DailyLossBreached))
	fmt.Fprintf(c.out, "  Weekly loss $%.2f / $%.2f%s\n", h.WeeklyLoss, h.WeeklyLossLimit, breached(h.WeeklyLossBreached))
	fmt.Fprintf(c.out, "  Positions %d / %d | stops triggered %d\n", h.PositionCount, h.PositionLimit, h.StopsTriggered)
	if h.MaxConcentrationMarket != "" {
		fmt.Fprintf(c.out, "  Max concentration %.1f%% in %s\n", h.MaxConcentrationPct*100, truncate(h.MaxConcentrationMarket, 50))
	}

	if len(h.Positions) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Market", "Side", "Avg", "Price", "Stop", "")
		for _, p := range h.Positions {
			flag := ""
			if p.StopTriggered {
				flag = "STOP"
			}
			table.Append(
				truncate(p.MarketQuestion, 40),
				string(p.Side),
				fmt.Sprintf("%.4f", p.AvgEntryPrice),
				fmt.Sprintf("%.4f", p.CurrentPrice),
				fmt.Sprintf("%.4f", p.StopPrice),
				flag,
			)
		}
		table.Render()
	}

	for _, a := range h.Alerts {
		fmt.Fprintf(c.out, "  !! [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
	return nil
}

// Results imprime el resultado de cada recomendación ejecutada.
func (c *Console) Results(_ context.Context, results []domain.RecommendationResult) error {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "No recommendations.")
		return nil
	}
	var executed, rejected, skipped int
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Status", "Action", "Side", "Strategy", "Size", "Mid", "Spread", "Tier", "Reason")
	for i, r := range results {
		switch r.Status {
		case domain.StatusExecuted:
			executed++
		case domain.StatusRejected:
			rejected++
		case domain.StatusSkipped:
			skipped++
		}
		size := "-"
		if r.SizeUSD > 0 {
			size = fmt.Sprintf("$%.2f", r.SizeUSD)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			string(r.Status),
			string(r.Action),
			string(r.Side),
			r.Strategy,
			size,
			optPrice(r.CurrentPrice),
			optPrice(r.Spread),
			string(r.Tier),
			truncate(r.Reason, 50),
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "  %d executed | %d rejected | %d skipped\n", executed, rejected, skipped)
	return nil
}

func optPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *p)
}

func breached(b bool) string {
	if b {
		return "  BREACHED"
	}
	return ""
}

// money formatea un importe con signo: +$1.50 / -$0.25.
func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
