package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

// --- trades ---

const tradeCols = `id, COALESCE(ref, ''), portfolio_id, token_id, COALESCE(market_question, ''),
	side, action, shares, price, fee, total_cost, COALESCE(reasoning, ''), executed_at,
	COALESCE(entry_avg, 0)`

// InsertTrade añade un trade. Los trades nunca se modifican.
func (s *queries) InsertTrade(ctx context.Context, t domain.Trade) (domain.Trade, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO trades
			(ref, portfolio_id, token_id, market_question, side, action, shares,
			 price, fee, total_cost, reasoning, executed_at, entry_avg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(t.Ref), t.PortfolioID, t.TokenID, t.MarketQuestion, string(t.Side), string(t.Action),
		t.Shares, t.Price, t.Fee, t.TotalCost, t.Reasoning, formatTS(t.ExecutedAt), t.EntryAvg,
	)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("storage.InsertTrade: %s %s: %w", t.Action, t.Key(), err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return domain.Trade{}, fmt.Errorf("storage.InsertTrade: last id: %w", err)
	}
	return t, nil
}

// Trades devuelve los trades en orden cronológico. Con f.Limit > 0 sólo los
// f.Limit más recientes.
func (s *queries) Trades(ctx context.Context, portfolioID int64, f ports.TradeFilter) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE portfolio_id = ? AND executed_at >= ?
		ORDER BY executed_at DESC, id DESC`
	args := []any{portfolioID, formatTS(f.Since)}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.Trades: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t            domain.Trade
			side, action string
			executed     string
		)
		if err := rows.Scan(&t.ID, &t.Ref, &t.PortfolioID, &t.TokenID, &t.MarketQuestion,
			&side, &action, &t.Shares, &t.Price, &t.Fee, &t.TotalCost, &t.Reasoning,
			&executed, &t.EntryAvg); err != nil {
			return nil, fmt.Errorf("storage.Trades: scan row: %w", err)
		}
		t.Side = domain.Side(side)
		t.Action = domain.Action(action)
		t.ExecutedAt = parseTS(executed)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.Trades: %w", err)
	}

	// se consultan descendentes para aplicar el LIMIT; se devuelven ascendentes
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RealizedPnLSince suma (price - entry_avg) * shares - fee de los SELL desde since.
func (s *queries) RealizedPnLSince(ctx context.Context, portfolioID int64, since time.Time) (float64, error) {
	var pnl float64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((price - entry_avg) * shares - fee), 0)
		FROM trades
		WHERE portfolio_id = ? AND action = 'SELL' AND entry_avg IS NOT NULL AND executed_at >= ?`,
		portfolioID, formatTS(since),
	).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("storage.RealizedPnLSince: %w", err)
	}
	return pnl, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- daily snapshots ---

const snapshotCols = `portfolio_id, date, cash_balance, positions_value, total_value,
	daily_pnl, COALESCE(created_at, '')`

func scanSnapshot(row interface{ Scan(...any) error }) (domain.DailySnapshot, error) {
	var (
		snap    domain.DailySnapshot
		created string
	)
	if err := row.Scan(&snap.PortfolioID, &snap.Date, &snap.Cash, &snap.PositionsValue,
		&snap.TotalValue, &snap.DailyPnL, &created); err != nil {
		return domain.DailySnapshot{}, err
	}
	snap.CreatedAt = parseTS(created)
	return snap, nil
}

// UpsertSnapshot guarda el snapshot del día, reemplazando uno previo del mismo día.
func (s *queries) UpsertSnapshot(ctx context.Context, snap domain.DailySnapshot) error {
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO daily_snapshots
			(portfolio_id, date, cash_balance, positions_value, total_value, daily_pnl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, date) DO UPDATE SET
			cash_balance    = excluded.cash_balance,
			positions_value = excluded.positions_value,
			total_value     = excluded.total_value,
			daily_pnl       = excluded.daily_pnl,
			created_at      = excluded.created_at`,
		snap.PortfolioID, snap.Date, snap.Cash, snap.PositionsValue, snap.TotalValue,
		snap.DailyPnL, formatTS(snap.CreatedAt),
	); err != nil {
		return fmt.Errorf("storage.UpsertSnapshot: %s: %w", snap.Date, err)
	}
	return nil
}

// Snapshots devuelve la curva de equity desde since, por fecha ascendente.
func (s *queries) Snapshots(ctx context.Context, portfolioID int64, since time.Time) ([]domain.DailySnapshot, error) {
	from := ""
	if !since.IsZero() {
		from = since.UTC().Format(domain.SnapshotDateLayout)
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+snapshotCols+` FROM daily_snapshots
		 WHERE portfolio_id = ? AND date >= ? ORDER BY date`, portfolioID, from)
	if err != nil {
		return nil, fmt.Errorf("storage.Snapshots: query: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.Snapshots: scan row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SnapshotBefore devuelve el último snapshot con fecha anterior a date.
func (s *queries) SnapshotBefore(ctx context.Context, portfolioID int64, date string) (domain.DailySnapshot, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+snapshotCols+` FROM daily_snapshots
		 WHERE portfolio_id = ? AND date < ? ORDER BY date DESC LIMIT 1`, portfolioID, date)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailySnapshot{}, fmt.Errorf("storage.SnapshotBefore: %s: %w", date, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DailySnapshot{}, fmt.Errorf("storage.SnapshotBefore: %w", err)
	}
	return snap, nil
}
