package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// --- portfolios ---

const portfolioCols = `id, name, starting_balance, cash_balance, peak_value,
	created_at, updated_at, risk_config, active`

func scanPortfolio(row interface{ Scan(...any) error }) (domain.Portfolio, error) {
	var (
		p                domain.Portfolio
		created, updated string
		riskJSON         string
		active           int
	)
	if err := row.Scan(&p.ID, &p.Name, &p.StartingBalance, &p.CashBalance, &p.PeakValue,
		&created, &updated, &riskJSON, &active); err != nil {
		return domain.Portfolio{}, err
	}
	p.CreatedAt = parseTS(created)
	p.UpdatedAt = parseTS(updated)
	p.Active = active == 1

	risk := domain.DefaultRiskConfig()
	if riskJSON != "" {
		if err := json.Unmarshal([]byte(riskJSON), &risk); err != nil {
			return domain.Portfolio{}, fmt.Errorf("decode risk_config: %w", err)
		}
	}
	p.Risk = risk.WithDefaults()
	return p, nil
}

// ActivePortfolio devuelve el portfolio activo con ese nombre.
func (s *queries) ActivePortfolio(ctx context.Context, name string) (domain.Portfolio, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+portfolioCols+` FROM portfolios
		 WHERE name = ? AND active = 1 ORDER BY id DESC LIMIT 1`, name)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Portfolio{}, fmt.Errorf("storage.ActivePortfolio: no active portfolio %q, run init first: %w",
			name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("storage.ActivePortfolio: %w", err)
	}
	return p, nil
}

// CreatePortfolio desactiva el portfolio activo con el mismo nombre y crea uno nuevo.
func (s *queries) CreatePortfolio(ctx context.Context, p domain.Portfolio) (domain.Portfolio, error) {
	riskJSON, err := json.Marshal(p.Risk)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("storage.CreatePortfolio: encode risk: %w", err)
	}
	if _, err := s.q.ExecContext(ctx,
		`UPDATE portfolios SET active = 0, updated_at = ? WHERE name = ? AND active = 1`,
		formatTS(p.CreatedAt), p.Name,
	); err != nil {
		return domain.Portfolio{}, fmt.Errorf("storage.CreatePortfolio: deactivate %q: %w", p.Name, err)
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO portfolios
			(name, starting_balance, cash_balance, peak_value, created_at, updated_at, risk_config, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		p.Name, p.StartingBalance, p.CashBalance, p.PeakValue,
		formatTS(p.CreatedAt), formatTS(p.UpdatedAt), string(riskJSON),
	)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("storage.CreatePortfolio: insert: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return domain.Portfolio{}, fmt.Errorf("storage.CreatePortfolio: last id: %w", err)
	}
	p.Active = true
	return p, nil
}

// UpdatePortfolio persiste caja y pico.
func (s *queries) UpdatePortfolio(ctx context.Context, p domain.Portfolio) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE portfolios SET cash_balance = ?, peak_value = ?, updated_at = ? WHERE id = ?`,
		p.CashBalance, p.PeakValue, formatTS(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePortfolio: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdatePortfolio: portfolio %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// --- positions ---

const positionCols = `id, portfolio_id, token_id, COALESCE(market_question, ''), side,
	shares, avg_entry, current_price, opened_at, updated_at, closed, closed_at`

func scanPosition(row interface{ Scan(...any) error }) (domain.Position, error) {
	var (
		p               domain.Position
		side            string
		opened, updated string
		closed          int
		closedAt        sql.NullString
	)
	if err := row.Scan(&p.ID, &p.PortfolioID, &p.TokenID, &p.MarketQuestion, &side,
		&p.Shares, &p.AvgEntryPrice, &p.CurrentPrice, &opened, &updated, &closed, &closedAt); err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.Side(side)
	p.OpenedAt = parseTS(opened)
	p.UpdatedAt = parseTS(updated)
	p.Closed = closed == 1
	if closedAt.Valid {
		t := parseTS(closedAt.String)
		p.ClosedAt = &t
	}
	return p, nil
}

// OpenPositions devuelve las posiciones abiertas en orden de apertura.
func (s *queries) OpenPositions(ctx context.Context, portfolioID int64) ([]domain.Position, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+positionCols+` FROM positions
		 WHERE portfolio_id = ? AND closed = 0 ORDER BY opened_at, id`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenPositions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.OpenPositions: scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OpenPosition devuelve la posición abierta para key.
func (s *queries) OpenPosition(ctx context.Context, portfolioID int64, key domain.PositionKey) (domain.Position, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+positionCols+` FROM positions
		 WHERE portfolio_id = ? AND token_id = ? AND side = ? AND closed = 0`,
		portfolioID, key.TokenID, string(key.Side))
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, fmt.Errorf("storage.OpenPosition: no open %s position: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("storage.OpenPosition: %w", err)
	}
	return p, nil
}

// SavePosition inserta (ID == 0) o actualiza una posición. Una posición
// cerrada no vuelve a modificarse.
func (s *queries) SavePosition(ctx context.Context, p domain.Position) (domain.Position, error) {
	closed := 0
	var closedAt any
	if p.Closed {
		closed = 1
		if p.ClosedAt != nil {
			closedAt = formatTS(*p.ClosedAt)
		}
	}

	if p.ID == 0 {
		res, err := s.q.ExecContext(ctx, `
			INSERT INTO positions
				(portfolio_id, token_id, market_question, side, shares, avg_entry,
				 current_price, opened_at, updated_at, closed, closed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.PortfolioID, p.TokenID, p.MarketQuestion, string(p.Side), p.Shares, p.AvgEntryPrice,
			p.CurrentPrice, formatTS(p.OpenedAt), formatTS(p.UpdatedAt), closed, closedAt,
		)
		if err != nil {
			return domain.Position{}, fmt.Errorf("storage.SavePosition: insert %s: %w", p.Key(), err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return domain.Position{}, fmt.Errorf("storage.SavePosition: last id: %w", err)
		}
		return p, nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE positions
		SET shares = ?, avg_entry = ?, current_price = ?, updated_at = ?, closed = ?, closed_at = ?
		WHERE id = ? AND closed = 0`,
		p.Shares, p.AvgEntryPrice, p.CurrentPrice, formatTS(p.UpdatedAt), closed, closedAt, p.ID,
	)
	if err != nil {
		return domain.Position{}, fmt.Errorf("storage.SavePosition: update %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Position{}, fmt.Errorf("storage.SavePosition: open position %d: %w", p.ID, domain.ErrNotFound)
	}
	return p, nil
}

// UpdatePositionPrices guarda el último precio conocido de cada posición abierta.
func (s *queries) UpdatePositionPrices(ctx context.Context, prices map[int64]float64, at time.Time) error {
	ts := formatTS(at)
	for id, price := range prices {
		if _, err := s.q.ExecContext(ctx,
			`UPDATE positions SET current_price = ?, updated_at = ? WHERE id = ? AND closed = 0`,
			price, ts, id,
		); err != nil {
			return fmt.Errorf("storage.UpdatePositionPrices: position %d: %w", id, err)
		}
	}
	return nil
}
