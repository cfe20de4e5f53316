package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/polypaper/internal/adapters/storage"
	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

func openStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createPortfolio(t *testing.T, db ports.Ledger, name string) domain.Portfolio {
	t.Helper()
	pf, err := db.CreatePortfolio(context.Background(), domain.Portfolio{
		Name:            name,
		StartingBalance: 1000,
		CashBalance:     1000,
		PeakValue:       1000,
		Risk:            domain.DefaultRiskConfig(),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	return pf
}

func TestSQLiteStorage_PortfolioLifecycle(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	_, err := db.ActivePortfolio(ctx, "default")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := createPortfolio(t, db, "default")
	second := createPortfolio(t, db, "default")
	assert.NotEqual(t, first.ID, second.ID)

	active, err := db.ActivePortfolio(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, 1000.0, active.StartingBalance)
	assert.Equal(t, domain.DefaultRiskConfig(), active.Risk)
	assert.Equal(t, now, active.CreatedAt)
	assert.True(t, active.Active)

	active.CashBalance = 900
	active.PeakValue = 1050
	active.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, db.UpdatePortfolio(ctx, active))

	reloaded, err := db.ActivePortfolio(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 900.0, reloaded.CashBalance)
	assert.Equal(t, 1050.0, reloaded.PeakValue)
}

func TestSQLiteStorage_PositionsUniqueWhileOpen(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	pf := createPortfolio(t, db, "default")

	pos := domain.Position{
		PortfolioID: pf.ID, TokenID: "12345678901234567890", Side: domain.SideYes,
		MarketQuestion: "Will it rain?", Shares: 100, AvgEntryPrice: 0.4, CurrentPrice: 0.4,
		OpenedAt: now, UpdatedAt: now,
	}
	saved, err := db.SavePosition(ctx, pos)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	// segunda fila abierta para la misma clave viola el índice parcial
	_, err = db.SavePosition(ctx, pos)
	assert.Error(t, err)

	saved.Close(now.Add(time.Hour))
	_, err = db.SavePosition(ctx, saved)
	require.NoError(t, err)

	// cerrada es terminal
	_, err = db.SavePosition(ctx, saved)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = db.OpenPosition(ctx, pf.ID, pos.Key())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// tras cerrar se puede reabrir la misma clave
	reopened, err := db.SavePosition(ctx, pos)
	require.NoError(t, err)
	got, err := db.OpenPosition(ctx, pf.ID, pos.Key())
	require.NoError(t, err)
	assert.Equal(t, reopened.ID, got.ID)
	assert.Equal(t, "Will it rain?", got.MarketQuestion)

	require.NoError(t, db.UpdatePositionPrices(ctx, map[int64]float64{got.ID: 0.55}, now))
	open, err := db.OpenPositions(ctx, pf.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 0.55, open[0].CurrentPrice)
}

func TestSQLiteStorage_TradesChronologicalWithLimit(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	pf := createPortfolio(t, db, "default")

	for i := 0; i < 5; i++ {
		_, err := db.InsertTrade(ctx, domain.Trade{
			Ref: "ref-" + string(rune('a'+i)), PortfolioID: pf.ID, TokenID: "12345678901234567890",
			Side: domain.SideYes, Action: domain.ActionBuy, Shares: float64(i + 1), Price: 0.5,
			TotalCost: 0.5 * float64(i+1), ExecutedAt: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	all, err := db.Trades(ctx, pf.ID, ports.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 1.0, all[0].Shares)
	assert.Equal(t, now, all[0].ExecutedAt)

	last, err := db.Trades(ctx, pf.ID, ports.TradeFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, 4.0, last[0].Shares)
	assert.Equal(t, 5.0, last[1].Shares)

	since, err := db.Trades(ctx, pf.ID, ports.TradeFilter{Since: now.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestSQLiteStorage_RealizedPnLSince(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	pf := createPortfolio(t, db, "default")

	insert := func(action domain.Action, price, entry, fee float64, at time.Time) {
		_, err := db.InsertTrade(ctx, domain.Trade{
			PortfolioID: pf.ID, TokenID: "12345678901234567890", Side: domain.SideNo,
			Action: action, Shares: 10, Price: price, Fee: fee, EntryAvg: entry, ExecutedAt: at,
		})
		require.NoError(t, err)
	}
	insert(domain.ActionBuy, 0.5, 0.5, 0, now.Add(-48*time.Hour))
	insert(domain.ActionSell, 0.3, 0.5, 0, now.Add(-48*time.Hour)) // -2, fuera de hoy
	insert(domain.ActionSell, 0.4, 0.5, 0.1, now)                   // -1.1
	insert(domain.ActionSell, 0.7, 0.5, 0, now.Add(time.Minute))    // +2

	today, err := db.RealizedPnLSince(ctx, pf.ID, domain.DayStart(now))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, today, 1e-9)

	all, err := db.RealizedPnLSince(ctx, pf.ID, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, -1.1, all, 1e-9)
}

func TestSQLiteStorage_SnapshotsUpsert(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	pf := createPortfolio(t, db, "default")

	_, err := db.SnapshotBefore(ctx, pf.ID, "2026-03-04")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	snap := domain.DailySnapshot{PortfolioID: pf.ID, Date: "2026-03-03", Cash: 900, PositionsValue: 90, TotalValue: 990, DailyPnL: -10, CreatedAt: now}
	require.NoError(t, db.UpsertSnapshot(ctx, snap))
	snap.Date = "2026-03-04"
	require.NoError(t, db.UpsertSnapshot(ctx, snap))
	snap.TotalValue = 1010
	snap.DailyPnL = 20
	require.NoError(t, db.UpsertSnapshot(ctx, snap))

	all, err := db.Snapshots(ctx, pf.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2026-03-03", all[0].Date)
	assert.Equal(t, 1010.0, all[1].TotalValue)

	prev, err := db.SnapshotBefore(ctx, pf.ID, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 990.0, prev.TotalValue)
}

func TestSQLiteStorage_InTxRollsBack(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	pf := createPortfolio(t, db, "default")

	boom := errors.New("boom")
	err := db.InTx(ctx, func(tx ports.Ledger) error {
		p, err := tx.ActivePortfolio(ctx, "default")
		if err != nil {
			return err
		}
		p.CashBalance = 1
		if err := tx.UpdatePortfolio(ctx, p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.ActivePortfolio(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, pf.CashBalance, got.CashBalance)

	require.NoError(t, db.InTx(ctx, func(tx ports.Ledger) error {
		p, err := tx.ActivePortfolio(ctx, "default")
		if err != nil {
			return err
		}
		p.CashBalance = 500
		return tx.UpdatePortfolio(ctx, p)
	}))
	got, err = db.ActivePortfolio(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.CashBalance)
}

func TestSQLiteStorage_FileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portfolio.db")

	db, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	createPortfolio(t, db, "default")
	require.NoError(t, db.Close())

	// reabrir aplica schema y migraciones sobre una base existente
	db, err = storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	defer db.Close()

	pf, err := db.ActivePortfolio(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, pf.CashBalance)
}
