package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// TradeFilter acota una consulta de trades. Limit > 0 conserva los Limit
// trades más recientes; el resultado siempre va en orden cronológico.
type TradeFilter struct {
	Since time.Time
	Limit int
}

// Ledger es el acceso al libro de portfolios, posiciones, trades y snapshots.
// La misma interfaz sirve dentro y fuera de una transacción.
type Ledger interface {
	// ActivePortfolio devuelve el portfolio activo con ese nombre o domain.ErrNotFound.
	ActivePortfolio(ctx context.Context, name string) (domain.Portfolio, error)
	// CreatePortfolio desactiva cualquier portfolio activo con el mismo nombre
	// y crea uno nuevo.
	CreatePortfolio(ctx context.Context, p domain.Portfolio) (domain.Portfolio, error)
	// UpdatePortfolio persiste caja y pico.
	UpdatePortfolio(ctx context.Context, p domain.Portfolio) error

	OpenPositions(ctx context.Context, portfolioID int64) ([]domain.Position, error)
	// OpenPosition devuelve la posición abierta para key o domain.ErrNotFound.
	OpenPosition(ctx context.Context, portfolioID int64, key domain.PositionKey) (domain.Position, error)
	// SavePosition inserta (ID == 0) o actualiza una posición.
	SavePosition(ctx context.Context, p domain.Position) (domain.Position, error)
	// UpdatePositionPrices guarda el último precio conocido por ID de posición.
	UpdatePositionPrices(ctx context.Context, prices map[int64]float64, at time.Time) error

	InsertTrade(ctx context.Context, t domain.Trade) (domain.Trade, error)
	Trades(ctx context.Context, portfolioID int64, f TradeFilter) ([]domain.Trade, error)
	// RealizedPnLSince suma el P&L realizado (con signo) de los SELL desde since.
	RealizedPnLSince(ctx context.Context, portfolioID int64, since time.Time) (float64, error)

	UpsertSnapshot(ctx context.Context, s domain.DailySnapshot) error
	Snapshots(ctx context.Context, portfolioID int64, since time.Time) ([]domain.DailySnapshot, error)
	// SnapshotBefore devuelve el último snapshot anterior a date o domain.ErrNotFound.
	SnapshotBefore(ctx context.Context, portfolioID int64, date string) (domain.DailySnapshot, error)
}

// LedgerStore es el Ledger persistente con transacciones exclusivas.
type LedgerStore interface {
	Ledger

	// InTx ejecuta fn en una transacción de escritura exclusiva. Si fn
	// devuelve error se hace rollback de todo.
	InTx(ctx context.Context, fn func(tx Ledger) error) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
