package ports

import (
	"context"

	"github.com/alejandrodnm/polypaper/internal/analytics"
	"github.com/alejandrodnm/polypaper/internal/domain"
)

// Notifier presenta resultados al usuario (tabla de consola o JSON).
type Notifier interface {
	Portfolio(ctx context.Context, view domain.PortfolioView) error
	Trades(ctx context.Context, trades []domain.Trade) error
	Execution(ctx context.Context, res domain.Execution) error
	Snapshot(ctx context.Context, snap domain.DailySnapshot) error
	Report(ctx context.Context, rep analytics.Report) error
	Health(ctx context.Context, h domain.HealthReport) error
	Results(ctx context.Context, results []domain.RecommendationResult) error
}
