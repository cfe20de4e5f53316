package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alejandrodnm/polypaper/internal/analytics"
	"github.com/alejandrodnm/polypaper/internal/domain"
)

// JSON implementa ports.Notifier escribiendo un documento JSON por llamada,
// para consumo desde scripts.
type JSON struct {
	enc *json.Encoder
}

// NewJSON crea un notificador JSON sobre stdout.
func NewJSON() *JSON { return NewJSONWriter(os.Stdout) }

// NewJSONWriter crea un notificador JSON sobre w.
func NewJSONWriter(w io.Writer) *JSON {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSON{enc: enc}
}

func (j *JSON) write(v any) error {
	if err := j.enc.Encode(v); err != nil {
		return fmt.Errorf("notify.JSON: %w", err)
	}
	return nil
}

func (j *JSON) Portfolio(_ context.Context, v domain.PortfolioView) error { return j.write(v) }

func (j *JSON) Trades(_ context.Context, trades []domain.Trade) error {
	if trades == nil {
		trades = []domain.Trade{}
	}
	return j.write(trades)
}

func (j *JSON) Execution(_ context.Context, e domain.Execution) error { return j.write(e) }

func (j *JSON) Snapshot(_ context.Context, s domain.DailySnapshot) error { return j.write(s) }

func (j *JSON) Report(_ context.Context, r analytics.Report) error { return j.write(r) }

func (j *JSON) Health(_ context.Context, h domain.HealthReport) error { return j.write(h) }

func (j *JSON) Results(_ context.Context, results []domain.RecommendationResult) error {
	if results == nil {
		results = []domain.RecommendationResult{}
	}
	return j.write(results)
}
