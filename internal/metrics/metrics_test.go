package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

func TestObserveOrder_CountsRiskRule(t *testing.T) {
	before := testutil.ToFloat64(RiskRejections.WithLabelValues(string(domain.RuleMaxPosition)))

	ObserveOrder("BUY", &domain.RiskError{Rule: domain.RuleMaxPosition, Reason: "too big"})
	ObserveOrder("BUY", errors.New("boom"))
	ObserveOrder("BUY", nil)

	assert.Equal(t, before+1, testutil.ToFloat64(RiskRejections.WithLabelValues(string(domain.RuleMaxPosition))))
	assert.GreaterOrEqual(t, testutil.ToFloat64(OrdersTotal.WithLabelValues("BUY", "failed")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(OrdersTotal.WithLabelValues("BUY", "filled")), 1.0)
}

func TestObservePortfolio_SetsGauges(t *testing.T) {
	ObservePortfolio(domain.PortfolioView{Name: "metrics-test", TotalValue: 1234.5, DrawdownPct: 0.05})
	assert.Equal(t, 1234.5, testutil.ToFloat64(PortfolioValue.WithLabelValues("metrics-test")))
	assert.Equal(t, 0.05, testutil.ToFloat64(PortfolioDrawdown.WithLabelValues("metrics-test")))
}
