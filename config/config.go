package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polypaper/internal/analytics"
	"github.com/alejandrodnm/polypaper/internal/domain"
)

// Config es la configuración completa del paper trader.
type Config struct {
	API       APIConfig         `yaml:"api"`
	Storage   StorageConfig     `yaml:"storage"`
	Paper     PaperConfig       `yaml:"paper"`
	Risk      domain.RiskConfig `yaml:"risk"`
	Analytics AnalyticsConfig   `yaml:"analytics"`
	Executor  ExecutorConfig    `yaml:"executor"`
	Daemon    DaemonConfig      `yaml:"daemon"`
	Log       LogConfig         `yaml:"log"`
}

// APIConfig contiene los base URLs de las APIs y la política de red.
type APIConfig struct {
	CLOBBase           string `yaml:"clob_base"`
	GammaBase          string `yaml:"gamma_base"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	MaxRetries         int    `yaml:"max_retries"`
	BreakerFailures    uint32 `yaml:"breaker_failures"`
	BreakerOpenSeconds int    `yaml:"breaker_open_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// PaperConfig son los valores por defecto de la simulación.
type PaperConfig struct {
	Portfolio       string  `yaml:"portfolio"`
	StartingBalance float64 `yaml:"starting_balance"`
	FeeRate         float64 `yaml:"fee_rate"`
	FeeModel        string  `yaml:"fee_model"` // flat | curve
}

// AnalyticsConfig parametriza el informe de rendimiento.
type AnalyticsConfig struct {
	RiskFreeRate   float64              `yaml:"risk_free_rate"`
	PeriodsPerYear float64              `yaml:"periods_per_year"`
	OversizedPct   float64              `yaml:"oversized_pct"`
	Readiness      analytics.Thresholds `yaml:"readiness"`
}

// ExecutorConfig son los umbrales del ejecutor de recomendaciones.
type ExecutorConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	KellyCap      float64 `yaml:"kelly_cap"`
}

// DaemonConfig controla los jobs periódicos.
type DaemonConfig struct {
	SnapshotCron string `yaml:"snapshot_cron"`
	HealthCron   string `yaml:"health_cron"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Un archivo inexistente no es error: se usan los valores por defecto.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Risk.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: risk: %w", err)
	}
	if cfg.Paper.FeeModel != "flat" && cfg.Paper.FeeModel != "curve" {
		return nil, fmt.Errorf("config.Load: %w: paper.fee_model must be flat or curve, got %q",
			domain.ErrValidation, cfg.Paper.FeeModel)
	}
	return &cfg, nil
}

// Timeout devuelve el timeout por request.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// BreakerOpen devuelve cuánto tiempo permanece abierto el breaker.
func (c *Config) BreakerOpen() time.Duration {
	return time.Duration(c.API.BreakerOpenSeconds) * time.Second
}

// Ratios devuelve la configuración de Sharpe/Sortino.
func (c *Config) Ratios() analytics.RatioConfig {
	return analytics.RatioConfig{
		RiskFreeRate:   c.Analytics.RiskFreeRate,
		PeriodsPerYear: c.Analytics.PeriodsPerYear,
	}
}

// Report devuelve la configuración del informe.
func (c *Config) Report() analytics.Config {
	return analytics.Config{
		Ratios:       c.Ratios(),
		Readiness:    c.Analytics.Readiness,
		OversizedPct: c.Analytics.OversizedPct,
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYPAPER_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("POLYPAPER_PORTFOLIO"); v != "" {
		cfg.Paper.Portfolio = v
	}
	if v := os.Getenv("POLYPAPER_FEE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Paper.FeeRate = f
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 15
	}
	if cfg.API.MaxRetries <= 0 {
		cfg.API.MaxRetries = 3
	}
	if cfg.API.BreakerFailures == 0 {
		cfg.API.BreakerFailures = 5
	}
	if cfg.API.BreakerOpenSeconds <= 0 {
		cfg.API.BreakerOpenSeconds = 30
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "~/.polymarket-paper/portfolio.db"
	}
	if cfg.Paper.Portfolio == "" {
		cfg.Paper.Portfolio = domain.DefaultPortfolioName
	}
	if cfg.Paper.StartingBalance <= 0 {
		cfg.Paper.StartingBalance = 10000
	}
	if cfg.Paper.FeeRate < 0 {
		cfg.Paper.FeeRate = 0
	}
	if cfg.Paper.FeeModel == "" {
		cfg.Paper.FeeModel = "flat"
	}
	cfg.Risk = cfg.Risk.WithDefaults()
	if cfg.Analytics.RiskFreeRate <= 0 {
		cfg.Analytics.RiskFreeRate = analytics.DefaultRiskFreeRate
	}
	if cfg.Analytics.PeriodsPerYear <= 0 {
		cfg.Analytics.PeriodsPerYear = analytics.DefaultPeriodsPerYear
	}
	if cfg.Analytics.OversizedPct <= 0 {
		cfg.Analytics.OversizedPct = 0.20
	}
	cfg.Analytics.Readiness = cfg.Analytics.Readiness.WithDefaults()
	if cfg.Executor.MinConfidence <= 0 {
		cfg.Executor.MinConfidence = 0.5
	}
	if cfg.Executor.KellyCap <= 0 {
		cfg.Executor.KellyCap = 0.10
	}
	if cfg.Daemon.SnapshotCron == "" {
		cfg.Daemon.SnapshotCron = "55 23 * * *" // antes del cierre del día UTC
	}
	if cfg.Daemon.HealthCron == "" {
		cfg.Daemon.HealthCron = "0 */4 * * *"
	}
	if cfg.Daemon.MetricsAddr == "" {
		cfg.Daemon.MetricsAddr = ":9108"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
