package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polypaper/config"
	"github.com/alejandrodnm/polypaper/internal/adapters/notify"
	"github.com/alejandrodnm/polypaper/internal/adapters/polymarket"
	"github.com/alejandrodnm/polypaper/internal/adapters/storage"
	"github.com/alejandrodnm/polypaper/internal/application/engine/executor"
	"github.com/alejandrodnm/polypaper/internal/application/engine/paper"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

const usage = `usage: paper [flags] <command> [command flags]

commands:
  init       create (or reset) a portfolio
  buy        simulate a BUY against the live order book
  sell       simulate a SELL of part of a position
  close      sell the whole position (both sides if -side is omitted)
  portfolio  show the valued portfolio
  trades     show the trade log
  snapshot   record today's equity snapshot
  report     performance report and live readiness
  health     session-start risk check
  execute    run advisor recommendations (JSON file or stdin)
  daemon     scheduled snapshots/health checks + /metrics

flags:
`

// app agrupa las dependencias compartidas por los comandos.
type app struct {
	cfg       *config.Config
	portfolio string
	ledger    *paper.Engine
	executor  *executor.Executor
	out       ports.Notifier
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	portfolio := flag.String("portfolio", "", "portfolio name (overrides config)")
	jsonOut := flag.Bool("json", false, "print results as JSON")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *portfolio != "" {
		cfg.Paper.Portfolio = *portfolio
	}
	setupLogger(cfg.Log)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase,
		polymarket.WithTimeout(cfg.Timeout()),
		polymarket.WithRetry(cfg.API.MaxRetries, 0),
		polymarket.WithBreaker(cfg.API.BreakerFailures, cfg.BreakerOpen()),
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		fail(fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err))
	}
	defer store.Close()

	ledger := paper.New(client, store, paper.Config{
		StartingBalance: cfg.Paper.StartingBalance,
		FeeRate:         cfg.Paper.FeeRate,
		FeeModel:        cfg.Paper.FeeModel,
		Risk:            cfg.Risk,
	})

	a := &app{
		cfg:       cfg,
		portfolio: cfg.Paper.Portfolio,
		ledger:    ledger,
		executor: executor.New(ledger, client, executor.Config{
			MinConfidence: cfg.Executor.MinConfidence,
			KellyCap:      cfg.Executor.KellyCap,
		}),
		out: notify.NewConsole(),
	}
	if *jsonOut {
		a.out = notify.NewJSON()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Debug("polypaper starting",
		"config", *configPath,
		"dsn", cfg.Storage.DSN,
		"portfolio", a.portfolio,
		"command", flag.Arg(0),
	)

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		store.Close()
		fail(err)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "init":
		return a.cmdInit(ctx, args)
	case "buy":
		return a.cmdBuy(ctx, args)
	case "sell":
		return a.cmdSell(ctx, args)
	case "close":
		return a.cmdClose(ctx, args)
	case "portfolio":
		return a.cmdPortfolio(ctx, args)
	case "trades":
		return a.cmdTrades(ctx, args)
	case "snapshot":
		return a.cmdSnapshot(ctx, args)
	case "report":
		return a.cmdReport(ctx, args)
	case "health":
		return a.cmdHealth(ctx, args)
	case "execute":
		return a.cmdExecute(ctx, args)
	case "daemon":
		return a.cmdDaemon(ctx, args)
	}
	flag.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// fail imprime el error en stderr y termina con código 1.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

// setupLogger escribe a stderr: stdout queda para tablas y JSON.
func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
