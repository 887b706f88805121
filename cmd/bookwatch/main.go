package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/uhyunpark/bookwatch/params"
	"github.com/uhyunpark/bookwatch/pkg/client"
	"github.com/uhyunpark/bookwatch/pkg/dashboard"
	"github.com/uhyunpark/bookwatch/pkg/journal"
	"github.com/uhyunpark/bookwatch/pkg/metrics"
	"github.com/uhyunpark/bookwatch/pkg/order"
	"github.com/uhyunpark/bookwatch/pkg/poller"
	"github.com/uhyunpark/bookwatch/pkg/store"
	"github.com/uhyunpark/bookwatch/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jr := openJournal(cfg.Journal.Path, sugar)
	defer jr.Close()

	// ---- API client ----
	api := client.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.Timeout)
	api.Logger = sugar.Named("client")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.Health(ctx); err != nil {
		// Not fatal: the poller keeps the last good view and retries every interval.
		sugar.Warnw("exchange_unreachable", "base_url", cfg.Exchange.BaseURL, "err", err)
	}

	// ---- Store + poller ----
	st := store.New(
		store.WithTradeWindow(cfg.Sync.TradeWindow),
		store.WithTradeDedup(cfg.Sync.DedupTrades),
	)
	p := poller.New(api, st, util.RealClock{}, cfg.Sync.PollInterval)
	p.Logger = sugar.Named("poller")
	p.Metrics = m

	// ---- Order form ----
	form := order.NewController(api, p, util.RealClock{})
	form.Journal = jr
	form.Logger = sugar.Named("order")
	form.Metrics = m

	// ---- Dashboard ----
	dash := dashboard.NewServer(st, form, jr, reg, sugar.Named("dashboard"))
	dash.SetAllowedOrigins(cfg.Dashboard.AllowedOrigins)

	sugar.Infow("bookwatch_starting",
		"base_url", cfg.Exchange.BaseURL,
		"poll_interval_ms", cfg.Sync.PollInterval.Milliseconds(),
		"trade_window", cfg.Sync.TradeWindow,
		"dedup_trades", cfg.Sync.DedupTrades,
		"dashboard_addr", cfg.Dashboard.Addr)

	p.Start(ctx)

	if err := dash.Start(ctx, cfg.Dashboard.Addr); err != nil {
		sugar.Errorw("dashboard_failed", "err", err)
	}

	// Stop is idempotent; the poller also stops itself when ctx is done.
	stop()
	p.Stop()
	sugar.Infow("bookwatch_stopped", "last_seq", st.LastSeq())
}

// openJournal returns a pebble-backed journal at path, or a no-op journal when
// path is empty or cannot be opened.
func openJournal(path string, logger *zap.SugaredLogger) journal.Journal {
	if path == "" {
		logger.Infow("journal_disabled")
		return journal.NewNopJournal()
	}
	j, err := journal.OpenPebble(path)
	if err != nil {
		logger.Warnw("journal_open_failed", "path", path, "err", err)
		return journal.NewNopJournal()
	}
	logger.Infow("journal_opened", "path", path)
	return j
}
