package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/bookwatch/params"
	"github.com/uhyunpark/bookwatch/pkg/mockexchange"
	"github.com/uhyunpark/bookwatch/pkg/util"
)

func main() {
	seed := flag.Bool("seed", false, "rest a ladder of orders on both sides at startup")
	mid := flag.String("mid", "100", "mid price for -seed")
	step := flag.String("step", "0.5", "price step between seeded levels")
	levels := flag.Int("levels", 5, "levels per side for -seed")
	flag.Parse()

	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ex := mockexchange.New()
	ex.Logger = sugar.Named("mockexchange")

	if *seed {
		m, err := decimal.NewFromString(*mid)
		if err != nil {
			sugar.Fatalw("invalid_mid", "mid", *mid, "err", err)
		}
		s, err := decimal.NewFromString(*step)
		if err != nil {
			sugar.Fatalw("invalid_step", "step", *step, "err", err)
		}
		ex.Seed(m, s, *levels)
		sugar.Infow("book_seeded", "mid", m.String(), "step", s.String(), "levels", *levels)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.MockExchange, Handler: ex.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	sugar.Infow("mockexchange_listening", "addr", cfg.MockExchange)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalw("listen_failed", "err", err)
	}
}
