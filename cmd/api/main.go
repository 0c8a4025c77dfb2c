package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onmint.org/internal/httpapi"
	"onmint.org/internal/loan"
	"onmint.org/internal/merchant"
	"onmint.org/internal/obs"
	"onmint.org/internal/pool"
	"onmint.org/internal/score"
	"onmint.org/internal/store/pg"
	"onmint.org/internal/stream"
	"onmint.org/internal/sweep"
	"onmint.org/internal/transfer"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	events := stream.New()

	liquidity := pool.New(func(c pool.Change) {
		obs.SetPoolBalance(c.Balance)
		events.Publish(stream.Event{
			Kind:    stream.KindLiquidityChanged,
			Amount:  c.Delta,
			Balance: c.Balance,
		})
	})

	scores := score.NewEngine()
	merchants := merchant.NewRegistry()
	tokens := transfer.NewInMemory()

	opts := []loan.Option{loan.WithStream(events)}

	// Durable loan journal, if a DSN is configured
	var store *pg.Store
	if dsn := os.Getenv("ONMINT_PG_DSN"); dsn != "" {
		var err error
		store, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		opts = append(opts, loan.WithJournal(store))
	}

	ledger := loan.NewLedger(scores, liquidity, merchants, tokens, opts...)

	// Overdue default sweep
	sweeper := sweep.New(ledger)
	schedule := os.Getenv("ONMINT_SWEEP_CRON")
	if schedule == "" {
		schedule = "@every 1h"
	}
	if err := sweeper.Start(schedule); err != nil {
		log.Fatalf("start sweeper: %v", err)
	}

	probe := httpapi.ReadyProbe{}
	if store != nil {
		probe.DB = store.DB()
	}

	api := httpapi.New(probe, version, httpapi.Deps{
		Scores:    scores,
		Pool:      liquidity,
		Merchants: merchants,
		Ledger:    ledger,
		Tokens:    tokens,
		Stream:    events,
	})

	addr := os.Getenv("ONMINT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting onmint-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sweeper.Stop()
	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
