package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MJE43/levelup/internal/api"
	"github.com/MJE43/levelup/internal/config"
	"github.com/MJE43/levelup/internal/games"
	"github.com/MJE43/levelup/internal/livews"
	"github.com/MJE43/levelup/internal/progression"
	"github.com/MJE43/levelup/internal/scripting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	sandbox := scripting.NewSandbox(cfg.ScriptTimeout)
	if cfg.Debug {
		sandbox.SetLogger(log.New(os.Stdout, "[SANDBOX] ", log.LstdFlags))
	}

	hub := livews.NewHub()
	server, err := api.NewServer(api.Options{
		Game:   cfg.Game,
		Policy: cfg.Policy,
		Env:    games.Env{Executor: sandbox},
		Hub:    hub,
		Clock:  progression.TickerClock{Interval: cfg.TickInterval},
	})
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		log.Printf("levelup-server listening on %s game=%s version=%s", cfg.Addr, cfg.Game, api.EngineVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("levelup-server: %v", err)
	}
	log.Println("Server exited")
}
