package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/MJE43/levelup/internal/cli"
	"github.com/MJE43/levelup/internal/config"
	"github.com/MJE43/levelup/internal/games"
	"github.com/MJE43/levelup/internal/progression"
	"github.com/MJE43/levelup/internal/scripting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	game := flag.String("game", cfg.Game, "game to play")
	list := flag.Bool("list", false, "list games and exit")
	flag.Parse()

	if *list {
		for _, g := range games.ListGames() {
			fmt.Printf("%-10s %s: %s (%d levels)\n", g.ID, g.Name, g.Description, g.Levels)
		}
		return
	}

	sandbox := scripting.NewSandbox(cfg.ScriptTimeout)
	levels, err := games.Load(*game, games.Env{Executor: sandbox})
	if err != nil {
		log.Fatalf("load game: %v", err)
	}

	renderer := cli.NewTextRenderer(os.Stdout)
	eng, err := progression.NewEngine(levels, cfg.Policy, renderer)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	eng.SetClock(progression.TickerClock{Interval: cfg.TickInterval})

	// Engine and sandbox logs would interleave with the game text.
	logOut := io.Discard
	if cfg.Debug {
		logOut = os.Stderr
	}
	eng.SetLogger(log.New(logOut, "[ENGINE] ", log.LstdFlags))
	sandbox.SetLogger(log.New(logOut, "[SANDBOX] ", log.LstdFlags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, eng, os.Stdin, renderer); err != nil && err != context.Canceled {
		log.Fatalf("levelup: %v", err)
	}
}
