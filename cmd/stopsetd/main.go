package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelara/stopsetd/internal/audio"
	"github.com/avelara/stopsetd/internal/avoidance"
	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
	"github.com/avelara/stopsetd/internal/control"
	"github.com/avelara/stopsetd/internal/player"
	"github.com/avelara/stopsetd/internal/repository"
	"github.com/avelara/stopsetd/internal/selection"
	"github.com/avelara/stopsetd/internal/sync"
	"github.com/avelara/stopsetd/internal/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	repo := repository.NewRepo(db)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := config.NewStore()
	state := avoidance.Load(repo)
	state.SetWindowProvider(func() time.Duration {
		return time.Duration(store.Current().NoRepeatAssetsTime) * time.Second
	})
	logger := telemetry.NewLogger(repo)
	pool := audio.NewPool(&audio.FFPlayBackend{Device: cfg.AudioDevice}, audio.DefaultSoftCap)
	picker := selection.NewPicker(store, state)

	// The client is built after the controller; player state changes push
	// status upstream through it, throttled on the client side.
	var client *control.Client
	ctrl := player.NewController(catalog.EmptyDB(), store, pool, picker, state, logger,
		func() { client.NotifyStatus() })
	syncer := sync.New(cfg, store, ctrl.SetDB)

	client = control.NewClient(cfg, logger,
		func(snap catalog.Snapshot) { syncer.Apply(ctx, snap) },
		ctrl.HandleCommand,
		ctrl.Status,
	)

	go store.Watch(ctx.Done(), cfg.OverridesFile)
	go logger.Run(ctx.Done())

	logger.Event("login", "Client signed in")
	ctrl.Start()

	err = client.Run(ctx)
	ctrl.Shutdown()
	logger.Event("logout", "Client signed out")

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("control channel terminated", "err", err)
		os.Exit(1)
	}
}
