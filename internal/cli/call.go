package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/Huddle/internal/config"
	"github.com/BioHazard786/Huddle/internal/dns"
	"github.com/BioHazard786/Huddle/internal/media"
	"github.com/BioHazard786/Huddle/internal/relayclient"
	"github.com/BioHazard786/Huddle/internal/session"
	"github.com/BioHazard786/Huddle/internal/ui"
)

// callContext holds everything a running call owns.
type callContext struct {
	Client  *relayclient.Client
	Handler *relayclient.Handler
	Engine  *media.PionEngine
	Source  *media.SilenceSource
	Coord   *session.Coordinator
}

func newCallContext(ctx context.Context, cfg *config.Config, log *slog.Logger) (*callContext, error) {
	client := relayclient.NewClient(cfg.WebSocketURL,
		relayclient.WithResolver(&dns.Resolver{}),
		relayclient.WithLogger(log),
	)
	if err := client.Connect(ctx); err != nil {
		return nil, session.NewError("connect to relay", err)
	}

	mcfg := media.ConfigFrom(cfg)
	mcfg.Logger = log
	engine, err := media.NewPionEngine(mcfg)
	if err != nil {
		client.Close()
		return nil, session.NewError("start media", err)
	}

	handler := relayclient.NewHandler(client)
	go handler.Start()

	src := media.NewSilenceSource(engine.LocalTrack())
	coord := session.New(client, handler.Events, engine,
		session.WithLogger(log),
		session.WithSource(src),
	)

	return &callContext{
		Client:  client,
		Handler: handler,
		Engine:  engine,
		Source:  src,
		Coord:   coord,
	}, nil
}

func (c *callContext) Close() {
	c.Client.Close()
}

// runCall connects to the relay, joins code and shows the call view until
// the user leaves or the call ends.
func runCall(ctx context.Context, code string, created bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(ui.RoomInfo{Code: code, Link: cfg.GetRoomLink(code), Created: created}.View())
	fmt.Println()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := slog.Default()

	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	call, err := newCallContext(ctx, cfg, log)
	stopSpinner()
	if err != nil {
		return err
	}
	defer call.Close()

	go func() {
		if err := call.Source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audio source stopped", "err", err)
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- call.Coord.Run(ctx)
	}()

	stopSpinner = ui.RunWaitingSpinner("Joining room " + code + "...")
	err = call.Coord.Join(ctx, code)
	stopSpinner()
	if err != nil {
		return err
	}

	if flagMuted {
		if err := call.Coord.SetMuted(true); err != nil {
			ui.PrintWarningf("could not mute: %v", err)
		} else {
			ui.PrintInfo("Joined muted, press m to unmute")
		}
	}

	view, err := ui.RunCall(call.Coord)
	if err != nil {
		return err
	}
	endedAt := time.Now()

	final := view.State()
	if view.Left() {
		if err := call.Coord.Leave(); err != nil {
			log.Debug("leave", "err", err)
		}
		final = call.Coord.Snapshot()
	}
	cancel()

	if final.Err != nil {
		return final.Err
	}
	ui.PrintSuccessf("Left %s after %s", code, ui.FormatDuration(final.Elapsed(endedAt)))
	<-runErr
	return nil
}
