package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/sync/errgroup"

	"github.com/mtecbridge/mtecbridge/pkg/common"
	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/mtec"
	"github.com/mtecbridge/mtecbridge/pkg/poller"
	"github.com/mtecbridge/mtecbridge/pkg/server"
	"github.com/mtecbridge/mtecbridge/pkg/sink"
	"github.com/mtecbridge/mtecbridge/pkg/storage"
)

func main() {
	// flag defaults are read from the environment, so .env goes first
	_ = godotenv.Load()

	// init packages
	api := mtec.Configured()
	mq := sink.ConfiguredMQTT()
	db := storage.Configured()
	latest := sink.NewLatest()

	sinks := sink.Multi{latest}
	p := poller.Configured(api, &sinks)
	srv := server.Configured(api, latest, db)

	logFile := lflag.String("log-file", common.Getenv("LOG_FILE", ""), "Also write logs to this file, rotated by size")
	console := lflag.Bool("console", false, "Print snapshots to stdout")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag sets llog's level, slog needs the same
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)

	var out io.Writer = os.Stdout
	if *logFile != "" {
		fw, err := log.FileWriter(*logFile)
		if err != nil {
			panic(fmt.Errorf("opening log file: %w", err))
		}
		defer fw.Close()
		out = io.MultiWriter(os.Stdout, fw)
	}
	log.SetOutput(out)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := api.LoadTopology(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load topology", slog.Any("error", err))
		os.Exit(1)
	}

	if mq.Enabled() {
		if err := mq.Connect(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to connect to mqtt", slog.Any("error", err))
			os.Exit(1)
		}
		sinks = append(sinks, mq)
	}
	if storage.Enabled(db) {
		sinks = append(sinks, sink.NewStore(db))
	} else {
		defer db.Close()
	}
	if *console {
		sinks = append(sinks, sink.NewConsole(os.Stdout, ""))
	}
	if len(sinks) == 1 && !srv.Enabled() {
		log.Ctx(ctx).WarnContext(ctx, "no mqtt server, storage, status server or console configured, snapshots are only read")
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close sinks", slog.Any("error", err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(gctx)
	})
	if srv.Enabled() {
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "bridge failed", slog.Any("error", err))
		cancel()
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "bridge exited cleanly")
}
