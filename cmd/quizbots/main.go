package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/queez/quizbots/internal/bot"
	"github.com/queez/quizbots/internal/config"
	"github.com/queez/quizbots/internal/dashboard"
	"github.com/queez/quizbots/internal/metrics"
	"github.com/queez/quizbots/internal/output"
	"github.com/queez/quizbots/internal/roster"
	"github.com/queez/quizbots/internal/swarm"
	"github.com/queez/quizbots/internal/tracing"
	"github.com/queez/quizbots/internal/websocket"
)

const progressInterval = time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	names, err := loadRoster(cfg)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	collector := metrics.NewCollector()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	logf := func(string, ...any) {}
	if !cfg.JSONOutput && !cfg.Dashboard {
		logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	} else if cfg.LogErrors {
		logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	coord := swarm.New(swarm.Options{
		Bots:          cfg.Bots,
		BatchSize:     cfg.BatchSize,
		BatchDelay:    cfg.BatchDelay,
		JoinRate:      cfg.JoinRate,
		QuestionDelay: cfg.QuestionDelay,
		AnswerTimeout: cfg.AnswerTimeout,
		StartTimeout:  cfg.StartTimeout,
		GracePeriod:   cfg.GracePeriod,
		Factory:       newFactory(cfg, names, rng),
		Collector:     collector,
		Tracer:        provider.Tracer(),
		Logf:          logf,
	})

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		info := dashboard.RunInfo{
			TargetURL:   cfg.TargetURL,
			SessionCode: cfg.SessionCode,
			Bots:        cfg.Bots,
			ConfigFile:  cfg.ConfigFile,
		}
		dash, err = dashboard.New(collector, info, coord.State, coord.Sessions, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		defer dash.Stop()
	}

	var progress *output.ProgressReporter
	stopProgress := func() {
		if progress == nil {
			return
		}
		progress.Stop()
		progress = nil
		fmt.Fprintln(os.Stdout)
	}
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, coord.State, progressInterval, os.Stdout)
		progress.Start()
		defer stopProgress()
	}

	summary := coord.Run(ctx)
	stats := collector.Stats(summary.Elapsed)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, summary, stats); err != nil {
			return err
		}
	} else {
		stopProgress()
		output.PrintReport(os.Stdout, summary, stats)
	}

	if summary.Completed == 0 {
		return fmt.Errorf("no bot completed the session (%d failed)", summary.Failures())
	}
	return nil
}

// newFactory builds the per-bot session constructor. The batcher calls
// it serially, so the shared rng needs no locking; each session gets
// its own rng so a fixed seed reproduces the whole run regardless of
// scheduling.
func newFactory(cfg *config.Config, names *roster.Roster, rng *rand.Rand) swarm.Factory {
	return func(n int) *bot.Session {
		id := fmt.Sprintf("bot_%d_%s", n, ulid.Make())
		persona := bot.DrawPersona(rng, bot.PersonaRanges{
			AccuracyMin: cfg.AccuracyMin,
			AccuracyMax: cfg.AccuracyMax,
			ThinkMin:    cfg.ThinkMin,
			ThinkMax:    cfg.ThinkMax,
		})
		conn := websocket.New(websocket.Config{
			URL:              cfg.SessionURL(id),
			HandshakeTimeout: cfg.HandshakeTimeout,
		})
		var logf func(string, ...any)
		if cfg.LogErrors {
			logf = func(format string, args ...any) {
				fmt.Fprintf(os.Stderr, format+"\n", args...)
			}
		}
		return bot.New(bot.Config{
			ID:        id,
			Username:  names.Username(n),
			Persona:   persona,
			Transport: conn,
			Rand:      rand.New(rand.NewSource(rng.Int63())),
			Logf:      logf,
		})
	}
}

func loadRoster(cfg *config.Config) (*roster.Roster, error) {
	if cfg.RosterPath == "" {
		return roster.Default(), nil
	}
	return roster.FromFile(cfg.RosterPath, cfg.RosterType)
}
