// Command fortitude runs the proactive research engine as a standalone
// process: watch a workspace, detect knowledge gaps, research and persist
// results, per spec.md §6.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine"
	engconfig "github.com/99souls/fortitude/engine/config"
	"github.com/99souls/fortitude/engine/knowledge"
	"github.com/99souls/fortitude/engine/models"
	"github.com/99souls/fortitude/engine/providers"
	"github.com/99souls/fortitude/engine/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath    string
		baseDir       string
		query         string
		snapshotEvery time.Duration
		showVersion   bool
	)
	flag.StringVar(&configPath, "config", "fortitude.yaml", "Path to the proactive-mode YAML config")
	flag.StringVar(&baseDir, "base-directory", "", "Override the config's base_directory")
	flag.StringVar(&query, "query", "", "Submit a single external research request and exit when it completes")
	flag.DurationVar(&snapshotEvery, "snapshot-interval", 30*time.Second, "Interval between stderr snapshot dumps (0=disabled)")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("fortitude proactive research engine")
		return 0
	}

	cfgMgr, err := engconfig.New(configPath)
	if err != nil {
		log.Printf("config error: %v", err)
		return 2
	}
	proactive := cfgMgr.Current()
	if baseDir != "" {
		proactive.BaseDirectory = baseDir
	}

	cfg := engine.DefaultConfig()
	cfg.Proactive = proactive

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(ctx, cfg, knowledge.NewInMemoryBackend(), "./fortitude-prefs", telemetry.NewPrometheusProvider(nil))
	if err != nil {
		log.Printf("engine init error: %v", err)
		return 2
	}
	eng.RegisterProvider(providers.NewMockProvider("claude-code"), 0.7)
	eng.Start()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("signal received; shutting down")
		cancel()
		<-sigCh
		log.Println("second signal received; forcing exit")
		os.Exit(1)
	}()

	if query != "" {
		return runSingleQuery(ctx, eng, query)
	}

	var ticker *time.Ticker
	if snapshotEvery > 0 {
		ticker = time.NewTicker(snapshotEvery)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := eng.Stop(shutdownCtx); err != nil {
				log.Printf("shutdown error: %v", err)
				if kind, ok := fortitude.KindOf(err); ok && kind == fortitude.ErrShutdownTimeout {
					return 6
				}
				return 1
			}
			return 0
		case <-tickerC(ticker):
			printSnapshot(eng)
		}
	}
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func printSnapshot(eng *engine.Engine) {
	snap := eng.Snapshot()
	b, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Fprintf(os.Stderr, "\n=== SNAPSHOT %s ===\n%s\n", time.Now().Format(time.RFC3339), string(b))
}

func runSingleQuery(ctx context.Context, eng *engine.Engine, query string) int {
	id, _, err := eng.RequestResearch(models.ExternalRequest{Query: query})
	if err != nil {
		return exitCodeFor(err)
	}

	for {
		task, ok := eng.TaskStatus(id)
		if !ok {
			return 1
		}
		if task.State.Terminal() {
			break
		}
		select {
		case <-ctx.Done():
			return 6
		case <-time.After(50 * time.Millisecond):
		}
	}

	task, _ := eng.TaskStatus(id)
	b, _ := json.MarshalIndent(task, "", "  ")
	fmt.Println(string(b))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := eng.Stop(shutdownCtx); err != nil {
		return exitCodeFor(err)
	}
	if task.State == models.StateFailed {
		return 1
	}
	return 0
}

func exitCodeFor(err error) int {
	var fe *fortitude.Error
	if !errors.As(err, &fe) {
		return 1
	}
	switch fe.Kind {
	case fortitude.ErrInvalidInput:
		return 2
	case fortitude.ErrAuthenticationFail:
		return 3
	case fortitude.ErrRateLimitExceeded, fortitude.ErrQuotaExceeded:
		return 4
	case fortitude.ErrServiceUnavailable, fortitude.ErrUnhealthy:
		return 5
	case fortitude.ErrShutdownTimeout:
		return 6
	default:
		return 1
	}
}
