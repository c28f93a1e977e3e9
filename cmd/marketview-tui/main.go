package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/language"

	"github.com/cryptotracker/marketview/internal/app"
	"github.com/cryptotracker/marketview/internal/config"
	"github.com/cryptotracker/marketview/internal/format"
	"github.com/cryptotracker/marketview/internal/tracker"
	"github.com/cryptotracker/marketview/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	envPath := flag.String("env", ".env", "path to .env file")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid default config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	sources, err := app.NewSources(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bridge := tui.NewBridge()
	t := tracker.New(app.TrackerConfig(cfg), sources.Source(), bridge,
		tracker.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Start(ctx)
	t.StartInitialLoad()

	model := tui.NewModel(t, bridge, format.New(language.English, cfg.API.VSCurrency))
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	_, runErr := program.Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := t.Stop(stopCtx); err != nil {
		logger.Warn("tracker stop timed out", "error", err)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
