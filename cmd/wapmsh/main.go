// Command wapmsh is an interactive shell running pipelines of loadable
// programs. Each line is one pipeline; stages stream into each other and the
// final stage renders to the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/wapm-shell/internal/config"
	"github.com/askiada/wapm-shell/internal/logging"
	"github.com/askiada/wapm-shell/pkg/shell/drawer"
	"github.com/askiada/wapm-shell/pkg/shell/measure"
	"github.com/askiada/wapm-shell/pkg/shell/model"
	"github.com/askiada/wapm-shell/pkg/shell/orchestrator"
	"github.com/askiada/wapm-shell/pkg/shell/program"
	"github.com/askiada/wapm-shell/pkg/shell/resolver"
	"github.com/askiada/wapm-shell/pkg/shell/sink"
	"github.com/askiada/wapm-shell/pkg/shell/unit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "wapmsh",
		Short:         "Interactive shell for pipelines of loadable programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			return runShell(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/wapmsh/config.yaml)")

	return cmd
}

func runShell(ctx context.Context, cfg *config.Config) error {
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	orch := newOrchestrator(cfg, log)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return errors.Wrap(err, "unable to initialise readline")
	}
	defer rl.Close()

	// Ctrl-C during a run kills the in-flight pipeline. When idle, Kill is
	// a no-op and readline handles the interrupt itself.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			orch.Kill()
		}
	}()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "unable to read line")
		}
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}

		// Diagnostics already went to the sink; the error only feeds logs.
		if err := orch.Run(ctx, line); err != nil {
			log.Debug("run failed", slog.String("error", err.Error()))
		}
	}
}

func newOrchestrator(cfg *config.Config, log *slog.Logger) *orchestrator.Orchestrator {
	var cacheOpts []resolver.Option
	if cfg.CacheEntries > 0 {
		cacheOpts = append(cacheOpts, resolver.MaxEntries(cfg.CacheEntries))
	}
	res := resolver.NewCaching(resolver.NewRegistry(program.Builtins()), cacheOpts...)

	var factory unit.Factory = unit.NewWorkerFactory()
	if !cfg.Isolated {
		factory = unit.NewInlineFactory()
	}

	var runOpts []model.RunOption
	if cfg.DrawerFile != "" {
		msr := measure.NewDefaultMeasure()
		runOpts = append(runOpts,
			measure.RunMeasure(msr),
			drawer.RunDrawer(drawer.NewDOTDrawer(cfg.DrawerFile), msr),
		)
	}

	return orchestrator.New(res, sink.NewWriter(os.Stdout),
		orchestrator.WithUnitFactory(factory),
		orchestrator.WithLogger(log),
		orchestrator.WithRunOptions(runOpts...),
	)
}

func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return logging.New(os.Stderr, cfg.LogLevel), func() {}, nil
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to open log file")
	}

	return logging.New(file, cfg.LogLevel), func() { _ = file.Close() }, nil
}
