package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rndlabs/daily-stoic-waku/internal/app"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

// usageError marks argument mistakes (exit 2).
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cli.Command{
		Name:      "dailystoic",
		Usage:     "broadcast a daily stoic quote over pub/sub and answer quote requests",
		UsageText: "dailystoic [--config FILE] [--log-level LEVEL] <quotes-file>",
		Version:   fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to YAML config file (optional)",
				Sources:     cli.EnvVars("DAILYSTOIC_CONFIG"),
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level override (trace, debug, info, warn, error)",
				Sources:     cli.EnvVars("DAILYSTOIC_LOG_LEVEL"),
				Destination: &logLevel,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return usageError{msg: fmt.Sprintf("expected exactly one quotes file, got %d arguments", c.Args().Len())}
			}
			return run(ctx, app.Options{
				ConfigPath:  configPath,
				CatalogPath: c.Args().First(),
				LogLevel:    logLevel,
			})
		},
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if sig, ok := <-sigs; ok {
			cancel(signalError{sig: sig})
		}
	}()

	if err := cmd.Run(ctx, os.Args); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(os.Stderr, "usage: %s\n%s\n", cmd.UsageText, ue.msg)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts app.Options) error {
	a, err := app.NewApp(opts)
	if err != nil {
		return err
	}

	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(stopCtx, app.StopStartFail)
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopUnknown
	select {
	case <-ctx.Done():
		reason = signalReason(ctx)
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

type signalError struct{ sig os.Signal }

func (e signalError) Error() string { return "received " + e.sig.String() }

func signalReason(ctx context.Context) app.StopReason {
	var se signalError
	if !errors.As(context.Cause(ctx), &se) {
		return app.StopUnknown
	}
	if se.sig == syscall.SIGTERM {
		return app.StopSIGTERM
	}
	return app.StopSIGINT
}
