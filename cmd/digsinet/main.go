// Command digsinet boots a digital-sibling network alongside a real one:
// load a topology and config, deploy the real network, spin up a
// controller per configured sibling, and keep them in sync until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/digsinet/digsinet/pkg/config"
	"github.com/digsinet/digsinet/pkg/hostlock"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/supervisor"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "digsinet",
	Short:   "Run digital sibling copies of a live network alongside it",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("digsinet version %s (%s)\n", Version, Commit))

	flags := rootCmd.Flags()
	flags.Bool("start", false, "start the real network and every configured sibling (default action)")
	flags.Bool("stop", false, "log a stop request and exit (no topology is torn down)")
	flags.Bool("cleanup", false, "overwrite every sibling topology file this config could produce with an empty topology (running containers are not torn down)")
	flags.Bool("yes-i-really-mean-it", false, "confirm --cleanup")
	flags.String("config", "./digsinet.yml", "path to the digsinet configuration file")
	flags.Bool("reconfigure", false, "pass --reconfigure to the container runtime on topology builds")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("task-debug", false, "accepted and stored in the configuration; no per-task logging is done")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	debug, _ := rootCmd.Flags().GetBool("debug")
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level})
}

func run(cmd *cobra.Command, args []string) error {
	action, err := resolveAction(cmd)
	if err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	reconfigure, _ := cmd.Flags().GetBool("reconfigure")
	debug, _ := cmd.Flags().GetBool("debug")
	taskDebug, _ := cmd.Flags().GetBool("task-debug")
	yes, _ := cmd.Flags().GetBool("yes-i-really-mean-it")

	cli := config.CLI{
		Action:      action,
		ConfigPath:  configPath,
		Reconfigure: reconfigure,
		Debug:       debug,
		TaskDebug:   taskDebug,
		Yes:         yes,
	}
	if err := cli.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.CLI = cli

	sup := supervisor.New(cfg, supervisor.Deps{
		Client: unconfiguredClient{},
		Locks:  &hostlock.Table{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch action {
	case config.ActionCleanup:
		return sup.Cleanup(ctx)
	case config.ActionStop:
		return sup.Stop(ctx)
	case config.ActionStart:
		return runStart(ctx, cancel, sup)
	default:
		return fmt.Errorf("digsinet: unhandled action %q", action)
	}
}

// runStart runs the supervisor's boot sequence and tick loop until a
// signal requests shutdown, cancelling ctx to unwind Supervisor.Start's
// tick loop gracefully instead of killing the process outright.
func runStart(ctx context.Context, cancel context.CancelFunc, sup *supervisor.Supervisor) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- sup.Start(ctx) }()

	select {
	case <-sigCh:
		log.Logger.Info().Msg("digsinet: received shutdown signal")
		cancel()
		return <-done
	case err := <-done:
		return err
	}
}

// resolveAction maps the mutually-exclusive --start/--stop/--cleanup
// flags onto config.Action, the way config/cli.py's argparse
// mutually-exclusive group resolves a single chosen action. --start is
// the default when none of the three flags were given.
func resolveAction(cmd *cobra.Command) (config.Action, error) {
	start, _ := cmd.Flags().GetBool("start")
	stop, _ := cmd.Flags().GetBool("stop")
	cleanup, _ := cmd.Flags().GetBool("cleanup")

	chosen := 0
	var action config.Action
	if start {
		chosen++
		action = config.ActionStart
	}
	if stop {
		chosen++
		action = config.ActionStop
	}
	if cleanup {
		chosen++
		action = config.ActionCleanup
	}

	switch chosen {
	case 0:
		return config.ActionStart, nil
	case 1:
		return action, nil
	default:
		return "", fmt.Errorf("digsinet: --start, --stop and --cleanup are mutually exclusive")
	}
}
